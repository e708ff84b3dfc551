package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/widget-market/internal/model"
)

const insertSampleSQL = `
	INSERT INTO price_samples (good, sampled_at, price, present)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (good, sampled_at) DO NOTHING`

// SampleWriter inserts price samples one at a time. Samples arrive at most
// every few seconds, so there is nothing to batch.
type SampleWriter struct {
	db     DB
	logger *slog.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewSampleWriter creates a SampleWriter.
func NewSampleWriter(db DB, logger *slog.Logger) *SampleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleWriter{db: db, logger: logger}
}

// HandleSample writes one sample. It matches poller.SampleHandlerFunc.
func (w *SampleWriter) HandleSample(ctx context.Context, s model.PriceSample) error {
	row := sampleRow{
		Good:      string(s.Good),
		SampledAt: s.SampledAt,
		Price:     toPrice(s.Price),
		Present:   s.Present,
	}

	ct, err := w.db.Exec(ctx, insertSampleSQL, row.Good, row.SampledAt, row.Price, row.Present)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.metrics.Errors++
		return fmt.Errorf("insert price sample: %w", err)
	}
	if ct.RowsAffected() == 0 {
		w.metrics.Conflicts++
		return nil
	}
	w.metrics.Inserts++
	w.logger.Debug("stored price sample", "good", s.Good, "price", s.Price, "present", s.Present)
	return nil
}

// Stats returns current metrics.
func (w *SampleWriter) Stats() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}
