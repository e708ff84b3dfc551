package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/model"
	"github.com/rickgao/widget-market/internal/router"
)

// flushTimeout bounds a background flush. Background flushes are not tied to
// the writer's lifecycle context so Stop cannot abort a batch mid-insert.
const flushTimeout = 30 * time.Second

const insertTransactionSQL = `
	INSERT INTO market_transactions (id, good, transaction_type, price, received_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING`

// TransactionWriter consumes transactions from the router journal buffer and
// writes them to market_transactions.
type TransactionWriter struct {
	cfg    config.WriterConfig
	logger *slog.Logger

	input *router.GrowableBuffer[model.Transaction]
	db    DB

	// Batching
	batch       []transactionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewTransactionWriter creates a new TransactionWriter.
func NewTransactionWriter(
	cfg config.WriterConfig,
	input *router.GrowableBuffer[model.Transaction],
	db DB,
	logger *slog.Logger,
) *TransactionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]transactionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming transactions and writing them.
func (w *TransactionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("transaction writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer. Transactions still in the input buffer are
// written in a final flush bounded by ctx.
func (w *TransactionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping transaction writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("transaction writer stopped")
	case <-ctx.Done():
		w.logger.Warn("transaction writer stop timed out")
	}

	for _, tx := range w.input.DrainTo(0) {
		w.add(tx)
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *TransactionWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *TransactionWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		tx, ok := w.input.TryReceive()
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		if w.add(tx) {
			w.backgroundFlush()
		}
	}
}

func (w *TransactionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.backgroundFlush()
		}
	}
}

func (w *TransactionWriter) backgroundFlush() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), flushTimeout)
	defer cancel()
	w.flush(ctx)
}

// add appends a transaction to the batch and reports whether the batch is full.
func (w *TransactionWriter) add(tx model.Transaction) bool {
	row := transformTransaction(tx)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

func transformTransaction(tx model.Transaction) transactionRow {
	return transactionRow{
		ID:              tx.ID.String(),
		Good:            string(tx.Good),
		TransactionType: string(tx.Type),
		Price:           toPrice(tx.Price),
		ReceivedAt:      tx.ReceivedAt,
	}
}

// flush writes the current batch. A failed batch is dropped and counted.
func (w *TransactionWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]transactionRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed transactions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TransactionWriter) batchInsert(ctx context.Context, rows []transactionRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertTransactionSQL, r.ID, r.Good, r.TransactionType, r.Price, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
