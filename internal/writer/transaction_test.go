package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/model"
	"github.com/rickgao/widget-market/internal/router"
)

func testTx(price float64) model.Transaction {
	return model.Transaction{
		ID:         uuid.New(),
		Good:       model.Widget,
		Type:       model.Order,
		Price:      price,
		ReceivedAt: 1_700_000_000_000_000,
	}
}

func TestTransformTransaction(t *testing.T) {
	tx := testTx(5.30000000001)
	tx.Type = model.List

	row := transformTransaction(tx)

	if row.ID != tx.ID.String() {
		t.Errorf("ID = %s, want %s", row.ID, tx.ID)
	}
	if row.Good != "widget" || row.TransactionType != "list" {
		t.Errorf("Good = %s, TransactionType = %s; want widget, list", row.Good, row.TransactionType)
	}
	if row.Price.String() != "5.3" {
		t.Errorf("Price = %s, want 5.3", row.Price)
	}
	if row.ReceivedAt != 1_700_000_000_000_000 {
		t.Errorf("ReceivedAt = %d", row.ReceivedAt)
	}
}

func TestTransactionWriter_FlushOnBatchSize(t *testing.T) {
	cfg := config.WriterConfig{BatchSize: 3, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[model.Transaction](10)
	db := &fakeDB{}
	w := NewTransactionWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		input.Send(testTx(float64(i)))
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Flushes == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stats := w.Stats()
	if stats.Flushes != 1 || stats.Inserts != 3 {
		t.Errorf("Flushes = %d, Inserts = %d; want 1, 3", stats.Flushes, stats.Inserts)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestTransactionWriter_FlushOnInterval(t *testing.T) {
	cfg := config.WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}
	input := router.NewGrowableBuffer[model.Transaction](10)
	db := &fakeDB{}
	w := NewTransactionWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop(context.Background())

	input.Send(testTx(5))

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Inserts == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.Stats().Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", w.Stats().Inserts)
	}
}

func TestTransactionWriter_StopFlushesRemaining(t *testing.T) {
	cfg := config.WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[model.Transaction](10)
	db := &fakeDB{}
	w := NewTransactionWriter(cfg, input, db, nil)

	// Not started: everything is still in the input buffer at Stop.
	for i := 0; i < 4; i++ {
		input.Send(testTx(float64(i)))
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rows := db.rows()
	if len(rows) != 4 {
		t.Fatalf("inserted %d rows, want 4", len(rows))
	}
	if rows[0].SQL != insertTransactionSQL {
		t.Errorf("SQL = %q", rows[0].SQL)
	}
	if len(rows[0].Arguments) != 5 {
		t.Errorf("got %d arguments, want 5", len(rows[0].Arguments))
	}
}

func TestTransactionWriter_StopDuringFlushKeepsBatch(t *testing.T) {
	cfg := config.WriterConfig{BatchSize: 2, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[model.Transaction](10)
	db := newBlockingDB()
	w := NewTransactionWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	input.Send(testTx(5.0))
	input.Send(testTx(5.1))

	select {
	case <-db.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("batch insert never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop(ctx) }()

	// Let Stop cancel the writer while the insert is still in flight.
	time.Sleep(20 * time.Millisecond)
	close(db.release)

	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stats := w.Stats()
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
	if stats.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", stats.Inserts)
	}
	if got := len(db.rows()); got != 2 {
		t.Errorf("rows written = %d, want 2", got)
	}
}

func TestTransactionWriter_Conflicts(t *testing.T) {
	dup := testTx(1)
	db := &fakeDB{dupes: map[any]bool{dup.ID.String(): true}}
	input := router.NewGrowableBuffer[model.Transaction](10)
	w := NewTransactionWriter(config.WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, input, db, nil)

	w.add(dup)
	w.add(testTx(2))
	w.flush(context.Background())

	stats := w.Stats()
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("Inserts = %d, Conflicts = %d; want 1, 1", stats.Inserts, stats.Conflicts)
	}
}

func TestTransactionWriter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	input := router.NewGrowableBuffer[model.Transaction](10)
	w := NewTransactionWriter(config.WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, input, db, nil)

	w.add(testTx(1))
	w.flush(context.Background())

	stats := w.Stats()
	if stats.Errors != 1 || stats.Inserts != 0 {
		t.Errorf("Errors = %d, Inserts = %d; want 1, 0", stats.Errors, stats.Inserts)
	}

	w.batchMu.Lock()
	pending := len(w.batch)
	w.batchMu.Unlock()
	if pending != 0 {
		t.Errorf("batch length = %d after failed flush, want 0", pending)
	}
}

func TestTransactionWriter_EmptyFlush(t *testing.T) {
	db := &fakeDB{}
	w := NewTransactionWriter(config.WriterConfig{BatchSize: 10}, router.NewGrowableBuffer[model.Transaction](1), db, nil)

	w.flush(context.Background())

	if len(db.batches) != 0 || w.Stats().Flushes != 0 {
		t.Error("empty flush should not touch the database")
	}
}
