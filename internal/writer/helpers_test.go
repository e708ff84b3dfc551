package writer

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records queued statements. Rows whose first argument is in dupes
// report zero rows affected.
type fakeDB struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
	execs   [][]any
	dupes   map[any]bool
	err     error
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)

	res := &fakeResults{err: f.err}
	for _, q := range b.QueuedQueries {
		res.affected = append(res.affected, !f.dupes[q.Arguments[0]])
	}
	return res
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	f.execs = append(f.execs, args)
	return commandTag(!f.dupes[args[0]]), nil
}

func (f *fakeDB) rows() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeResults struct {
	pgx.BatchResults
	affected []bool
	err      error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	ok := r.affected[0]
	r.affected = r.affected[1:]
	return commandTag(ok), nil
}

func (r *fakeResults) Close() error { return nil }

func commandTag(inserted bool) pgconn.CommandTag {
	if inserted {
		return pgconn.NewCommandTag("INSERT 0 1")
	}
	return pgconn.NewCommandTag("INSERT 0 0")
}

// blockingDB holds every batch until release is closed or ctx is done.
type blockingDB struct {
	fakeDB
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingDB() *blockingDB {
	return &blockingDB{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingDB) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return b.fakeDB.SendBatch(ctx, batch)
	case <-ctx.Done():
		return &fakeResults{err: ctx.Err()}
	}
}
