package writer

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// pricePlaces is the number of decimal places kept for stored prices.
const pricePlaces = 6

// DB is the subset of pgxpool.Pool the writers use.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Metrics holds counters for a writer.
type Metrics struct {
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
}

// transactionRow is a row for the market_transactions table.
type transactionRow struct {
	ID              string
	Good            string
	TransactionType string
	Price           decimal.Decimal
	ReceivedAt      int64 // µs
}

// sampleRow is a row for the price_samples table.
type sampleRow struct {
	Good      string
	SampledAt int64 // µs
	Price     decimal.Decimal
	Present   bool
}

func toPrice(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Round(pricePlaces)
}
