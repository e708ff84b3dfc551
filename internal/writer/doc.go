// Package writer persists what the recorder observes.
//
// Writers:
//   - TransactionWriter: batches transactions from the router journal buffer
//     into market_transactions
//   - SampleWriter: inserts price samples into price_samples
//
// Both are append-only. Prices are stored as NUMERIC, rounded to six places.
package writer
