// Package database manages the recorder's PostgreSQL connection pool and the
// tables it writes to:
//   - market_transactions: every order/list event seen on the market topic
//   - price_samples: periodic reads of the shared market price
package database
