// Package model defines shared data types used across the widget market.
//
// Conventions:
//   - Prices: float64 in market units (the seed price is 5.0)
//   - Timestamps: int64 microseconds since Unix epoch
//   - Goods: plain string keys, which double as PriceStore keys
//   - Transaction ids: uuid.UUID, assigned by the recorder on receipt
package model
