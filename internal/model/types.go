package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMalformedEvent         = errors.New("malformed transaction event")
	ErrUnknownTransactionType = errors.New("unknown transaction type")
)

// Good is a tradeable item. Its name is also its PriceStore key.
type Good string

// Widget is the only good currently traded.
const Widget Good = "widget"

// DefaultTopic is the pub/sub topic carrying widget transactions.
const DefaultTopic = "widget-market"

// TransactionType labels the side of a broadcast transaction.
type TransactionType string

const (
	Order TransactionType = "order" // buy-side
	List  TransactionType = "list"  // sell-side
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Order || t == List
}

// -----------------------------------------------------------------------------
// Wire Types
// -----------------------------------------------------------------------------

// TransactionEvent is the payload published on the market topic.
type TransactionEvent struct {
	TransactionType TransactionType `json:"transaction_type"`
	Price           float64         `json:"price"`
}

// Encode returns the JSON wire form of the event.
func (e TransactionEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a raw payload. Payloads that are not JSON objects with a
// known transaction_type and a numeric price are rejected.
func DecodeEvent(data []byte) (TransactionEvent, error) {
	var wire struct {
		TransactionType *TransactionType `json:"transaction_type"`
		Price           *float64         `json:"price"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return TransactionEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.TransactionType == nil || wire.Price == nil {
		return TransactionEvent{}, fmt.Errorf("%w: missing field", ErrMalformedEvent)
	}
	if !wire.TransactionType.Valid() {
		return TransactionEvent{}, fmt.Errorf("%w: %q", ErrUnknownTransactionType, *wire.TransactionType)
	}
	return TransactionEvent{TransactionType: *wire.TransactionType, Price: *wire.Price}, nil
}

// -----------------------------------------------------------------------------
// Recorded Types
// -----------------------------------------------------------------------------

// Transaction is a transaction event as seen by the recorder.
type Transaction struct {
	ID         uuid.UUID       // Assigned on receipt
	Good       Good            // Good the topic belongs to
	Type       TransactionType // order or list
	Price      float64         // Transaction price
	ReceivedAt int64           // Recorder receive timestamp (µs since epoch)
}

// PriceSample is a point-in-time read of the shared market price.
type PriceSample struct {
	Good      Good
	Price     float64
	Present   bool  // false when the store had no value and Price is the default
	SampledAt int64 // µs since epoch
}
