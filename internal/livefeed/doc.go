// Package livefeed streams recorded transactions to websocket watchers.
//
// The Hub reads the router's live buffer and broadcasts each transaction as a
// JSON text frame. Slow watchers lose messages rather than stall the hub.
package livefeed
