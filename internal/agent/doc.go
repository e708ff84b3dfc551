// Package agent implements the widget trading agent.
//
// Each cycle the agent:
//   - reads the shared price (the configured default if none is stored)
//   - compares it with its private expectation and decides to buy, sell or hold
//   - on buy or sell, writes the midpoint price back and broadcasts an
//     "order" or "list" event
//   - drains the events seen since the previous cycle and updates its
//     expectation, either from the order/list trend or by a random walk
//   - sleeps for a random pause before the next cycle
//
// Whether an agent follows the trend or walks randomly is decided once, when
// it is created. Agents share nothing in memory; all coordination goes through
// the price store and the market channel.
package agent
