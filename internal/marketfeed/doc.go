// Package marketfeed carries transaction events over Redis pub/sub.
//
// Delivery is broadcast and at-most-once per subscriber: a subscriber sees
// only events published while it is subscribed, and there is no replay.
// Subscriptions buffer incoming events locally so an agent can drain its
// backlog without blocking once per cycle.
package marketfeed
