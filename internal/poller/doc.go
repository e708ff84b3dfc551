// Package poller implements the price sampler.
//
// The sampler:
//   - Reads the shared market price for each tracked good on an interval
//   - Marks samples taken while the store was empty (Present=false)
//   - Hands samples to a handler, normally writer.SampleWriter
package poller
