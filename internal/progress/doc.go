// Package progress wraps upload readers with stall detection and
// progress reporting.
//
// Every network transfer in the queue is an explicit suspension point
// with a deadline: a Reader fails with ErrStalled when no bytes move
// for the idle window, and with ErrMaxDuration when the whole transfer
// exceeds its ceiling. Progress callbacks drive the per-item 0-100
// counter and feed observed throughput to the network advisor.
package progress
