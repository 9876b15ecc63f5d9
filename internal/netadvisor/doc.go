// Package netadvisor estimates current network conditions and
// classifies them into a small ordered set of speed tiers with a
// stability verdict.
//
// The advisor is strictly advisory. The queue consults it to pace
// uploads, but every consumer must behave correctly when the advisor
// has no samples and reports the most conservative tier. Correctness
// never depends on it.
//
// Samples come from two sources: observed upload transfers fed back by
// the queue, and on-demand ICMP round-trip measurements. A short
// rolling window of samples drives the tier; the stability verdict is
// the coefficient of variation over that window.
package netadvisor
