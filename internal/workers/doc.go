/*
Package workers determines worker pool sizes that respect container CPU
limits.

runtime.NumCPU() reports the host machine's CPU count even when a cgroup
limit caps the process at a fraction of that. GOMAXPROCS (Go 1.19+) is set
from the container limit, so worker counts derived from it avoid spawning
far more goroutines than there are schedulable CPUs.

	// CPU-bound work (encoding, hashing): 1 worker per CPU
	n := workers.ForCPU(8)

	// I/O-bound work (probing, sampling, uploads): 2 workers per CPU
	n := workers.ForIO(16)

All functions honor the INGEST_WORKERS environment variable as a manual
override, capped by the supplied limit.
*/
package workers
