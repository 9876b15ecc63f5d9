package metrics

import (
	"time"

	"media-ingest/internal/logging"
)

// HandleSource reports how many lifecycle handles are currently tracked.
// Implemented by the lifecycle tracker.
type HandleSource interface {
	TrackedCount() int
}

// Collector periodically samples resource state into gauges.
type Collector struct {
	handles  HandleSource
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a collector sampling the given handle source.
func NewCollector(handles HandleSource, interval time.Duration) *Collector {
	return &Collector{
		handles:  handles,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic collection in a background goroutine.
func (c *Collector) Start() {
	go c.run()
	logging.Info("Metrics collector started (interval: %v)", c.interval)
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) run() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	TrackedHandles.Set(float64(c.handles.TrackedCount()))
}
