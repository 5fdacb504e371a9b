package metrics

import (
	"sync"
	"time"

	"anim-converter/internal/logging"
)

// ScratchUsage describes what is currently held in scratch space.
type ScratchUsage struct {
	Entries int
	Bytes   int64
}

// ScratchProvider reports scratch-space usage.
type ScratchProvider interface {
	Usage() (ScratchUsage, error)
}

// Collector periodically samples scratch-space usage into gauges. Because
// every request releases its own files, a growing gauge points at a leak.
type Collector struct {
	provider ScratchProvider
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider ScratchProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
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
	if c.provider == nil {
		return
	}

	usage, err := c.provider.Usage()
	if err != nil {
		logging.Warn("Failed to sample scratch usage: %v", err)
		return
	}

	ScratchEntries.Set(float64(usage.Entries))
	ScratchBytes.Set(float64(usage.Bytes))

	logging.Debug("Metrics collected: scratch entries=%d, bytes=%d", usage.Entries, usage.Bytes)
}
