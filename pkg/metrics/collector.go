package metrics

import (
	"time"
)

// StateStore is the slice of clusterstate.Store the collector needs to
// sample on a timer. An interface here, rather than importing
// pkg/clusterstate directly, keeps pkg/metrics a leaf package other
// packages (pkg/genhash, pkg/wire) can depend on without a cycle.
type StateStore interface {
	NodeCount() int
	Wipe(now time.Time) int
}

// Collector periodically samples gauge-shaped metrics that don't have a
// natural call site to update inline — cluster-state store size, mainly —
// and sweeps expired cluster-state slots.
type Collector struct {
	store  StateStore
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store StateStore) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ClusterStateNodesTotal.Set(float64(c.store.NodeCount()))
	if purged := c.store.Wipe(time.Now()); purged > 0 {
		ClusterStateExpirationsTotal.Add(float64(purged))
	}
}
