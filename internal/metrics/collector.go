package metrics

import (
	"sync"
	"time"
)

const maxLatencySamples = 100

// Collector keeps per-system counters for the summary lifecycle
type Collector struct {
	updates          map[string]int64
	providerFailures map[string]int64
	clears           map[string]int64
	delivered        map[string]int64
	deliveryFailures map[string]int64
	latencies        map[string][]time.Duration
	mu               sync.RWMutex
}

// Snapshot is a point-in-time copy of the collected metrics
type Snapshot struct {
	Updates          map[string]int64   `json:"updates"`
	ProviderFailures map[string]int64   `json:"provider_failures"`
	Clears           map[string]int64   `json:"clears"`
	Delivered        map[string]int64   `json:"webhooks_delivered"`
	DeliveryFailures map[string]int64   `json:"webhooks_failed"`
	AvgLatencyMs     map[string]float64 `json:"avg_provider_latency_ms"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

// RecordProviderCall records one summarization call and its latency
func (c *Collector) RecordProviderCall(systemKey string, success bool, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.updates[systemKey]++
	} else {
		c.providerFailures[systemKey]++
	}

	c.latencies[systemKey] = append(c.latencies[systemKey], latency)
	// Keep only the most recent samples
	if len(c.latencies[systemKey]) > maxLatencySamples {
		c.latencies[systemKey] = c.latencies[systemKey][1:]
	}
}

// RecordClear records a summary cleared by the reaper
func (c *Collector) RecordClear(systemKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clears[systemKey]++
}

// RecordDelivery records a webhook delivery attempt
func (c *Collector) RecordDelivery(systemKey string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.delivered[systemKey]++
	} else {
		c.deliveryFailures[systemKey]++
	}
}

// Snapshot returns a copy of current metrics
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	avg := make(map[string]float64, len(c.latencies))
	for k, samples := range c.latencies {
		if len(samples) == 0 {
			continue
		}
		var total time.Duration
		for _, l := range samples {
			total += l
		}
		avg[k] = float64(total.Milliseconds()) / float64(len(samples))
	}

	return Snapshot{
		Updates:          copyCounts(c.updates),
		ProviderFailures: copyCounts(c.providerFailures),
		Clears:           copyCounts(c.clears),
		Delivered:        copyCounts(c.delivered),
		DeliveryFailures: copyCounts(c.deliveryFailures),
		AvgLatencyMs:     avg,
	}
}

// Reset clears all metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

func (c *Collector) reset() {
	c.updates = make(map[string]int64)
	c.providerFailures = make(map[string]int64)
	c.clears = make(map[string]int64)
	c.delivered = make(map[string]int64)
	c.deliveryFailures = make(map[string]int64)
	c.latencies = make(map[string][]time.Duration)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
