package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// Snapshot summarizes collected metrics for the health endpoint.
type MetricsSnapshot struct {
	Uptime        string           `json:"uptime"`
	RequestCount  uint64           `json:"requestCount"`
	ErrorCount    uint64           `json:"errorCount"`
	AvgLatencyMs  map[string]int64 `json:"avgLatencyMs"`
	SampleCounts  map[string]int   `json:"sampleCounts"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := MetricsSnapshot{
		Uptime:       time.Since(mc.systemStartTime).String(),
		RequestCount: mc.requestCount,
		ErrorCount:   mc.errorCount,
		AvgLatencyMs: make(map[string]int64),
		SampleCounts: make(map[string]int),
	}

	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, ns := range samples {
			total += ns
		}
		snap.AvgLatencyMs[op] = total / int64(len(samples)) / int64(time.Millisecond)
		snap.SampleCounts[op] = len(samples)
	}

	return snap
}
