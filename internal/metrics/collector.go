// Package metrics collects tool call and upstream call statistics for the
// server process.
// file: internal/metrics/collector.go
package metrics

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	StartTime     time.Time     `json:"startTime"`
	Uptime        time.Duration `json:"uptime"`
	GoVersion     string        `json:"goVersion"`
	NumGoroutines int           `json:"numGoroutines"`

	TotalCalls  int                  `json:"totalCalls"`
	FailedCalls int                  `json:"failedCalls"`
	Tools       map[string]CallStats `json:"tools"`

	// Upstream holds per-service stats for the LLM and search backends.
	Upstream map[string]CallStats `json:"upstream"`

	LastErrors []ErrorInfo `json:"lastErrors,omitempty"`
}

// CallStats aggregates calls to one tool or upstream service.
type CallStats struct {
	Calls        int `json:"calls"`
	Failures     int `json:"failures"`
	AvgLatencyMs int `json:"avgLatencyMs"`
}

// ErrorInfo contains details about an error that occurred.
type ErrorInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
}

// Collector accumulates metrics. It is safe for concurrent use.
type Collector struct {
	startTime   time.Time
	totalCalls  int
	failedCalls int
	tools       map[string]*CallStats
	upstream    map[string]*CallStats
	errorBuffer []ErrorInfo
	bufferSize  int
	mu          sync.RWMutex
}

// NewCollector creates a collector keeping the last errorBufferSize errors.
func NewCollector(errorBufferSize int) *Collector {
	if errorBufferSize <= 0 {
		errorBufferSize = 1
	}
	return &Collector{
		startTime:   time.Now(),
		tools:       make(map[string]*CallStats),
		upstream:    make(map[string]*CallStats),
		errorBuffer: make([]ErrorInfo, 0, errorBufferSize),
		bufferSize:  errorBufferSize,
	}
}

// RecordToolCall records one dispatched tool call.
func (c *Collector) RecordToolCall(tool string, latency time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalCalls++
	if failed {
		c.failedCalls++
	}
	record(c.tools, tool, latency, failed)
}

// RecordUpstreamCall records one request to an upstream service.
func (c *Collector) RecordUpstreamCall(service string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record(c.upstream, service, latency, err != nil)
}

func record(m map[string]*CallStats, key string, latency time.Duration, failed bool) {
	stats, ok := m[key]
	if !ok {
		stats = &CallStats{}
		m[key] = stats
	}
	stats.Calls++
	if failed {
		stats.Failures++
	}
	ms := int(latency.Milliseconds())
	// Running mean; float math avoids truncating toward zero on small latencies.
	stats.AvgLatencyMs = int((float64(stats.AvgLatencyMs*(stats.Calls-1)) + float64(ms)) / float64(stats.Calls))
}

// RecordError adds an error to the ring buffer, evicting the oldest entry.
func (c *Collector) RecordError(component, message, stack string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errorBuffer) >= c.bufferSize {
		c.errorBuffer = c.errorBuffer[1:]
	}
	c.errorBuffer = append(c.errorBuffer, ErrorInfo{
		Timestamp: time.Now(),
		Component: component,
		Message:   message,
		Stack:     stack,
	})
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		StartTime:     c.startTime,
		Uptime:        time.Since(c.startTime),
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		TotalCalls:    c.totalCalls,
		FailedCalls:   c.failedCalls,
		Tools:         copyStats(c.tools),
		Upstream:      copyStats(c.upstream),
	}
	if len(c.errorBuffer) > 0 {
		s.LastErrors = make([]ErrorInfo, len(c.errorBuffer))
		copy(s.LastErrors, c.errorBuffer)
	}
	return s
}

func copyStats(m map[string]*CallStats) map[string]CallStats {
	out := make(map[string]CallStats, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

// ToolNames returns the names of tools with at least one recorded call, sorted.
func (s Snapshot) ToolNames() []string {
	names := make([]string, 0, len(s.Tools))
	for name := range s.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
