package domain

import (
	"sync/atomic"
	"time"
)

// ExecutionMetrics aggregates counters across every run of one engine
// instance. Writers use atomic increments; readers take a snapshot copy.
type ExecutionMetrics struct {
	RunsStarted   int64 `json:"runs_started"`
	RunsCompleted int64 `json:"runs_completed"`
	RunsFailed    int64 `json:"runs_failed"`
	RunsCancelled int64 `json:"runs_cancelled"`
	RunsPaused    int64 `json:"runs_paused"`
	RunsResumed   int64 `json:"runs_resumed"`

	NodesExecuted  int64 `json:"nodes_executed"`
	NodesSucceeded int64 `json:"nodes_succeeded"`
	NodesFailed    int64 `json:"nodes_failed"`
	NodesSkipped   int64 `json:"nodes_skipped"`
	NodesRetried   int64 `json:"nodes_retried"`
	NodesTimedOut  int64 `json:"nodes_timed_out"`

	TotalExecutionTimeNs int64 `json:"total_execution_time_ns"`
	NodeExecutionCount   int64 `json:"node_execution_count"`
}

func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

func (m *ExecutionMetrics) IncrementRunsStarted()   { atomic.AddInt64(&m.RunsStarted, 1) }
func (m *ExecutionMetrics) IncrementRunsCompleted() { atomic.AddInt64(&m.RunsCompleted, 1) }
func (m *ExecutionMetrics) IncrementRunsFailed()    { atomic.AddInt64(&m.RunsFailed, 1) }
func (m *ExecutionMetrics) IncrementRunsCancelled() { atomic.AddInt64(&m.RunsCancelled, 1) }
func (m *ExecutionMetrics) IncrementRunsPaused()    { atomic.AddInt64(&m.RunsPaused, 1) }
func (m *ExecutionMetrics) IncrementRunsResumed()   { atomic.AddInt64(&m.RunsResumed, 1) }

func (m *ExecutionMetrics) IncrementNodesExecuted()  { atomic.AddInt64(&m.NodesExecuted, 1) }
func (m *ExecutionMetrics) IncrementNodesSucceeded() { atomic.AddInt64(&m.NodesSucceeded, 1) }
func (m *ExecutionMetrics) IncrementNodesFailed()    { atomic.AddInt64(&m.NodesFailed, 1) }
func (m *ExecutionMetrics) IncrementNodesSkipped()   { atomic.AddInt64(&m.NodesSkipped, 1) }
func (m *ExecutionMetrics) IncrementNodesRetried()   { atomic.AddInt64(&m.NodesRetried, 1) }
func (m *ExecutionMetrics) IncrementNodesTimedOut()  { atomic.AddInt64(&m.NodesTimedOut, 1) }

func (m *ExecutionMetrics) AddExecutionTime(duration time.Duration) {
	atomic.AddInt64(&m.TotalExecutionTimeNs, int64(duration))
	atomic.AddInt64(&m.NodeExecutionCount, 1)
}

func (m *ExecutionMetrics) GetSnapshot() ExecutionMetrics {
	return ExecutionMetrics{
		RunsStarted:          atomic.LoadInt64(&m.RunsStarted),
		RunsCompleted:        atomic.LoadInt64(&m.RunsCompleted),
		RunsFailed:           atomic.LoadInt64(&m.RunsFailed),
		RunsCancelled:        atomic.LoadInt64(&m.RunsCancelled),
		RunsPaused:           atomic.LoadInt64(&m.RunsPaused),
		RunsResumed:          atomic.LoadInt64(&m.RunsResumed),
		NodesExecuted:        atomic.LoadInt64(&m.NodesExecuted),
		NodesSucceeded:       atomic.LoadInt64(&m.NodesSucceeded),
		NodesFailed:          atomic.LoadInt64(&m.NodesFailed),
		NodesSkipped:         atomic.LoadInt64(&m.NodesSkipped),
		NodesRetried:         atomic.LoadInt64(&m.NodesRetried),
		NodesTimedOut:        atomic.LoadInt64(&m.NodesTimedOut),
		TotalExecutionTimeNs: atomic.LoadInt64(&m.TotalExecutionTimeNs),
		NodeExecutionCount:   atomic.LoadInt64(&m.NodeExecutionCount),
	}
}

func (m *ExecutionMetrics) GetAverageExecutionTime() time.Duration {
	totalNs := atomic.LoadInt64(&m.TotalExecutionTimeNs)
	count := atomic.LoadInt64(&m.NodeExecutionCount)

	if count == 0 {
		return 0
	}

	return time.Duration(totalNs / count)
}

// RunMetrics is the per-run rollup kept on the run handle. It is written
// only by the scheduler and read through snapshot copies.
type RunMetrics struct {
	TotalNodes     int                      `json:"total_nodes"`
	NodesSucceeded int                      `json:"nodes_succeeded"`
	NodesFailed    int                      `json:"nodes_failed"`
	NodesSkipped   int                      `json:"nodes_skipped"`
	NodesRetried   int                      `json:"nodes_retried"`
	PeakMemoryMB   float64                  `json:"peak_memory_mb"`
	NodeDurations  map[string]time.Duration `json:"node_durations,omitempty"`
	Decisions      []RecoveryDecision       `json:"decisions,omitempty"`
}

func (m RunMetrics) Clone() RunMetrics {
	out := m
	out.NodeDurations = make(map[string]time.Duration, len(m.NodeDurations))
	for id, d := range m.NodeDurations {
		out.NodeDurations[id] = d
	}
	out.Decisions = append([]RecoveryDecision(nil), m.Decisions...)
	return out
}
