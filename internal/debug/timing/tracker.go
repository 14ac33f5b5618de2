package timing

import (
	"context"
	"sync"
	"time"

	"reference-enhancer/internal/logger"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Tracker records durations per operation name. Completed timings are logged
// at debug level under the "Timing" component.
type Tracker struct {
	timings map[string][]time.Duration
	mu      sync.RWMutex
	logger  logger.Logger
	enabled bool
}

func NewTracker(log logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tracker{
		timings: make(map[string][]time.Duration),
		logger:  log,
		enabled: true,
	}
}

// StartTiming returns a child of parent that carries the start time of operation.
func (tt *Tracker) StartTiming(parent context.Context, operation string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if !tt.isEnabled() {
		return parent
	}

	return context.WithValue(parent, timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: time.Now(),
	})
}

// EndTiming stores and returns the elapsed time since the matching StartTiming.
// It returns zero when ctx carries no timing.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	if !tt.isEnabled() {
		return 0
	}

	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return 0
	}

	duration := time.Since(timingInfo.StartTime)

	tt.mu.Lock()
	tt.timings[timingInfo.Operation] = append(tt.timings[timingInfo.Operation], duration)
	tt.mu.Unlock()

	tt.logger.Debug("Timing", "operation completed", map[string]interface{}{
		"operation":   timingInfo.Operation,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	})

	return duration
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) GetAllTimings() map[string][]time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	result := make(map[string][]time.Duration)
	for operation, timings := range tt.timings {
		result[operation] = make([]time.Duration, len(timings))
		copy(result[operation], timings)
	}
	return result
}

func (tt *Tracker) GetTotalTime(operation string) time.Duration {
	var total time.Duration
	for _, duration := range tt.GetTimings(operation) {
		total += duration
	}
	return total
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	return tt.GetTotalTime(operation) / time.Duration(len(timings))
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) isEnabled() bool {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return tt.enabled
}

func (tt *Tracker) Reset(operation string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if operation == "" {
		tt.timings = make(map[string][]time.Duration)
	} else {
		delete(tt.timings, operation)
	}
}
