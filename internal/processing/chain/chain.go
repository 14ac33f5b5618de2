package chain

import (
	"context"
	"fmt"

	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/safe"
)

type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error)
	Name() string
	ShouldExecute(params map[string]interface{}) bool
}

// ProcessingChain runs steps in order. The input Mat is never modified or
// closed; intermediates are closed as soon as the next step has consumed them.
type ProcessingChain struct {
	steps  []ProcessingStep
	logger logger.Logger
	timing *timing.Tracker
}

func NewProcessingChain(steps []ProcessingStep, log logger.Logger, tracker *timing.Tracker) *ProcessingChain {
	if log == nil {
		log = logger.NewNop()
	}
	if tracker == nil {
		tracker = timing.NewTracker(log)
	}
	return &ProcessingChain{
		steps:  steps,
		logger: log,
		timing: tracker,
	}
}

// Execute returns a new Mat owned by the caller. When no step runs, the
// result is a clone of input.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "processing chain"); err != nil {
		return nil, err
	}

	current := input
	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		default:
		}

		if !step.ShouldExecute(params) {
			pc.logger.Debug("ProcessingChain", "step skipped", map[string]interface{}{
				"step": step.Name(),
			})
			continue
		}

		stepCtx := pc.timing.StartTiming(ctx, step.Name())
		result, err := step.Apply(stepCtx, current, params)
		duration := pc.timing.EndTiming(stepCtx)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		pc.logger.Debug("ProcessingChain", "step applied", map[string]interface{}{
			"step":        step.Name(),
			"duration_ms": float64(duration.Microseconds()) / 1000,
		})

		release()
		current = result
	}

	if current == input {
		return input.Clone()
	}
	return current, nil
}

func (pc *ProcessingChain) AddStep(step ProcessingStep) {
	pc.steps = append(pc.steps, step)
}

func (pc *ProcessingChain) StepCount() int {
	return len(pc.steps)
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
