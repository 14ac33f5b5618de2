// Package enhance adjusts the noise and sharpness of a target image towards
// a reference image. Both are measured with the variance of the Laplacian;
// the differences pick a median-blur kernel size and a sharpening strength
// that are applied to the target in that order.
package enhance

import (
	"context"
	"fmt"

	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/processing/chain"
	"reference-enhancer/internal/processing/filters"
)

var (
	ErrInvalidImage     = safe.ErrInvalidImage
	ErrInvalidParameter = filters.ErrInvalidParameter
)

// Result owns the enhanced image. Close releases it.
type Result struct {
	Image      *safe.Mat
	Parameters Parameters
}

func (r *Result) Close() {
	if r != nil && r.Image != nil {
		r.Image.Close()
	}
}

type Enhancer struct {
	logger logger.Logger
	timing *timing.Tracker
	chain  *chain.ProcessingChain
}

func NewEnhancer(log logger.Logger, tracker *timing.Tracker) *Enhancer {
	if log == nil {
		log = logger.NewNop()
	}
	if tracker == nil {
		tracker = timing.NewTracker(log)
	}

	steps := []chain.ProcessingStep{
		filters.NewMedianFilter(),
		filters.NewSharpenFilter(),
	}

	return &Enhancer{
		logger: log,
		timing: tracker,
		chain:  chain.NewProcessingChain(steps, log, tracker),
	}
}

// Measure returns the noise and sharpness readings of img.
func (e *Enhancer) Measure(ctx context.Context, img *safe.Mat) (Measurement, error) {
	select {
	case <-ctx.Done():
		return Measurement{}, ctx.Err()
	default:
	}

	timingCtx := e.timing.StartTiming(ctx, "measure")
	defer e.timing.EndTiming(timingCtx)

	return Measure(img)
}

// SelectParameters measures both images and derives the filter settings.
func (e *Enhancer) SelectParameters(ctx context.Context, reference, target *safe.Mat) (Parameters, error) {
	refMeasurement, err := e.Measure(ctx, reference)
	if err != nil {
		return Parameters{}, fmt.Errorf("reference: %w", err)
	}

	targetMeasurement, err := e.Measure(ctx, target)
	if err != nil {
		return Parameters{}, fmt.Errorf("target: %w", err)
	}

	params := ParametersFor(refMeasurement, targetMeasurement)

	e.logger.Debug("Enhancer", "parameters selected", map[string]interface{}{
		"kernel_size":         params.KernelSize,
		"alpha":               params.Alpha,
		"reference_noise":     refMeasurement.Noise,
		"target_noise":        targetMeasurement.Noise,
		"reference_sharpness": refMeasurement.Sharpness,
		"target_sharpness":    targetMeasurement.Sharpness,
	})

	return params, nil
}

// Enhance median-blurs target and then sharpens it, with settings derived
// from the difference to reference. Neither input is modified.
func (e *Enhancer) Enhance(ctx context.Context, reference, target *safe.Mat) (*Result, error) {
	params, err := e.SelectParameters(ctx, reference, target)
	if err != nil {
		return nil, err
	}

	out, err := e.Apply(ctx, target, params.KernelSize, params.Alpha)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Enhancer", "image enhanced", map[string]interface{}{
		"kernel_size": params.KernelSize,
		"alpha":       params.Alpha,
		"width":       out.Cols(),
		"height":      out.Rows(),
	})

	return &Result{Image: out, Parameters: params}, nil
}

// Apply runs the median blur and the sharpen pass with explicit settings.
func (e *Enhancer) Apply(ctx context.Context, target *safe.Mat, kernelSize, alpha int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(target, "enhance"); err != nil {
		return nil, err
	}
	if err := safe.ValidateDepth(target, "enhance"); err != nil {
		return nil, err
	}

	out, err := e.chain.Execute(ctx, target, map[string]interface{}{
		filters.ParamKernelSize: kernelSize,
		filters.ParamAlpha:      alpha,
	})
	if err != nil {
		return nil, fmt.Errorf("enhancing target: %w", err)
	}

	return out, nil
}

// Enhance runs a silent Enhancer once and returns only the image.
func Enhance(reference, target *safe.Mat) (*safe.Mat, error) {
	result, err := NewEnhancer(nil, nil).Enhance(context.Background(), reference, target)
	if err != nil {
		return nil, err
	}
	return result.Image, nil
}

// ReduceNoise median-blurs img with an odd kernel size in [3,9].
func ReduceNoise(img *safe.Mat, kernelSize int) (*safe.Mat, error) {
	return filters.MedianBlur(img, kernelSize)
}

// Sharpen convolves img with the 3x3 kernel of -1 around alpha, alpha in [5,15].
func Sharpen(img *safe.Mat, alpha int) (*safe.Mat, error) {
	return filters.Sharpen(img, alpha)
}
