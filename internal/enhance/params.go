package enhance

import (
	"math"

	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/processing/filters"
)

const (
	// BaseKernelSize is used when the target is no noisier than the reference.
	BaseKernelSize = filters.MinKernelSize
	// BaseAlpha is used when both images are equally sharp.
	BaseAlpha = 9

	// DefaultKernelSize and DefaultAlpha are the stand-alone defaults of
	// ReduceNoise and Sharpen callers.
	DefaultKernelSize = 5
	DefaultAlpha      = BaseAlpha

	noiseStep     = 10.0
	maxNoiseSteps = 7
	sharpenStep   = 10.0
	softenStep    = 20.0
)

// Parameters are the filter settings chosen for one reference/target pair,
// together with the readings they were derived from.
type Parameters struct {
	KernelSize int         `json:"kernel_size" yaml:"kernel_size"`
	Alpha      int         `json:"alpha" yaml:"alpha"`
	Reference  Measurement `json:"reference" yaml:"reference"`
	Target     Measurement `json:"target" yaml:"target"`
}

// KernelSizeFor maps the noise of the reference and of the target to a median
// kernel size in {3,5,7,9}. Only a target noisier than the reference gets more
// than the base size; every 10 units of extra noise is one step, at most 7.
func KernelSizeFor(noiseRef, noiseTarget float64) int {
	if !(noiseTarget > noiseRef) {
		return BaseKernelSize
	}

	diff := steps(noiseTarget-noiseRef, noiseStep, maxNoiseSteps)

	size := BaseKernelSize + diff
	if diff%2 == 0 {
		size++
	}
	// The parity step above lands on an even size; median kernels must be odd.
	if size%2 == 0 {
		size++
	}

	return min(size, filters.MaxKernelSize)
}

// AlphaFor maps the sharpness of the reference and of the target to the
// center weight of the sharpening kernel, clamped to [5,15]. A blurrier
// target gains one step per 10 units; a sharper one loses one per 20.
func AlphaFor(sharpRef, sharpTarget float64) int {
	if math.IsNaN(sharpRef) || math.IsNaN(sharpTarget) {
		return BaseAlpha
	}

	var alpha int
	if sharpTarget < sharpRef {
		alpha = BaseAlpha + steps(sharpRef-sharpTarget, sharpenStep, filters.MaxAlpha)
	} else {
		alpha = BaseAlpha - steps(sharpTarget-sharpRef, softenStep, filters.MaxAlpha)
	}

	return max(filters.MinAlpha, min(alpha, filters.MaxAlpha))
}

// steps returns floor(delta/step) bounded to [0, limit]. The bound is applied
// before the integer conversion so huge or infinite deltas cannot overflow.
func steps(delta, step float64, limit int) int {
	n := math.Floor(delta / step)
	switch {
	case math.IsNaN(n), n <= 0:
		return 0
	case n >= float64(limit):
		return limit
	default:
		return int(n)
	}
}

// SelectKernelSize measures the noise of both images and returns KernelSizeFor.
func SelectKernelSize(reference, target *safe.Mat) (int, error) {
	noiseRef, err := EstimateNoiseLevel(reference)
	if err != nil {
		return 0, err
	}

	noiseTarget, err := EstimateNoiseLevel(target)
	if err != nil {
		return 0, err
	}

	return KernelSizeFor(noiseRef, noiseTarget), nil
}

// SelectAlpha measures the sharpness of both images and returns AlphaFor.
func SelectAlpha(reference, target *safe.Mat) (int, error) {
	sharpRef, err := EstimateSharpness(reference)
	if err != nil {
		return 0, err
	}

	sharpTarget, err := EstimateSharpness(target)
	if err != nil {
		return 0, err
	}

	return AlphaFor(sharpRef, sharpTarget), nil
}

// ParametersFor derives both settings from already taken readings.
func ParametersFor(reference, target Measurement) Parameters {
	return Parameters{
		KernelSize: KernelSizeFor(reference.Noise, target.Noise),
		Alpha:      AlphaFor(reference.Sharpness, target.Sharpness),
		Reference:  reference,
		Target:     target,
	}
}
