package filters

import (
	"context"
	"errors"
	"fmt"
	"image"

	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ErrInvalidParameter is returned when a filter parameter is outside its domain.
var ErrInvalidParameter = errors.New("invalid filter parameter")

const (
	ParamKernelSize = "kernel_size"
	ParamAlpha      = "alpha"

	MinKernelSize = 3
	MaxKernelSize = 9
	MinAlpha      = 5
	MaxAlpha      = 15
)

// MedianFilter replaces every pixel with the median of its kernel_size x kernel_size neighborhood.
type MedianFilter struct{}

func NewMedianFilter() *MedianFilter {
	return &MedianFilter{}
}

func (m *MedianFilter) Name() string {
	return "median_filter"
}

func (m *MedianFilter) ShouldExecute(params map[string]interface{}) bool {
	_, ok := params[ParamKernelSize].(int)
	return ok
}

func (m *MedianFilter) Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	kernelSize, ok := params[ParamKernelSize].(int)
	if !ok {
		return nil, fmt.Errorf("%w: %s missing", ErrInvalidParameter, ParamKernelSize)
	}

	return MedianBlur(input, kernelSize)
}

func MedianBlur(src *safe.Mat, kernelSize int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "median blur"); err != nil {
		return nil, err
	}

	if kernelSize < MinKernelSize || kernelSize > MaxKernelSize || kernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: kernel size %d must be odd and within [%d,%d]",
			ErrInvalidParameter, kernelSize, MinKernelSize, MaxKernelSize)
	}

	result, err := safe.NewMat(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	resultMat := result.GetMat()
	if err := gocv.MedianBlur(srcMat, &resultMat, kernelSize); err != nil {
		result.Close()
		return nil, fmt.Errorf("median blur with kernel %d failed: %w", kernelSize, err)
	}

	return result, nil
}

// SharpenFilter convolves with a 3x3 high-pass kernel: -1 everywhere, alpha at the center.
type SharpenFilter struct{}

func NewSharpenFilter() *SharpenFilter {
	return &SharpenFilter{}
}

func (s *SharpenFilter) Name() string {
	return "sharpen_filter"
}

func (s *SharpenFilter) ShouldExecute(params map[string]interface{}) bool {
	_, ok := params[ParamAlpha].(int)
	return ok
}

func (s *SharpenFilter) Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	alpha, ok := params[ParamAlpha].(int)
	if !ok {
		return nil, fmt.Errorf("%w: %s missing", ErrInvalidParameter, ParamAlpha)
	}

	return Sharpen(input, alpha)
}

func Sharpen(src *safe.Mat, alpha int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "sharpen"); err != nil {
		return nil, err
	}

	if alpha < MinAlpha || alpha > MaxAlpha {
		return nil, fmt.Errorf("%w: alpha %d must be within [%d,%d]",
			ErrInvalidParameter, alpha, MinAlpha, MaxAlpha)
	}

	kernel := SharpenKernel(alpha)
	defer kernel.Close()

	result, err := safe.NewMat(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	resultMat := result.GetMat()
	err = gocv.Filter2D(srcMat, &resultMat, -1, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault)
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("sharpen with alpha %d failed: %w", alpha, err)
	}

	return result, nil
}

// SharpenKernel returns the 3x3 CV_32F sharpening kernel. The caller closes it.
func SharpenKernel(alpha int) gocv.Mat {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if y == 1 && x == 1 {
				kernel.SetFloatAt(y, x, float32(alpha))
			} else {
				kernel.SetFloatAt(y, x, -1)
			}
		}
	}
	return kernel
}
