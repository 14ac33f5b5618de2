package filters

import (
	"context"
	"testing"

	"reference-enhancer/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func uniformMat(t *testing.T, rows, cols int, matType gocv.MatType, value float64) *safe.Mat {
	t.Helper()

	tmp := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), rows, cols, matType)
	defer tmp.Close()

	m, err := safe.NewMatFromMat(tmp)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestMedianBlurRemovesImpulse(t *testing.T) {
	src := uniformMat(t, 9, 9, gocv.MatTypeCV8UC1, 100)
	raw := src.GetMat()
	raw.SetUCharAt(4, 4, 255)

	out, err := MedianBlur(src, 3)
	require.NoError(t, err)
	defer out.Close()

	result := out.GetMat()
	assert.Equal(t, uint8(100), result.GetUCharAt(4, 4))
	assert.Equal(t, uint8(255), raw.GetUCharAt(4, 4), "input must not be modified")
}

func TestMedianBlurKernelDomain(t *testing.T) {
	src := uniformMat(t, 9, 9, gocv.MatTypeCV8UC3, 10)

	for _, k := range []int{-1, 0, 1, 2, 4, 8, 10, 11} {
		_, err := MedianBlur(src, k)
		assert.ErrorIs(t, err, ErrInvalidParameter, "kernel %d", k)
	}

	for _, k := range []int{3, 5, 7, 9} {
		out, err := MedianBlur(src, k)
		require.NoError(t, err, "kernel %d", k)
		assert.Equal(t, src.Rows(), out.Rows())
		assert.Equal(t, src.Channels(), out.Channels())
		out.Close()
	}
}

func TestMedianBlurInvalidImage(t *testing.T) {
	_, err := MedianBlur(nil, 3)
	assert.ErrorIs(t, err, safe.ErrInvalidImage)
}

func TestSharpenKernel(t *testing.T) {
	kernel := SharpenKernel(12)
	defer kernel.Close()

	require.Equal(t, 3, kernel.Rows())
	require.Equal(t, 3, kernel.Cols())

	var sum float32
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			v := kernel.GetFloatAt(y, x)
			if y == 1 && x == 1 {
				assert.Equal(t, float32(12), v)
			} else {
				assert.Equal(t, float32(-1), v)
			}
			sum += v
		}
	}
	assert.Equal(t, float32(4), sum)
}

func TestSharpenFlatImage(t *testing.T) {
	src := uniformMat(t, 6, 6, gocv.MatTypeCV8UC1, 100)

	// Kernel weights sum to alpha-8, so alpha 9 leaves flat regions unchanged.
	out, err := Sharpen(src, 9)
	require.NoError(t, err)
	defer out.Close()

	result := out.GetMat()
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			assert.Equal(t, uint8(100), result.GetUCharAt(y, x))
		}
	}

	// alpha 5 gives a negative weight sum, which saturates to zero.
	dark, err := Sharpen(src, 5)
	require.NoError(t, err)
	defer dark.Close()

	darkMat := dark.GetMat()
	assert.Equal(t, uint8(0), darkMat.GetUCharAt(3, 3))
}

func TestSharpenAlphaDomain(t *testing.T) {
	src := uniformMat(t, 4, 4, gocv.MatTypeCV8UC3, 50)

	for _, a := range []int{0, 4, 16, 100} {
		_, err := Sharpen(src, a)
		assert.ErrorIs(t, err, ErrInvalidParameter, "alpha %d", a)
	}
}

func TestStepsHonourParams(t *testing.T) {
	median := NewMedianFilter()
	sharpen := NewSharpenFilter()

	assert.Equal(t, "median_filter", median.Name())
	assert.Equal(t, "sharpen_filter", sharpen.Name())

	params := map[string]interface{}{ParamKernelSize: 3}
	assert.True(t, median.ShouldExecute(params))
	assert.False(t, sharpen.ShouldExecute(params))

	src := uniformMat(t, 5, 5, gocv.MatTypeCV8UC3, 80)
	out, err := median.Apply(context.Background(), src, params)
	require.NoError(t, err)
	out.Close()

	_, err = sharpen.Apply(context.Background(), src, params)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestStepsStopOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := uniformMat(t, 5, 5, gocv.MatTypeCV8UC3, 80)
	params := map[string]interface{}{ParamKernelSize: 3, ParamAlpha: 9}

	_, err := NewMedianFilter().Apply(ctx, src, params)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewSharpenFilter().Apply(ctx, src, params)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLaplacianVarianceUniformIsZero(t *testing.T) {
	gray := uniformMat(t, 20, 20, gocv.MatTypeCV8UC1, 123)

	v, err := LaplacianVariance(gray)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestLaplacianVarianceSinglePeak(t *testing.T) {
	gray := uniformMat(t, 5, 5, gocv.MatTypeCV8UC1, 0)
	raw := gray.GetMat()
	raw.SetUCharAt(2, 2, 255)

	// Response: -1020 at the peak, +255 at its four neighbours, zero elsewhere.
	v, err := LaplacianVariance(gray)
	require.NoError(t, err)
	assert.InDelta(t, 52020.0, v, 1e-6)
}

func TestLaplacianVarianceRejectsColor(t *testing.T) {
	color := uniformMat(t, 5, 5, gocv.MatTypeCV8UC3, 0)

	_, err := LaplacianVariance(color)
	assert.ErrorIs(t, err, safe.ErrInvalidImage)

	_, err = LaplacianVariance(nil)
	assert.ErrorIs(t, err, safe.ErrInvalidImage)
}
