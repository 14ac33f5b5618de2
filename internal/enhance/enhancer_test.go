package enhance

import (
	"bytes"
	"context"
	"testing"

	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestSelectorsOnIdenticalImages(t *testing.T) {
	img := noisyImage(t, 40, 40, 100, 25, 1)

	k, err := SelectKernelSize(img, img)
	require.NoError(t, err)
	assert.Equal(t, 3, k)

	a, err := SelectAlpha(img, img)
	require.NoError(t, err)
	assert.Equal(t, 9, a)
}

func TestSelectorsUniformReferenceNoisyTarget(t *testing.T) {
	reference := uniformImage(t, 100, 100, 128)
	target := noisyImage(t, 100, 100, 128, 20, 42)

	noiseRef, err := EstimateNoiseLevel(reference)
	require.NoError(t, err)
	noiseTarget, err := EstimateNoiseLevel(target)
	require.NoError(t, err)
	require.Greater(t, noiseTarget, noiseRef)

	k, err := SelectKernelSize(reference, target)
	require.NoError(t, err)
	assert.Equal(t, KernelSizeFor(noiseRef, noiseTarget), k)
	assert.Greater(t, k, 3)

	sharpRef, err := EstimateSharpness(reference)
	require.NoError(t, err)
	sharpTarget, err := EstimateSharpness(target)
	require.NoError(t, err)

	a, err := SelectAlpha(reference, target)
	require.NoError(t, err)
	assert.Equal(t, AlphaFor(sharpRef, sharpTarget), a)
}

func TestSelectorsInvalidImage(t *testing.T) {
	img := uniformImage(t, 10, 10, 1)

	_, err := SelectKernelSize(nil, img)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = SelectAlpha(img, nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestEnhanceIdenticalUsesBaseParameters(t *testing.T) {
	img := noisyImage(t, 32, 48, 90, 10, 5)
	before := matBytes(t, img)

	tracker := timing.NewTracker(nil)
	result, err := NewEnhancer(nil, tracker).Enhance(context.Background(), img, img)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, BaseKernelSize, result.Parameters.KernelSize)
	assert.Equal(t, BaseAlpha, result.Parameters.Alpha)
	assert.Equal(t, before, matBytes(t, img), "input must not be modified")

	blurred, err := ReduceNoise(img, 3)
	require.NoError(t, err)
	defer blurred.Close()
	expected, err := Sharpen(blurred, 9)
	require.NoError(t, err)
	defer expected.Close()

	assert.Equal(t, matBytes(t, expected), matBytes(t, result.Image))
	assert.Len(t, tracker.GetTimings("median_filter"), 1)
	assert.Len(t, tracker.GetTimings("sharpen_filter"), 1)
}

func TestEnhanceIsDeterministic(t *testing.T) {
	reference := noisyImage(t, 50, 60, 128, 4, 2)
	target := noisyImage(t, 50, 60, 128, 30, 3)
	refBefore := matBytes(t, reference)

	first, err := Enhance(reference, target)
	require.NoError(t, err)
	defer first.Close()

	second, err := Enhance(reference, target)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, bytes.Equal(matBytes(t, first), matBytes(t, second)))
	assert.Equal(t, refBefore, matBytes(t, reference))
	assert.Equal(t, target.Rows(), first.Rows())
	assert.Equal(t, target.Cols(), first.Cols())
	assert.Equal(t, target.Type(), first.Type())
}

func TestEnhanceDifferentSizes(t *testing.T) {
	reference := noisyImage(t, 20, 30, 100, 5, 8)
	target := noisyImage(t, 64, 48, 100, 5, 9)

	out, err := Enhance(reference, target)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 64, out.Rows())
	assert.Equal(t, 48, out.Cols())
}

func TestEnhanceGrayscale(t *testing.T) {
	reference := matFromBytes(t, 24, 24, gocv.MatTypeCV8UC1, texture(24, 24, 1))
	target := matFromBytes(t, 24, 24, gocv.MatTypeCV8UC1, texture(24, 24, 2))

	out, err := Enhance(reference, target)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 1, out.Channels())
}

func TestEnhanceInvalidImage(t *testing.T) {
	img := uniformImage(t, 8, 8, 50)

	_, err := Enhance(nil, img)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = Enhance(img, nil)
	assert.ErrorIs(t, err, ErrInvalidImage)

	empty, err := safe.NewMat(1, 1, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	empty.Close()

	_, err = Enhance(img, empty)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestEnhanceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := uniformImage(t, 8, 8, 50)
	_, err := NewEnhancer(nil, nil).Enhance(ctx, img, img)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyRejectsOutOfRangeSettings(t *testing.T) {
	img := uniformImage(t, 8, 8, 50)
	e := NewEnhancer(nil, nil)

	_, err := e.Apply(context.Background(), img, 4, 9)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = e.Apply(context.Background(), img, 3, 16)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestResultCloseIsSafe(t *testing.T) {
	var r *Result
	r.Close()
	(&Result{}).Close()
}
