package filters

import (
	"fmt"

	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// LaplacianVariance returns the population variance of the 3x3 aperture
// Laplacian of a single-channel image, computed in float64.
func LaplacianVariance(gray *safe.Mat) (float64, error) {
	if err := safe.ValidateMatForOperation(gray, "Laplacian variance"); err != nil {
		return 0, err
	}

	if gray.Channels() != 1 {
		return 0, fmt.Errorf("%w: Laplacian variance needs 1 channel, got %d",
			safe.ErrInvalidImage, gray.Channels())
	}

	response := gocv.NewMat()
	defer response.Close()

	if err := gocv.Laplacian(gray.GetMat(), &response, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault); err != nil {
		return 0, fmt.Errorf("Laplacian failed: %w", err)
	}
	if response.Empty() {
		return 0, fmt.Errorf("Laplacian produced no response for %dx%d image", gray.Cols(), gray.Rows())
	}

	data := response
	if !response.IsContinuous() {
		continuous := response.Clone()
		defer continuous.Close()
		data = continuous
	}

	values, err := data.DataPtrFloat64()
	if err != nil {
		return 0, fmt.Errorf("reading Laplacian response failed: %w", err)
	}

	_, variance := stat.PopMeanVariance(values, nil)
	return variance, nil
}
