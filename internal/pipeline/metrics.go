package pipeline

import (
	"fmt"
	"math"

	"reference-enhancer/internal/opencv/conversion"
	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// CalculatePSNR compares two images of equal size on their grayscale
// versions. Identical images give +Inf rather than OpenCV's capped value.
func CalculatePSNR(original, processed *safe.Mat) (float64, error) {
	if err := safe.ValidateMatForOperation(original, "PSNR"); err != nil {
		return 0, err
	}
	if err := safe.ValidateMatForOperation(processed, "PSNR"); err != nil {
		return 0, err
	}

	if original.Rows() != processed.Rows() || original.Cols() != processed.Cols() {
		return 0, fmt.Errorf("image dimensions must match: original %dx%d, processed %dx%d",
			original.Cols(), original.Rows(), processed.Cols(), processed.Rows())
	}

	origGray, err := conversion.ConvertToGrayscale(original)
	if err != nil {
		return 0, err
	}
	defer origGray.Close()

	procGray, err := conversion.ConvertToGrayscale(processed)
	if err != nil {
		return 0, err
	}
	defer procGray.Close()

	a := origGray.GetMat()
	b := procGray.GetMat()
	if gocv.NormWithMats(a, b, gocv.NormL2) == 0 {
		return math.Inf(1), nil
	}

	return gocv.PSNR(a, b), nil
}
