package enhance

import (
	"fmt"

	"reference-enhancer/internal/opencv/conversion"
	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/processing/filters"
)

// Measurement holds the two Laplacian-variance readings of one image.
type Measurement struct {
	Noise     float64 `json:"noise" yaml:"noise"`
	Sharpness float64 `json:"sharpness" yaml:"sharpness"`
}

// EstimateNoiseLevel returns the variance of the Laplacian of the grayscale
// image. Higher means more high-frequency content.
func EstimateNoiseLevel(img *safe.Mat) (float64, error) {
	return grayLaplacianVariance(img, "noise estimation")
}

// EstimateSharpness currently uses the same formula as EstimateNoiseLevel.
func EstimateSharpness(img *safe.Mat) (float64, error) {
	return grayLaplacianVariance(img, "sharpness estimation")
}

// Measure takes both readings of img.
func Measure(img *safe.Mat) (Measurement, error) {
	noise, err := EstimateNoiseLevel(img)
	if err != nil {
		return Measurement{}, err
	}

	sharpness, err := EstimateSharpness(img)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{Noise: noise, Sharpness: sharpness}, nil
}

func grayLaplacianVariance(img *safe.Mat, operation string) (float64, error) {
	if err := safe.ValidateMatForOperation(img, operation); err != nil {
		return 0, err
	}
	if err := safe.ValidateDepth(img, operation); err != nil {
		return 0, err
	}

	gray, err := conversion.ConvertToGrayscale(img)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", operation, err)
	}
	defer gray.Close()

	variance, err := filters.LaplacianVariance(gray)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", operation, err)
	}

	return variance, nil
}
