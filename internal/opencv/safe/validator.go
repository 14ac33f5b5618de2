package safe

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidImage marks input that is missing, empty, unreadable or undecodable.
var ErrInvalidImage = errors.New("invalid image")

// MaxDimension bounds either side of an image.
const MaxDimension = 32768

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("%w: Mat is nil for operation: %s", ErrInvalidImage, operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("%w: Mat is closed for operation: %s", ErrInvalidImage, operation)
	}

	if mat.Empty() {
		return fmt.Errorf("%w: Mat is empty for operation: %s", ErrInvalidImage, operation)
	}

	return ValidateDimensions(mat.Cols(), mat.Rows(), operation)
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d for operation: %s",
			ErrInvalidImage, width, height, operation)
	}

	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed maximum size for operation: %s",
			ErrInvalidImage, width, height, operation)
	}

	return nil
}

// ValidateDepth accepts 8-bit unsigned Mats with 1, 3 or 4 channels.
func ValidateDepth(mat *Mat, operation string) error {
	switch mat.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		return nil
	default:
		return fmt.Errorf("%w: unsupported MatType %d for operation: %s",
			ErrInvalidImage, int(mat.Type()), operation)
	}
}
