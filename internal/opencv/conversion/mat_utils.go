package conversion

import (
	"fmt"
	"image"

	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MatProperties contains information about Mat characteristics
type MatProperties struct {
	Rows     int
	Cols     int
	Channels int
	Type     gocv.MatType
	DataType string
	Empty    bool
}

// GetMatProperties returns detailed information about a Mat
func GetMatProperties(mat *safe.Mat) MatProperties {
	if mat == nil {
		return MatProperties{Empty: true}
	}

	return MatProperties{
		Rows:     mat.Rows(),
		Cols:     mat.Cols(),
		Channels: mat.Channels(),
		Type:     mat.Type(),
		DataType: getDataTypeName(mat.Type()),
		Empty:    mat.Empty(),
	}
}

// ResizeMat resizes Mat to new dimensions using specified interpolation
func ResizeMat(src *safe.Mat, newWidth, newHeight int, interpolation gocv.InterpolationFlags) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "Mat resizing"); err != nil {
		return nil, err
	}

	if newWidth <= 0 || newHeight <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", newWidth, newHeight)
	}

	dst, err := safe.NewMat(newHeight, newWidth, src.Type())
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()

	if err := gocv.Resize(srcMat, &dstMat, image.Point{X: newWidth, Y: newHeight}, 0, 0, interpolation); err != nil {
		dst.Close()
		return nil, fmt.Errorf("resize to %dx%d failed: %w", newWidth, newHeight, err)
	}

	return dst, nil
}

// ResizeArea resizes src with pixel-area resampling.
func ResizeArea(src *safe.Mat, width, height int) (*safe.Mat, error) {
	return ResizeMat(src, width, height, gocv.InterpolationArea)
}

func getDataTypeName(matType gocv.MatType) string {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return "8UC1"
	case gocv.MatTypeCV8UC3:
		return "8UC3"
	case gocv.MatTypeCV8UC4:
		return "8UC4"
	case gocv.MatTypeCV32FC1:
		return "32FC1"
	case gocv.MatTypeCV64FC1:
		return "64FC1"
	default:
		return fmt.Sprintf("type(%d)", int(matType))
	}
}
