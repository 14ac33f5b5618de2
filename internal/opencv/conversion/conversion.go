package conversion

import (
	"fmt"
	"image"
	"image/draw"
	"runtime"

	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertToGrayscale converts multi-channel images to single-channel grayscale.
// Single-channel input is cloned.
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return nil, err
	}

	if src.Channels() == 1 {
		return src.Clone()
	}

	dst, err := safe.NewMat(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()

	switch src.Channels() {
	case 3:
		err = gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToGray)
	case 4:
		err = gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRAToGray)
	default:
		err = fmt.Errorf("%w: unsupported channel count: %d", safe.ErrInvalidImage, src.Channels())
	}

	if err != nil {
		dst.Close()
		return nil, fmt.Errorf("grayscale conversion failed: %w", err)
	}

	return dst, nil
}

// MatToImage converts an 8-bit Mat to a standard Go image. BGR becomes RGBA
// with full opacity; BGRA becomes NRGBA.
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}
	if err := safe.ValidateDepth(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}

	rows := src.Rows()
	cols := src.Cols()
	rect := image.Rect(0, 0, cols, rows)

	switch src.Channels() {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, data)
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i+2 < len(data); i, j = i+3, j+4 {
			img.Pix[j] = data[i+2]
			img.Pix[j+1] = data[i+1]
			img.Pix[j+2] = data[i]
			img.Pix[j+3] = 255
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		for i := 0; i+3 < len(data); i += 4 {
			img.Pix[i] = data[i+2]
			img.Pix[i+1] = data[i+1]
			img.Pix[i+2] = data[i]
			img.Pix[i+3] = data[i+3]
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: unsupported channel count: %d", safe.ErrInvalidImage, src.Channels())
	}
}

// ImageToMat converts a Go image to a Mat: *image.Gray becomes CV_8UC1,
// everything else becomes BGR CV_8UC3 with alpha dropped.
func ImageToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: input image is nil", safe.ErrInvalidImage)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "image to Mat conversion"); err != nil {
		return nil, err
	}

	if gray, ok := img.(*image.Gray); ok {
		data := make([]byte, width*height)
		for y := 0; y < height; y++ {
			start := (y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride + (bounds.Min.X - gray.Rect.Min.X)
			copy(data[y*width:(y+1)*width], gray.Pix[start:start+width])
		}
		return fromBytes(height, width, gocv.MatTypeCV8UC1, data)
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	data := make([]byte, width*height*3)
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		data[i] = rgba.Pix[j+2]
		data[i+1] = rgba.Pix[j+1]
		data[i+2] = rgba.Pix[j]
	}

	return fromBytes(height, width, gocv.MatTypeCV8UC3, data)
}

// fromBytes copies data into a new owned Mat.
func fromBytes(rows, cols int, matType gocv.MatType, data []byte) (*safe.Mat, error) {
	tmp, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	if err != nil {
		return nil, fmt.Errorf("Mat creation from bytes failed: %w", err)
	}
	defer tmp.Close()

	mat, err := safe.NewMatFromMat(tmp)
	runtime.KeepAlive(data)
	return mat, err
}
