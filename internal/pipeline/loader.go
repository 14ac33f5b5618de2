package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/conversion"
	"reference-enhancer/internal/opencv/safe"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Loader struct {
	logger logger.Logger
	timing *timing.Tracker
}

func NewLoader(log logger.Logger, tracker *timing.Tracker) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	if tracker == nil {
		tracker = timing.NewTracker(log)
	}
	return &Loader{logger: log, timing: tracker}
}

// LoadFromPath reads and decodes the file at path. A missing, empty or
// undecodable file yields safe.ErrInvalidImage.
func (l *Loader) LoadFromPath(ctx context.Context, path string) (*ImageData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	timingCtx := l.timing.StartTiming(ctx, "load_from_path")
	defer l.timing.EndTiming(timingCtx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", safe.ErrInvalidImage, path, err)
	}

	l.logger.Debug("ImageLoader", "image data read", map[string]interface{}{
		"path":       path,
		"size_bytes": len(data),
	})

	imageData, err := l.LoadFromBytes(ctx, data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	imageData.Path = path
	return imageData, nil
}

// LoadFromBytes decodes with OpenCV as a 3-channel BGR image. Formats OpenCV
// was built without are decoded by the Go codecs instead.
func (l *Loader) LoadFromBytes(ctx context.Context, data []byte, extension string) (*ImageData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no image data", safe.ErrInvalidImage)
	}

	timingCtx := l.timing.StartTiming(ctx, "load_from_bytes")
	defer l.timing.EndTiming(timingCtx)

	sniffed := sniffFormat(data)

	mat, err := l.decodeOpenCV(data)
	if err != nil {
		l.logger.Debug("ImageLoader", "OpenCV decode failed, trying Go codecs", map[string]interface{}{
			"error":  err.Error(),
			"format": sniffed,
		})

		mat, err = l.decodeStdlib(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", safe.ErrInvalidImage, err)
		}
	}

	format := determineActualFormat(extension, sniffed)
	imageData := &ImageData{
		Mat:      mat,
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Format:   format,
	}

	props := conversion.GetMatProperties(mat)
	l.logger.Info("ImageLoader", "image loaded", map[string]interface{}{
		"width":     props.Cols,
		"height":    props.Rows,
		"channels":  props.Channels,
		"data_type": props.DataType,
		"format":    format,
	})

	return imageData, nil
}

func (l *Loader) decodeOpenCV(data []byte) (*safe.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("OpenCV decode: %w", err)
	}
	return safe.Adopt(mat, "decoded image")
}

func (l *Loader) decodeStdlib(data []byte) (*safe.Mat, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unrecognised image format")
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	return conversion.ImageToMat(img)
}

func sniffFormat(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return format
}

// determineActualFormat prefers the sniffed content type over the extension.
func determineActualFormat(extension, sniffed string) string {
	if sniffed != "" {
		return sniffed
	}
	if format := FormatFromExtension(extension); format != "" {
		return format
	}
	return "unknown"
}
