package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/conversion"
	"reference-enhancer/internal/opencv/safe"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Saver struct {
	logger      logger.Logger
	timing      *timing.Tracker
	jpegQuality int
	createFile  func(name string) (*os.File, error)
}

func NewSaver(log logger.Logger, tracker *timing.Tracker, jpegQuality int) *Saver {
	if log == nil {
		log = logger.NewNop()
	}
	if tracker == nil {
		tracker = timing.NewTracker(log)
	}
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Saver{
		logger:      log,
		timing:      tracker,
		jpegQuality: jpegQuality,
		createFile:  os.Create,
	}
}

// SaveToPath encodes mat in the format implied by the extension of path and
// writes it there. Parent directories are created as needed.
func (s *Saver) SaveToPath(ctx context.Context, path string, mat *safe.Mat) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	timingCtx := s.timing.StartTiming(ctx, "save_to_path")
	defer s.timing.EndTiming(timingCtx)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := s.writeFile(path, mat); err != nil {
		return err
	}

	s.logger.Info("ImageSaver", "image saved", map[string]interface{}{
		"path": path,
	})
	return nil
}

// SaveToWriter encodes mat as format. An empty format means png; formats
// without a Go encoder fall back to png with a warning.
func (s *Saver) SaveToWriter(writer io.Writer, mat *safe.Mat, format string) error {
	img, err := conversion.MatToImage(mat)
	if err != nil {
		return fmt.Errorf("preparing image for encoding: %w", err)
	}

	if format == "" {
		format = FormatPNG
	}

	s.logger.Debug("ImageSaver", "encoding image", map[string]interface{}{
		"format": format,
		"width":  mat.Cols(),
		"height": mat.Rows(),
	})

	switch format {
	case FormatJPEG:
		err = jpeg.Encode(writer, img, &jpeg.Options{Quality: s.jpegQuality})
	case FormatPNG:
		err = png.Encode(writer, img)
	case FormatTIFF:
		err = tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		err = bmp.Encode(writer, img)
	default:
		s.logger.Warning("ImageSaver", "format not supported, using PNG", map[string]interface{}{
			"requested_format": format,
		})
		err = png.Encode(writer, img)
	}

	if err != nil {
		s.logger.Error("ImageSaver", err, map[string]interface{}{
			"format": format,
		})
		return fmt.Errorf("encoding %s: %w", format, err)
	}

	return nil
}

// writeFile encodes mat into path. The file is removed again if any part of
// encoding, flushing or closing fails.
func (s *Saver) writeFile(path string, mat *safe.Mat) (err error) {
	file, err := s.createFile(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	defer func() {
		if err != nil {
			file.Close()
			os.Remove(path)
		}
	}()

	writer := bufio.NewWriter(file)
	if err := s.SaveToWriter(writer, mat, FormatFromPath(path)); err != nil {
		return err
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	return nil
}
