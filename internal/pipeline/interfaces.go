package pipeline

import (
	"context"

	"reference-enhancer/internal/opencv/safe"
)

// ImageLoader reads an image from a path or from encoded bytes.
type ImageLoader interface {
	LoadFromPath(ctx context.Context, path string) (*ImageData, error)
	LoadFromBytes(ctx context.Context, data []byte, extension string) (*ImageData, error)
}

// ImageSaver encodes a Mat into the format implied by the destination.
type ImageSaver interface {
	SaveToPath(ctx context.Context, path string, mat *safe.Mat) error
}

// ImageData is a decoded image and where it came from. It owns Mat.
type ImageData struct {
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Format   string
	Path     string
}

func (d *ImageData) Close() {
	if d != nil && d.Mat != nil {
		d.Mat.Close()
	}
}
