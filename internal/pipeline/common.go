package pipeline

import (
	"path/filepath"
	"strings"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatTIFF = "tiff"
	FormatBMP  = "bmp"
	FormatGIF  = "gif"
	FormatWebP = "webp"

	DefaultJPEGQuality = 95
)

// FormatFromExtension maps a file extension (with or without the dot) to a
// format name. Unknown extensions return "".
func FormatFromExtension(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg", "jpe":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "tif", "tiff":
		return FormatTIFF
	case "bmp":
		return FormatBMP
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	default:
		return ""
	}
}

func FormatFromPath(path string) string {
	return FormatFromExtension(filepath.Ext(path))
}
