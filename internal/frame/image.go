package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extensions lists the file extensions Load can decode.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".webp", ".tif", ".tiff"}

// IsFrameFile reports whether the file name carries a supported extension.
func IsFrameFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes an image file into an RGBA frame.
func Load(path string) (*RGBAFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to an RGBA frame, copying only when needed.
func FromImage(img image.Image) *RGBAFrame {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	// Проверяем, является ли изображение уже RGBA с началом в (0, 0)
	if !ok || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &RGBAFrame{img: rgba}
}

// SavePNG writes the frame as PNG. The file is replaced, not written in place.
func SavePNG(f *RGBAFrame, path string) error {
	tmp := path + ".temp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := png.Encode(out, f.img); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
