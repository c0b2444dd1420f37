package frame

import (
	"image"
	"image/color"
)

// Frame is a mutable 2D pixel buffer addressed by integer (x, y).
// Coordinates are relative to the top-left corner of the frame.
type Frame interface {
	Width() int
	Height() int
	Pixel(x, y int) color.RGBA
	SetPixel(x, y int, c color.RGBA)
}

// RGBAFrame implements Frame on top of *image.RGBA.
type RGBAFrame struct {
	img *image.RGBA
}

// NewRGBAFrame creates a zero-filled frame of the given size.
func NewRGBAFrame(width, height int) *RGBAFrame {
	return &RGBAFrame{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// FromRGBA wraps an existing image without copying it.
// The image origin is normalized so that (0, 0) is always the top-left pixel.
func FromRGBA(img *image.RGBA) *RGBAFrame {
	if img.Rect.Min != (image.Point{}) {
		img = img.SubImage(img.Rect).(*image.RGBA)
		img.Rect = img.Rect.Sub(img.Rect.Min)
	}
	return &RGBAFrame{img: img}
}

func (f *RGBAFrame) Width() int  { return f.img.Rect.Dx() }
func (f *RGBAFrame) Height() int { return f.img.Rect.Dy() }

func (f *RGBAFrame) Pixel(x, y int) color.RGBA {
	i := f.img.PixOffset(x, y)
	p := f.img.Pix[i : i+4 : i+4]
	return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

func (f *RGBAFrame) SetPixel(x, y int, c color.RGBA) {
	i := f.img.PixOffset(x, y)
	p := f.img.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Image returns the underlying buffer. Writes to it are visible through the frame.
func (f *RGBAFrame) Image() *image.RGBA {
	return f.img
}

// SameSize reports whether two frames have identical dimensions.
func SameSize(a, b Frame) bool {
	return a.Width() == b.Width() && a.Height() == b.Height()
}
