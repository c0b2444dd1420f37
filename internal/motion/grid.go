package motion

import "image"

// Grid is the set of non-overlapping size x size cells scanned in a frame.
// Remainder strips narrower than size are not part of the grid.
type Grid struct {
	Cols, Rows int
	Size       int
}

// NewGrid partitions a width x height frame into size x size cells.
func NewGrid(width, height, size int) Grid {
	if size <= 0 {
		return Grid{Size: size}
	}
	return Grid{Cols: width / size, Rows: height / size, Size: size}
}

// Len returns the number of cells.
func (g Grid) Len() int {
	return g.Cols * g.Rows
}

// Cell returns the top-left corner of the i-th cell in scan order.
// Scan order is column-major: all rows of column 0 first.
func (g Grid) Cell(i int) image.Point {
	return image.Point{X: (i / g.Rows) * g.Size, Y: (i % g.Rows) * g.Size}
}

// Rect returns the pixel rectangle covered by the i-th cell.
func (g Grid) Rect(i int) image.Rectangle {
	p := g.Cell(i)
	return image.Rect(p.X, p.Y, p.X+g.Size, p.Y+g.Size)
}
