package motion

import "image"

// Block describes a correction: the block_size square at Src replaces the one at Dst.
type Block struct {
	Dst  image.Point // top-left corner in the predicted frame (x_start, y_start)
	Src  image.Point // top-left corner of the matched block (x_end, y_end)
	Cost float64     // matching cost at Src, never persisted
}

// Degenerate reports whether the block carries no displacement.
func (b Block) Degenerate() bool {
	return b.Dst == b.Src
}
