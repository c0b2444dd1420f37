package motion

import "github.com/ivlev/framefix/internal/frame"

// SSD returns the sum of squared per-channel differences (R, G, B) between the
// size x size square anchored at (ax, ay) in a and the one anchored at (bx, by) in b.
// Alpha is ignored. Both squares must lie inside their frames.
func SSD(a, b frame.Frame, ax, ay, bx, by, size int) float64 {
	var sum int64
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			pa := a.Pixel(ax+dx, ay+dy)
			pb := b.Pixel(bx+dx, by+dy)

			dr := int64(pa.R) - int64(pb.R)
			dg := int64(pa.G) - int64(pb.G)
			db := int64(pa.B) - int64(pb.B)
			sum += dr*dr + dg*dg + db*db
		}
	}
	return float64(sum)
}
