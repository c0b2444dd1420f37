package motion

import (
	"image"

	"github.com/ivlev/framefix/internal/frame"
)

// SearchParams bounds a diamond search.
type SearchParams struct {
	BlockSize int     // edge of the compared squares
	StepSize  int     // initial search radius
	MaxChecks int     // cap on distinct candidate centers evaluated, the start excluded
	Threshold float64 // cost considered good enough to stop early
}

// DiamondSearch looks in b for the block_size square that best matches the one
// anchored at ref in a, radiating from start. It alternates a large diamond probe
// (cardinal points at the current step, diagonals at half of it) with step halving.
//
// The returned Block has Dst = ref and Src = the best center found. When the start
// itself is never beaten the block is degenerate. A search cut off by MaxChecks
// returns the best result seen so far.
func DiamondSearch(a, b frame.Frame, ref, start image.Point, p SearchParams) Block {
	s := newSearcher(a, b, ref, p)
	return s.run(start)
}

type searcher struct {
	a, b    frame.Frame
	ref     image.Point
	p       SearchParams
	maxX    int
	maxY    int
	visited map[image.Point]float64
	checks  int
}

func newSearcher(a, b frame.Frame, ref image.Point, p SearchParams) *searcher {
	return &searcher{
		a:       a,
		b:       b,
		ref:     ref,
		p:       p,
		maxX:    b.Width() - p.BlockSize,
		maxY:    b.Height() - p.BlockSize,
		visited: make(map[image.Point]float64),
	}
}

func (s *searcher) run(start image.Point) Block {
	best := s.clamp(start)
	bestCost := s.cost(best)

	step := s.p.StepSize
	if step < 1 {
		step = 1
	}

	for s.checks < s.p.MaxChecks && bestCost > s.p.Threshold {
		next, nextCost := best, bestCost
		for _, off := range pattern(step) {
			if s.checks >= s.p.MaxChecks {
				break
			}
			c := s.clamp(best.Add(off))
			if c == best {
				continue
			}
			cost, seen := s.visited[c]
			if !seen {
				cost = s.cost(c)
				s.checks++
			}
			if cost < nextCost {
				next, nextCost = c, cost
			}
		}

		if next != best {
			best, bestCost = next, nextCost
			continue
		}
		if step == 1 {
			break
		}
		step /= 2
	}

	return Block{Dst: s.ref, Src: best, Cost: bestCost}
}

// cost evaluates a candidate center and remembers it.
func (s *searcher) cost(c image.Point) float64 {
	if v, ok := s.visited[c]; ok {
		return v
	}
	v := SSD(s.a, s.b, s.ref.X, s.ref.Y, c.X, c.Y, s.p.BlockSize)
	s.visited[c] = v
	return v
}

// clamp keeps the candidate square inside b.
func (s *searcher) clamp(c image.Point) image.Point {
	c.X = clampInt(c.X, 0, s.maxX)
	c.Y = clampInt(c.Y, 0, s.maxY)
	return c
}

// pattern returns the large diamond offsets for the given step.
func pattern(step int) [8]image.Point {
	diag := step / 2
	if diag < 1 {
		diag = 1
	}
	return [8]image.Point{
		{X: 0, Y: -step},
		{X: step, Y: 0},
		{X: 0, Y: step},
		{X: -step, Y: 0},
		{X: diag, Y: -diag},
		{X: diag, Y: diag},
		{X: -diag, Y: diag},
		{X: -diag, Y: -diag},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
