package engine

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ivlev/framefix/internal/config"
	"github.com/ivlev/framefix/internal/frame"
	"github.com/ivlev/framefix/internal/motion"
)

var gray = color.RGBA{R: 100, G: 100, B: 100, A: 255}

func uniform(w, h int, c color.RGBA) *frame.RGBAFrame {
	f := frame.NewRGBAFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.SetPixel(x, y, c)
		}
	}
	return f
}

func patterned(w, h int) *frame.RGBAFrame {
	f := frame.NewRGBAFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.SetPixel(x, y, color.RGBA{
				R: uint8((x * 17) ^ (y * 31)),
				G: uint8((x * 43) + (y * 13)),
				B: uint8((x * 7) ^ (y * 11)),
				A: 255,
			})
		}
	}
	return f
}

func testConfig(blockSize, stepSize int) *config.Config {
	cfg := config.Default()
	cfg.BlockSize = blockSize
	cfg.StepSize = stepSize
	return cfg
}

// divergentScene: 4x4 ячейки по 2 пикселя, predicted отличается в одной ячейке (2,2)
func divergentScene() (predicted, truth, compressed *frame.RGBAFrame) {
	truth = uniform(8, 8, gray)
	compressed = uniform(8, 8, gray)
	predicted = uniform(8, 8, gray)
	for y := 2; y < 4; y++ {
		for x := 2; x < 4; x++ {
			predicted.SetPixel(x, y, color.RGBA{R: 250, A: 255})
		}
	}
	return predicted, truth, compressed
}

func TestNewDimensionMismatch(t *testing.T) {
	tests := []struct {
		name                         string
		predicted, truth, compressed frame.Frame
	}{
		{"predicted vs true", frame.NewRGBAFrame(8, 8), frame.NewRGBAFrame(8, 6), frame.NewRGBAFrame(8, 6)},
		{"width only", frame.NewRGBAFrame(10, 8), frame.NewRGBAFrame(8, 8), frame.NewRGBAFrame(8, 8)},
		{"compressed", frame.NewRGBAFrame(8, 8), frame.NewRGBAFrame(8, 8), frame.NewRGBAFrame(4, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(testConfig(2, 2), tt.predicted, tt.truth, tt.compressed)
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Expected ErrDimensionMismatch, got %v", err)
			}
			if e != nil {
				t.Error("Expected no engine on error")
			}
		})
	}
}

func TestNewInvalidConfig(t *testing.T) {
	f := frame.NewRGBAFrame(8, 8)
	_, err := New(testConfig(0, 2), f, f, f)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunIdenticalFrames(t *testing.T) {
	predicted := patterned(16, 16)
	truth := patterned(16, 16)
	compressed := patterned(16, 16)

	e, err := New(testConfig(2, 4), predicted, truth, compressed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Run()

	if n := len(e.Blocks()); n != 0 {
		t.Errorf("Expected no corrections, got %d", n)
	}
	if !reflect.DeepEqual(predicted.Image().Pix, truth.Image().Pix) {
		t.Error("Predicted frame changed")
	}
	if s := e.Stats(); s.Cells != 64 || s.Corrected != 0 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestRunSingleDivergentCell(t *testing.T) {
	predicted, truth, compressed := divergentScene()

	e, err := New(testConfig(2, 2), predicted, truth, compressed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Run()

	blocks := e.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("Expected exactly one correction, got %d: %+v", len(blocks), blocks)
	}
	b := blocks[0]
	if b.Dst != image.Pt(2, 2) {
		t.Errorf("Expected correction at (2,2), got %v", b.Dst)
	}
	if b.Degenerate() {
		t.Error("Correction must not be degenerate")
	}
	if b.Cost != 0 {
		t.Errorf("Expected zero cost, got %f", b.Cost)
	}

	for y := 2; y < 4; y++ {
		for x := 2; x < 4; x++ {
			if got := predicted.Pixel(x, y); got != gray {
				t.Errorf("Pixel (%d,%d) = %v, expected %v", x, y, got, gray)
			}
		}
	}

	s := e.Stats()
	if s.Cells != 16 || s.Corrected != 1 || s.Searched != s.Corrected+s.Degenerate+s.Rejected {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestRunRejectsOverThreshold(t *testing.T) {
	// Уникальный узор: точного совпадения рядом нет, а порог нулевой
	truth := patterned(8, 8)
	compressed := patterned(8, 8)
	predicted := patterned(8, 8)
	for y := 4; y < 6; y++ {
		for x := 4; x < 6; x++ {
			predicted.SetPixel(x, y, color.RGBA{A: 255})
		}
	}
	before := frame.Snapshot(predicted)
	defer frame.Release(before)

	e, err := New(testConfig(2, 2), predicted, truth, compressed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Run()

	for _, b := range e.Blocks() {
		if b.Dst == image.Pt(4, 4) && b.Cost > 0 {
			t.Errorf("Accepted block over threshold: %+v", b)
		}
	}
	if e.Stats().Corrected == 0 && !reflect.DeepEqual(predicted.Image().Pix, before.Image().Pix) {
		t.Error("Predicted frame changed without corrections")
	}
}

func TestRunRemainderStripIgnored(t *testing.T) {
	truth := uniform(9, 9, gray)
	compressed := uniform(9, 9, gray)
	predicted := uniform(9, 9, gray)
	red := color.RGBA{R: 255, A: 255}
	for i := 0; i < 9; i++ {
		predicted.SetPixel(8, i, red)
		predicted.SetPixel(i, 8, red)
	}

	e, err := New(testConfig(2, 2), predicted, truth, compressed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Run()

	if len(e.Blocks()) != 0 {
		t.Errorf("Expected no corrections, got %+v", e.Blocks())
	}
	if e.Stats().Cells != 16 {
		t.Errorf("Expected 16 cells, got %d", e.Stats().Cells)
	}
	if predicted.Pixel(8, 8) != red {
		t.Error("Remainder strip must not be touched")
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	truth := patterned(32, 24)
	compressed := patterned(32, 24)
	for y := 0; y < 24; y += 3 {
		for x := 0; x < 32; x += 5 {
			c := compressed.Pixel(x, y)
			c.G ^= 4
			compressed.SetPixel(x, y, c)
		}
	}

	run := func(workers int) ([]motion.Block, []uint8) {
		predicted := frame.NewRGBAFrame(32, 24)
		for y := 0; y < 24; y++ {
			for x := 0; x < 32; x++ {
				predicted.SetPixel(x, y, truth.Pixel((x+2)%32, (y+1)%24))
			}
		}
		cfg := testConfig(4, 4)
		cfg.Workers = workers
		e, err := New(cfg, predicted, truth, compressed)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		e.Run()
		return e.Blocks(), predicted.Image().Pix
	}

	seqBlocks, seqPix := run(1)
	for _, w := range []int{2, 3, 8, 64} {
		parBlocks, parPix := run(w)
		if !reflect.DeepEqual(seqBlocks, parBlocks) {
			t.Errorf("workers=%d: blocks differ from sequential run", w)
		}
		if !reflect.DeepEqual(seqPix, parPix) {
			t.Errorf("workers=%d: corrected frame differs from sequential run", w)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	predicted, truth, compressed := divergentScene()
	e, err := New(testConfig(2, 2), predicted, truth, compressed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Run()

	path := filepath.Join(t.TempDir(), "correction.txt")
	if err := e.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".temp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind")
	}

	read, err := ReadBlocks(path)
	if err != nil {
		t.Fatalf("ReadBlocks failed: %v", err)
	}
	want := e.Blocks()
	if len(read) != len(want) {
		t.Fatalf("Expected %d blocks, got %d", len(want), len(read))
	}
	for i := range want {
		if read[i].Dst != want[i].Dst || read[i].Src != want[i].Src {
			t.Errorf("Block %d: expected %v->%v, got %v->%v", i, want[i].Src, want[i].Dst, read[i].Src, read[i].Dst)
		}
	}
}
