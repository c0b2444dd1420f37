package engine

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ivlev/framefix/internal/frame"
	"github.com/ivlev/framefix/internal/motion"
)

// ErrMalformedCorrectionFile возвращается ReadBlocks для поврежденного файла.
var ErrMalformedCorrectionFile = errors.New("malformed correction file")

// WriteBlocks пишет по четыре строки на блок: x_start, y_start, x_end, y_end.
// Блоки без смещения пропускаются.
func WriteBlocks(w io.Writer, blocks []motion.Block) error {
	bw := bufio.NewWriter(w)
	for _, b := range blocks {
		if b.Degenerate() {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", b.Dst.X, b.Dst.Y, b.Src.X, b.Src.Y); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFileAtomic пишет блоки во временный файл <path>.temp и переименовывает его в path.
// При ошибке до переименования прежний файл остается нетронутым.
func WriteFileAtomic(path string, blocks []motion.Block) error {
	tmp := path + ".temp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("не удалось создать %s: %w", tmp, err)
	}

	if err := WriteBlocks(f, blocks); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("не удалось переименовать %s -> %s: %w", tmp, path, err)
	}
	return nil
}

// ParseBlocks читает формат WriteBlocks. Cost у прочитанных блоков нулевой.
func ParseBlocks(r io.Reader) ([]motion.Block, error) {
	var values []int
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: строка %d: %q", ErrMalformedCorrectionFile, line, s)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(values)%4 != 0 {
		return nil, fmt.Errorf("%w: %d значений не кратно 4", ErrMalformedCorrectionFile, len(values))
	}

	blocks := make([]motion.Block, 0, len(values)/4)
	for i := 0; i < len(values); i += 4 {
		blocks = append(blocks, motion.Block{
			Dst: image.Point{X: values[i], Y: values[i+1]},
			Src: image.Point{X: values[i+2], Y: values[i+3]},
		})
	}
	return blocks, nil
}

// ReadBlocks читает файл коррекций с диска.
func ReadBlocks(path string) ([]motion.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseBlocks(f)
}

// ApplyFile накладывает сохраненные коррекции на кадр так, как это делает
// следующая стадия пайплайна: источник берется из снимка того же кадра.
func ApplyFile(f frame.Frame, path string, blockSize int) (int, error) {
	blocks, err := ReadBlocks(path)
	if err != nil {
		return 0, err
	}
	if len(blocks) == 0 {
		return 0, nil
	}

	for _, b := range blocks {
		for _, p := range []image.Point{b.Dst, b.Src} {
			if p.X < 0 || p.Y < 0 || p.X+blockSize > f.Width() || p.Y+blockSize > f.Height() {
				return 0, fmt.Errorf("%w: блок %v выходит за кадр %dx%d", ErrMalformedCorrectionFile, p, f.Width(), f.Height())
			}
		}
	}

	snap := frame.Snapshot(f)
	defer frame.Release(snap)
	for _, b := range blocks {
		copyBlock(f, snap, b.Src, b.Dst, blockSize)
	}
	return len(blocks), nil
}
