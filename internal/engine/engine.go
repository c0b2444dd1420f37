package engine

import (
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framefix/internal/config"
	"github.com/ivlev/framefix/internal/frame"
	"github.com/ivlev/framefix/internal/motion"
)

// ErrDimensionMismatch возвращается New, если размеры кадров не совпадают.
var ErrDimensionMismatch = errors.New("frame dimensions do not match")

// Engine исправляет предсказанный кадр по блокам. Один экземпляр на пару кадров:
// New -> Run -> Save, затем экземпляр выбрасывается.
type Engine struct {
	predicted  frame.Frame
	truth      frame.Frame
	compressed frame.Frame

	blockSize int
	stepSize  int
	maxChecks int
	workers   int
	showStats bool

	width  int
	height int

	blocks []motion.Block
	stats  Stats
}

// Stats - итоги одного прогона детекции.
type Stats struct {
	Cells      int           `yaml:"cells"`      // просканировано ячеек сетки
	Searched   int           `yaml:"searched"`   // ячеек, где запускался поиск
	Corrected  int           `yaml:"corrected"`  // принятых блоков коррекции
	Degenerate int           `yaml:"degenerate"` // поиск не сдвинулся с места
	Rejected   int           `yaml:"rejected"`   // лучший кандидат хуже порога
	Elapsed    time.Duration `yaml:"elapsed"`
}

// outcome ячейки после детекции
type outcome uint8

const (
	outcomeGood outcome = iota
	outcomeCorrected
	outcomeDegenerate
	outcomeRejected
)

// New проверяет кадры и создает движок. Кадры не копируются: predicted будет
// изменен в Run, truth и compressed только читаются.
func New(cfg *config.Config, predicted, truth, compressed frame.Frame) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !frame.SameSize(predicted, truth) {
		return nil, fmt.Errorf("%w: predicted %dx%d, true %dx%d", ErrDimensionMismatch,
			predicted.Width(), predicted.Height(), truth.Width(), truth.Height())
	}
	if !frame.SameSize(truth, compressed) {
		return nil, fmt.Errorf("%w: true %dx%d, compressed %dx%d", ErrDimensionMismatch,
			truth.Width(), truth.Height(), compressed.Width(), compressed.Height())
	}

	return &Engine{
		predicted:  predicted,
		truth:      truth,
		compressed: compressed,
		blockSize:  cfg.BlockSize,
		stepSize:   cfg.StepSize,
		maxChecks:  cfg.MaxChecks,
		workers:    cfg.Workers,
		showStats:  cfg.ShowStats,
		width:      predicted.Width(),
		height:     predicted.Height(),
	}, nil
}

// Run находит расходящиеся блоки и сразу накладывает найденные коррекции на predicted.
// Детекция полностью завершается до первой записи в predicted.
func (e *Engine) Run() {
	start := time.Now()
	e.matchAllBlocks()
	e.drawOver()
	e.stats.Elapsed = time.Since(start)

	if e.showStats {
		fmt.Printf("[*] Коррекция %dx%d (блок %d): ячеек %d, поиск %d, исправлено %d, без сдвига %d, отклонено %d за %s\n",
			e.width, e.height, e.blockSize,
			e.stats.Cells, e.stats.Searched, e.stats.Corrected, e.stats.Degenerate, e.stats.Rejected,
			e.stats.Elapsed.Round(time.Microsecond))
	}
}

// Blocks возвращает накопленные коррекции в порядке обхода сетки.
func (e *Engine) Blocks() []motion.Block {
	out := make([]motion.Block, len(e.blocks))
	copy(out, e.blocks)
	return out
}

func (e *Engine) Stats() Stats {
	return e.stats
}

// Save атомарно записывает список коррекций в path.
func (e *Engine) Save(path string) error {
	return WriteFileAtomic(path, e.blocks)
}

func (e *Engine) matchAllBlocks() {
	grid := motion.NewGrid(e.width, e.height, e.blockSize)
	n := grid.Len()

	// Ячейки независимы: каждая пишет только в свой индекс, блокировки не нужны
	results := make([]motion.Block, n)
	outcomes := make([]outcome, n)

	if e.workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			results[i], outcomes[i] = e.matchBlock(grid.Cell(i))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.workers)

		// Раздаем воркерам полосы по столбцам, а не отдельные ячейки
		chunk := (n + e.workers - 1) / e.workers
		for lo := 0; lo < n; lo += chunk {
			lo, hi := lo, min(lo+chunk, n)
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					results[i], outcomes[i] = e.matchBlock(grid.Cell(i))
				}
				return nil
			})
		}
		g.Wait()
	}

	e.blocks = e.blocks[:0]
	e.stats = Stats{Cells: n}
	for i, o := range outcomes {
		switch o {
		case outcomeCorrected:
			e.blocks = append(e.blocks, results[i])
			e.stats.Searched++
			e.stats.Corrected++
		case outcomeDegenerate:
			e.stats.Searched++
			e.stats.Degenerate++
		case outcomeRejected:
			e.stats.Searched++
			e.stats.Rejected++
		}
	}
}

func (e *Engine) matchBlock(cell image.Point) (motion.Block, outcome) {
	// Неустранимая потеря качества между оригиналом и его сжатой копией - планка приемки
	minMSE := motion.SSD(e.truth, e.compressed, cell.X, cell.Y, cell.X, cell.Y, e.blockSize)
	threshold := minMSE * minMSE

	sum := motion.SSD(e.predicted, e.truth, cell.X, cell.Y, cell.X, cell.Y, e.blockSize)
	if sum < threshold {
		return motion.Block{}, outcomeGood
	}

	result := motion.DiamondSearch(e.truth, e.predicted, cell, cell, motion.SearchParams{
		BlockSize: e.blockSize,
		StepSize:  e.stepSize,
		MaxChecks: e.maxChecks,
		Threshold: threshold,
	})

	switch {
	case result.Degenerate():
		return result, outcomeDegenerate
	case result.Cost > threshold:
		return result, outcomeRejected
	}
	return result, outcomeCorrected
}

// drawOver копирует блоки из truth, поэтому порядок наложения не важен.
func (e *Engine) drawOver() {
	for _, b := range e.blocks {
		copyBlock(e.predicted, e.truth, b.Src, b.Dst, e.blockSize)
	}
}

func copyBlock(dst, src frame.Frame, from, to image.Point, size int) {
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			dst.SetPixel(to.X+x, to.Y+y, src.Pixel(from.X+x, from.Y+y))
		}
	}
}
