package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/framefix/internal/config"
	"github.com/ivlev/framefix/internal/frame"
	"github.com/ivlev/framefix/internal/system"
)

// Папки рабочего пространства пакетного режима
const (
	PredictedDir  = "predicted"
	TrueDir       = "true"
	CompressedDir = "compressed"
	CorrectedDir  = "corrected"
	CorrectionDir = "correction_data"
	ReportFile    = "report.yaml"
)

// Batch прогоняет коррекцию по последовательности кадров в рабочем пространстве.
type Batch struct {
	Config *config.Config
}

type Report struct {
	Build     string        `yaml:"build,omitempty"`
	Workspace string        `yaml:"workspace"`
	Started   time.Time     `yaml:"started"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Total     Stats         `yaml:"total"`
	Frames    []FrameReport `yaml:"frames"`
}

type FrameReport struct {
	Index int    `yaml:"index"`
	Stats Stats  `yaml:"stats"`
	Error string `yaml:"error,omitempty"`
}

func NewBatch(cfg *config.Config) *Batch {
	return &Batch{Config: cfg}
}

// CorrectionPath - путь к файлу коррекций кадра n.
func CorrectionPath(workspace string, n int) string {
	return filepath.Join(workspace, CorrectionDir, fmt.Sprintf("correction_%d.txt", n))
}

func (b *Batch) Run(ctx context.Context) (*Report, error) {
	cfg := b.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws := cfg.Workspace
	numbers, err := system.FindFrames(filepath.Join(ws, PredictedDir), cfg.FrameExt)
	if err != nil {
		return nil, err
	}
	numbers = selectRange(numbers, cfg.FirstFrame, cfg.LastFrame)
	if len(numbers) == 0 {
		return nil, fmt.Errorf("нет кадров в диапазоне %d..%d", cfg.FirstFrame, cfg.LastFrame)
	}

	for _, d := range []string{CorrectedDir, CorrectionDir} {
		if err := os.MkdirAll(filepath.Join(ws, d), 0755); err != nil {
			return nil, err
		}
	}

	// Параллелим по кадрам, сетку внутри кадра обходим последовательно
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if first, err := frame.Load(system.FramePath(filepath.Join(ws, PredictedDir), numbers[0], cfg.FrameExt)); err == nil {
		workers = system.CheckMemory(first.Width(), first.Height(), workers)
	}
	if workers > len(numbers) {
		workers = len(numbers)
	}

	frameCfg := *cfg
	frameCfg.Workers = 1

	report := &Report{
		Build:     cfg.BuildVersion,
		Workspace: ws,
		Started:   time.Now(),
		Frames:    make([]FrameReport, len(numbers)),
	}

	fmt.Println("--- [FRAMEFIX: BATCH] ---")
	fmt.Printf("[*] Рабочая папка: %s | Кадров: %d | Потоков: %d\n", ws, len(numbers), workers)
	fmt.Printf("[*] Блок: %d | Шаг: %d | max_checks: %d\n", cfg.BlockSize, cfg.StepSize, cfg.MaxChecks)
	fmt.Println("-----------------------------")

	var done atomic.Int32
	var failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, n := range numbers {
		if ctx.Err() != nil {
			break
		}
		i, n := i, n
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats, err := b.correctFrame(&frameCfg, n)
			report.Frames[i] = FrameReport{Index: n, Stats: stats}
			if err != nil {
				log.Printf("[!] Ошибка коррекции кадра %d: %v", n, err)
				report.Frames[i].Error = err.Error()
				failed.Add(1)
				return nil
			}
			fmt.Printf("[>] Ready: %d/%d\n", done.Add(1), len(numbers))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(report.Started)
	for _, fr := range report.Frames {
		report.Total.Cells += fr.Stats.Cells
		report.Total.Searched += fr.Stats.Searched
		report.Total.Corrected += fr.Stats.Corrected
		report.Total.Degenerate += fr.Stats.Degenerate
		report.Total.Rejected += fr.Stats.Rejected
		report.Total.Elapsed += fr.Stats.Elapsed
	}

	if err := WriteReport(report, filepath.Join(ws, ReportFile)); err != nil {
		log.Printf("[!] Не удалось записать %s: %v", ReportFile, err)
	}

	if cfg.ShowStats {
		fmt.Printf(
			"--- [PERFORMANCE REPORT] ---\n"+
				"Build: %s\n"+
				"Total Time: %.2fs\n"+
				"Frames: %d\n"+
				"Corrected blocks: %d of %d cells\n"+
				"Effective FPS: %.2f\n"+
				"----------------------------\n",
			cfg.BuildVersion, report.Elapsed.Seconds(), len(numbers),
			report.Total.Corrected, report.Total.Cells,
			float64(len(numbers))/report.Elapsed.Seconds(),
		)
	}

	if n := failed.Load(); n > 0 {
		return report, fmt.Errorf("%d из %d кадров не исправлены. Проверьте лог", n, len(numbers))
	}
	return report, nil
}

func (b *Batch) correctFrame(cfg *config.Config, n int) (Stats, error) {
	ws, ext := cfg.Workspace, cfg.FrameExt

	var predicted, truth, compressed *frame.RGBAFrame
	var g errgroup.Group
	for _, job := range []struct {
		dir string
		dst **frame.RGBAFrame
	}{
		{PredictedDir, &predicted},
		{TrueDir, &truth},
		{CompressedDir, &compressed},
	} {
		job := job
		g.Go(func() error {
			f, err := frame.Load(system.FramePath(filepath.Join(ws, job.dir), n, ext))
			if err != nil {
				return err
			}
			*job.dst = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	e, err := New(cfg, predicted, truth, compressed)
	if err != nil {
		return Stats{}, err
	}
	e.Run()

	if err := e.Save(CorrectionPath(ws, n)); err != nil {
		return e.Stats(), err
	}
	// Исправленный кадр пишем как PNG независимо от входного формата
	out := system.FramePath(filepath.Join(ws, CorrectedDir), n, ".png")
	if err := frame.SavePNG(predicted, out); err != nil {
		return e.Stats(), err
	}
	return e.Stats(), nil
}

func selectRange(numbers []int, first, last int) []int {
	var out []int
	for _, n := range numbers {
		if n < first || (last != 0 && n > last) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// WriteReport сохраняет отчет пакетного прогона в YAML.
func WriteReport(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadReport читает отчет пакетного прогона.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
