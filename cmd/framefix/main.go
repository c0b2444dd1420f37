package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ivlev/framefix/internal/config"
	"github.com/ivlev/framefix/internal/engine"
	"github.com/ivlev/framefix/internal/frame"
	"github.com/ivlev/framefix/internal/system"
)

var buildVersion = "dev"

func main() {
	configPtr := flag.String("config", "", "YAML-файл с настройками (флаги имеют приоритет)")
	predictedPtr := flag.String("predicted", "", "Предсказанный кадр (будет исправлен)")
	truePtr := flag.String("true", "", "Оригинальный кадр")
	compressedPtr := flag.String("compressed", "", "Сжатая копия оригинального кадра")
	outputPtr := flag.String("output", "", "Куда сохранить исправленный кадр (по умолчанию поверх -predicted)")
	correctionPtr := flag.String("correction-file", "", "Файл со списком блоков коррекции")
	batchPtr := flag.String("batch", "", "Рабочая папка с predicted/, true/, compressed/ для пакетного режима")
	blockPtr := flag.Int("block-size", 0, "Размер блока коррекции")
	stepPtr := flag.Int("step-size", 0, "Начальный шаг diamond search")
	checksPtr := flag.Int("max-checks", -1, "Лимит кандидатов в diamond search")
	workersPtr := flag.Int("workers", system.CPUCount(), "Потоки")
	firstPtr := flag.Int("first", -1, "Первый кадр (пакетный режим)")
	lastPtr := flag.Int("last", -1, "Последний кадр, 0 - до конца (пакетный режим)")
	extPtr := flag.String("ext", "", "Расширение кадров (пакетный режим)")
	statsPtr := flag.Bool("stats", false, "Показать статистику")
	dumpPtr := flag.String("dump-config", "", "Записать итоговую конфигурацию в YAML и выйти")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка чтения конфига: %v", err)
		}
		cfg = loaded
	}

	// Флаги, заданные явно, перекрывают файл
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "block-size":
			cfg.BlockSize = *blockPtr
		case "step-size":
			cfg.StepSize = *stepPtr
		case "max-checks":
			cfg.MaxChecks = *checksPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "first":
			cfg.FirstFrame = *firstPtr
		case "last":
			cfg.LastFrame = *lastPtr
		case "ext":
			cfg.FrameExt = *extPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "batch":
			cfg.Workspace = *batchPtr
		}
	})
	if *configPtr == "" && !isSet("workers") {
		cfg.Workers = *workersPtr
	}
	cfg.BuildVersion = buildVersion

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] %v", err)
	}

	if *dumpPtr != "" {
		if err := config.Write(cfg, *dumpPtr); err != nil {
			log.Fatalf("[-] Ошибка записи конфига: %v", err)
		}
		fmt.Printf("[+++] Конфигурация сохранена: %s\n", *dumpPtr)
		return
	}

	if cfg.Workspace != "" {
		system.InitResourceLimits()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := engine.NewBatch(cfg).Run(ctx)
		if err != nil {
			log.Fatalf("[-] Ошибка пакетной коррекции: %v", err)
		}
		fmt.Printf("[+++] Успех! Исправлено блоков: %d, кадров: %d\n", report.Total.Corrected, len(report.Frames))
		return
	}

	if *predictedPtr == "" || *truePtr == "" || *compressedPtr == "" || *correctionPtr == "" {
		fmt.Fprintln(os.Stderr, "Нужны -predicted, -true, -compressed и -correction-file (или -batch)")
		flag.Usage()
		os.Exit(2)
	}

	predicted, err := frame.Load(*predictedPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки кадра: %v", err)
	}
	truth, err := frame.Load(*truePtr)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки кадра: %v", err)
	}
	compressed, err := frame.Load(*compressedPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки кадра: %v", err)
	}

	e, err := engine.New(cfg, predicted, truth, compressed)
	if err != nil {
		log.Fatalf("[-] %v", err)
	}
	e.Run()

	if err := e.Save(*correctionPtr); err != nil {
		log.Fatalf("[-] Ошибка сохранения коррекций: %v", err)
	}

	output := *outputPtr
	if output == "" {
		// Пишем всегда PNG, поэтому меняем расширение, если вход был в другом формате
		output = strings.TrimSuffix(*predictedPtr, filepath.Ext(*predictedPtr)) + ".png"
	}
	if err := frame.SavePNG(predicted, output); err != nil {
		log.Fatalf("[-] Ошибка сохранения кадра: %v", err)
	}

	fmt.Printf("[+++] Успех! Блоков коррекции: %d -> %s\n", len(e.Blocks()), *correctionPtr)
}

func isSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
