package system

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// CPUCount возвращает число логических ядер, при ошибке gopsutil - runtime.NumCPU().
func CPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// FrameSetBytes оценивает память под тройку RGBA-кадров одного размера
// плюс снимок для переноса коррекций.
func FrameSetBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4 * 4
}

// CheckMemory предупреждает, если параллельная обработка кадров не влезает в свободную память.
// Возвращает безопасное число одновременно обрабатываемых кадров (не больше want).
func CheckMemory(width, height, want int) int {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("[!] Не удалось получить объем памяти: %v", err)
		return want
	}

	per := FrameSetBytes(width, height)
	if per == 0 {
		return want
	}
	// Оставляем половину свободной памяти системе
	fit := int(vm.Available / 2 / per)
	if fit < 1 {
		fit = 1
	}
	if fit < want {
		fmt.Printf("[!] Свободно %d МБ, параллельно обрабатываем %d кадров вместо %d\n", vm.Available>>20, fit, want)
		return fit
	}
	return want
}

var frameNumber = regexp.MustCompile(`(\d+)$`)

// FindFrames возвращает номера кадров вида frame<N><ext> в папке, по возрастанию.
func FindFrames(dir, ext string) ([]int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var numbers []int
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ext) {
			continue
		}
		name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		if !strings.HasPrefix(name, "frame") {
			continue
		}
		m := frameNumber.FindString(name)
		if m == "" || len(m) != len(name)-len("frame") {
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}

	if len(numbers) == 0 {
		return nil, fmt.Errorf("в папке %s не найдено кадров frame*%s", dir, ext)
	}

	sort.Ints(numbers)
	return numbers, nil
}

// FramePath строит путь к кадру с номером n.
func FramePath(dir string, n int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("frame%d%s", n, ext))
}
