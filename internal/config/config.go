package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig сообщает о недопустимых параметрах коррекции.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultMaxChecks ограничивает diamond search. Для коррекций держим его маленьким ради скорости.
const DefaultMaxChecks = 8

type Config struct {
	BlockSize int  `yaml:"block_size"`
	StepSize  int  `yaml:"step_size"`
	MaxChecks int  `yaml:"max_checks"`
	Workers   int  `yaml:"workers"` // 0 или 1 - последовательный обход сетки
	ShowStats bool `yaml:"show_stats"`

	// Пакетный режим
	Workspace  string `yaml:"workspace"`
	FrameExt   string `yaml:"frame_ext"`
	FirstFrame int    `yaml:"first_frame"`
	LastFrame  int    `yaml:"last_frame"` // включительно; 0 - до последнего найденного кадра

	BuildVersion string `yaml:"-"`
}

// Default возвращает конфигурацию с параметрами по умолчанию.
func Default() *Config {
	return &Config{
		BlockSize:  2,
		StepSize:   4,
		MaxChecks:  DefaultMaxChecks,
		Workers:    1,
		FrameExt:   ".png",
		FirstFrame: 1,
	}
}

// Load читает YAML поверх значений по умолчанию. Отсутствующие ключи сохраняют дефолт.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	return cfg, nil
}

// Write сохраняет конфигурацию в YAML (используется для шаблона конфига).
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block_size должен быть > 0, получено %d", ErrInvalidConfig, c.BlockSize)
	case c.StepSize <= 0:
		return fmt.Errorf("%w: step_size должен быть > 0, получено %d", ErrInvalidConfig, c.StepSize)
	case c.MaxChecks < 0:
		return fmt.Errorf("%w: max_checks не может быть отрицательным, получено %d", ErrInvalidConfig, c.MaxChecks)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers не может быть отрицательным, получено %d", ErrInvalidConfig, c.Workers)
	case c.FirstFrame < 0 || c.LastFrame < 0:
		return fmt.Errorf("%w: номера кадров не могут быть отрицательными", ErrInvalidConfig)
	case c.LastFrame != 0 && c.LastFrame < c.FirstFrame:
		return fmt.Errorf("%w: last_frame (%d) меньше first_frame (%d)", ErrInvalidConfig, c.LastFrame, c.FirstFrame)
	}
	return nil
}
