// Package config loads the YAML configuration shared by every leaffliction
// command and converts it into the parameter sets of each component.
package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"leaffliction/internal/analysis"
	"leaffliction/internal/augment"
	"leaffliction/internal/logger"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log struct {
		// Level is one of debug, info, warning, error
		Level string `yaml:"level"`

		// Format is console for human-readable output or json
		Format string `yaml:"format"`
	} `yaml:"log"`

	Dataset struct {
		// Extensions lists the image file extensions considered part of a class
		Extensions []string `yaml:"extensions"`
	} `yaml:"dataset"`

	Processing struct {
		// Workers bounds the number of images processed at once
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	Augmentation struct {
		FillColor      string  `yaml:"fillColor"`
		RotateAngle    float64 `yaml:"rotateAngle"`
		BlurScale      float64 `yaml:"blurScale"`
		ContrastCutoff float64 `yaml:"contrastCutoff"`
		CropFraction   float64 `yaml:"cropFraction"`

		// Deform offsets are added to the corners of the full-image quad
		Deform struct {
			UpperLeft  [2]float64 `yaml:"upperLeft"`
			LowerLeft  [2]float64 `yaml:"lowerLeft"`
			LowerRight [2]float64 `yaml:"lowerRight"`
			UpperRight [2]float64 `yaml:"upperRight"`
		} `yaml:"deform"`

		WaveGrid      int     `yaml:"waveGrid"`
		WaveAmplitude float64 `yaml:"waveAmplitude"`
		WavePeriod    float64 `yaml:"wavePeriod"`
	} `yaml:"augmentation"`

	Analysis struct {
		CloseKernel     int    `yaml:"closeKernel"`
		LineThickness   int    `yaml:"lineThickness"`
		BlurKernel      int    `yaml:"blurKernel"`
		LandmarkWindows int    `yaml:"landmarkWindows"`
		LandmarkRadius  int    `yaml:"landmarkRadius"`
		FillColor       string `yaml:"fillColor"`
	} `yaml:"analysis"`

	Plot struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"plot"`

	Output struct {
		// Extension of images written by the transform command
		Extension string `yaml:"extension"`
	} `yaml:"output"`
}

func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Log.Level = "info"
	cfg.Log.Format = "console"

	cfg.Dataset.Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp"}

	cfg.Processing.Workers = runtime.NumCPU()

	ap := augment.DefaultParams()
	cfg.Augmentation.FillColor = FormatColor(ap.FillColor)
	cfg.Augmentation.RotateAngle = ap.RotateAngle
	cfg.Augmentation.BlurScale = ap.BlurScale
	cfg.Augmentation.ContrastCutoff = ap.ContrastCutoff
	cfg.Augmentation.CropFraction = ap.CropFraction
	cfg.Augmentation.Deform.UpperLeft = ap.Deform.UpperLeft
	cfg.Augmentation.Deform.LowerLeft = ap.Deform.LowerLeft
	cfg.Augmentation.Deform.LowerRight = ap.Deform.LowerRight
	cfg.Augmentation.Deform.UpperRight = ap.Deform.UpperRight
	cfg.Augmentation.WaveGrid = ap.WaveGrid
	cfg.Augmentation.WaveAmplitude = ap.WaveAmplitude
	cfg.Augmentation.WavePeriod = ap.WavePeriod

	an := analysis.DefaultParams()
	cfg.Analysis.CloseKernel = an.CloseKernel
	cfg.Analysis.LineThickness = an.LineThickness
	cfg.Analysis.BlurKernel = an.BlurKernel
	cfg.Analysis.LandmarkWindows = an.LandmarkWindows
	cfg.Analysis.LandmarkRadius = an.LandmarkRadius
	cfg.Analysis.FillColor = FormatColor(an.FillColor)

	cfg.Plot.Width = an.PlotWidth
	cfg.Plot.Height = an.PlotHeight

	cfg.Output.Extension = "jpg"

	return cfg
}

// LoadConfig reads configPath over the defaults. A missing file yields the
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	if len(c.Dataset.Extensions) == 0 {
		return fmt.Errorf("dataset.extensions must not be empty")
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return fmt.Errorf("plot size must be positive, got %dx%d", c.Plot.Width, c.Plot.Height)
	}
	if strings.TrimPrefix(c.Output.Extension, ".") == "" {
		return fmt.Errorf("output.extension must not be empty")
	}

	ap, err := c.AugmentParams()
	if err != nil {
		return err
	}
	if err := ap.Validate(); err != nil {
		return fmt.Errorf("augmentation: %w", err)
	}

	an, err := c.AnalysisParams()
	if err != nil {
		return err
	}
	if err := an.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	return nil
}

func (c *Config) AugmentParams() (augment.Params, error) {
	fill, err := ParseColor(c.Augmentation.FillColor)
	if err != nil {
		return augment.Params{}, fmt.Errorf("augmentation.fillColor: %w", err)
	}

	return augment.Params{
		FillColor:      fill,
		RotateAngle:    c.Augmentation.RotateAngle,
		BlurScale:      c.Augmentation.BlurScale,
		ContrastCutoff: c.Augmentation.ContrastCutoff,
		CropFraction:   c.Augmentation.CropFraction,
		Deform: augment.DeformOffsets{
			UpperLeft:  c.Augmentation.Deform.UpperLeft,
			LowerLeft:  c.Augmentation.Deform.LowerLeft,
			LowerRight: c.Augmentation.Deform.LowerRight,
			UpperRight: c.Augmentation.Deform.UpperRight,
		},
		WaveGrid:      c.Augmentation.WaveGrid,
		WaveAmplitude: c.Augmentation.WaveAmplitude,
		WavePeriod:    c.Augmentation.WavePeriod,
	}, nil
}

func (c *Config) AnalysisParams() (analysis.Params, error) {
	fill, err := ParseColor(c.Analysis.FillColor)
	if err != nil {
		return analysis.Params{}, fmt.Errorf("analysis.fillColor: %w", err)
	}

	p := analysis.DefaultParams()
	p.CloseKernel = c.Analysis.CloseKernel
	p.LineThickness = c.Analysis.LineThickness
	p.BlurKernel = c.Analysis.BlurKernel
	p.LandmarkWindows = c.Analysis.LandmarkWindows
	p.LandmarkRadius = c.Analysis.LandmarkRadius
	p.FillColor = fill
	p.PlotWidth = c.Plot.Width
	p.PlotHeight = c.Plot.Height
	return p, nil
}

// ParseColor accepts #rgb and #rrggbb.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
