// Package config loads and validates the evaluation configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/seqlab/mutcal/internal/calib"
)

// Config is the full evaluation configuration.
type Config struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Report      ReportConfig      `yaml:"report"`
}

// CalibrationConfig selects the calibration variant and binning.
type CalibrationConfig struct {
	Method string `yaml:"method"` // TempS, VectS, FullDiri or FullDiriODIR
	Bins   int    `yaml:"bins"`   // confidence bins for ECE
}

// ReportConfig drives the auxiliary correlation reports.
type ReportConfig struct {
	KmerSizes  []int   `yaml:"kmer_sizes"`  // context sizes, odd, >= 3
	Windows    []int64 `yaml:"windows"`     // regional window widths in bases
	SampleRows int     `yaml:"sample_rows"` // subsample size for self-correlation
	Resamples  int     `yaml:"resamples"`   // self-correlation resampling rounds
	Seed       int64   `yaml:"seed"`        // RNG seed for resampling
}

// Loader handles loading and validation of evaluation configuration.
type Loader struct {
	config *Config
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile loads configuration from a YAML file.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	l.config = &cfg
	return nil
}

// LoadDefault loads the default configuration.
func (l *Loader) LoadDefault() error {
	cfg := Default()
	if err := validate(cfg); err != nil {
		return fmt.Errorf("default config validation failed: %w", err)
	}
	l.config = cfg
	return nil
}

// Config returns the loaded configuration.
func (l *Loader) Config() (*Config, error) {
	if l.config == nil {
		return nil, fmt.Errorf("config not loaded - call LoadFromFile or LoadDefault first")
	}
	return l.config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Calibration: CalibrationConfig{
			Method: string(calib.FullDirichlet),
			Bins:   calib.ReportBins,
		},
		Report: ReportConfig{
			KmerSizes:  []int{3, 5, 7},
			Windows:    []int64{10_000, 100_000},
			SampleRows: 100_000,
			Resamples:  10,
			Seed:       1,
		},
	}
}

func validate(cfg *Config) error {
	if _, err := calib.ParseMethod(cfg.Calibration.Method); err != nil {
		return err
	}
	if cfg.Calibration.Bins <= 0 {
		return fmt.Errorf("calibration.bins must be positive, got %d", cfg.Calibration.Bins)
	}

	for _, k := range cfg.Report.KmerSizes {
		if k < 3 || k%2 == 0 {
			return fmt.Errorf("report.kmer_sizes entries must be odd and >= 3, got %d", k)
		}
	}
	for _, w := range cfg.Report.Windows {
		if w <= 0 {
			return fmt.Errorf("report.windows entries must be positive, got %d", w)
		}
	}
	if cfg.Report.SampleRows <= 0 {
		return fmt.Errorf("report.sample_rows must be positive, got %d", cfg.Report.SampleRows)
	}
	if cfg.Report.Resamples <= 0 {
		return fmt.Errorf("report.resamples must be positive, got %d", cfg.Report.Resamples)
	}
	return nil
}
