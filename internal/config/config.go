// Package config defines the toolkit's configuration structures.  No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// DataConfig holds dataset location and preprocessing parameters.
type DataConfig struct {
	// Root is the directory holding dataset files.
	Root string `mapstructure:"root"`
	// CachePath is the sqlite file for materialised transform results.
	// Empty disables caching.
	CachePath string `mapstructure:"cache_path"`
	// PDBDir holds structure files for contact-map transforms.
	PDBDir string `mapstructure:"pdb_dir"`
	// NumWorkers bounds parallel preprocessing.  Zero means NumCPU.
	NumWorkers int `mapstructure:"num_workers"`
	// SkipInvalid drops rows that fail preprocessing instead of aborting.
	SkipInvalid bool `mapstructure:"skip_invalid"`
}

// SplitConfig holds dataset split parameters.
type SplitConfig struct {
	Method    string    `mapstructure:"method"` // "random_split" | "k_fold" | "cold_split" | "scaffold_split"
	Fractions []float64 `mapstructure:"fractions"`
	Seed      int64     `mapstructure:"seed"`
	K         int       `mapstructure:"k"`
	// SampleFrac optionally subsamples before splitting.
	SampleFrac float64 `mapstructure:"sample_frac"`
	GroupAttr  string  `mapstructure:"group_attr"`
}

// TrainConfig holds model and optimisation parameters.
type TrainConfig struct {
	Model           string  `mapstructure:"model"`
	Epochs          int     `mapstructure:"epochs"`
	BatchSize       int     `mapstructure:"batch_size"`
	Optimizer       string  `mapstructure:"optimizer"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	WeightDecay     float64 `mapstructure:"weight_decay"`
	GradAccumSteps  int     `mapstructure:"grad_accum_steps"`
	Seed            int64   `mapstructure:"seed"`
	Dropout         float64 `mapstructure:"dropout"`
	Hidden          []int   `mapstructure:"hidden"`
	FingerprintBits int     `mapstructure:"fingerprint_bits"`
	KmerK           int     `mapstructure:"kmer_k"`
	MaxAtoms        int     `mapstructure:"max_atoms"`
	LabelThreshold  float64 `mapstructure:"label_threshold"`
	Shuffle         bool    `mapstructure:"shuffle"`
	NumWorkers      int     `mapstructure:"num_workers"`
}

// EvalConfig holds evaluation parameters.
type EvalConfig struct {
	Metrics []string `mapstructure:"metrics"`
	// Threshold binarises predictions for classification metrics.
	Threshold float64 `mapstructure:"threshold"`
}

// MonitorConfig holds the telemetry HTTP server tunables.
type MonitorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// Config is the root configuration structure.  Every command reads its
// settings from the relevant sub-struct.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Split   SplitConfig   `mapstructure:"split"`
	Train   TrainConfig   `mapstructure:"train"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered; callers should treat any error as
// fatal.
func (c *Config) Validate() error {
	// Train
	if c.Train.Epochs < 1 {
		return fmt.Errorf("config: train.epochs must be >= 1, got %d", c.Train.Epochs)
	}
	if c.Train.BatchSize < 1 {
		return fmt.Errorf("config: train.batch_size must be >= 1, got %d", c.Train.BatchSize)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("config: train.learning_rate must be positive, got %g", c.Train.LearningRate)
	}
	if c.Train.GradAccumSteps < 1 {
		return fmt.Errorf("config: train.grad_accum_steps must be >= 1, got %d", c.Train.GradAccumSteps)
	}
	if c.Train.Dropout < 0 || c.Train.Dropout >= 1 {
		return fmt.Errorf("config: train.dropout %g is out of range [0, 1)", c.Train.Dropout)
	}

	// Split
	for _, f := range c.Split.Fractions {
		if f <= 0 {
			return fmt.Errorf("config: split.fractions must all be positive, got %g", f)
		}
	}

	// Eval
	if len(c.Eval.Metrics) == 0 {
		return fmt.Errorf("config: eval.metrics must name at least one metric")
	}

	// Monitor
	if c.Monitor.Enabled {
		if c.Monitor.Port < 1 || c.Monitor.Port > 65535 {
			return fmt.Errorf("config: monitor.port %d is out of range [1, 65535]", c.Monitor.Port)
		}
		switch c.Monitor.Mode {
		case "debug", "release", "test":
		default:
			return fmt.Errorf("config: monitor.mode %q is invalid; expected debug|release|test", c.Monitor.Mode)
		}
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}
