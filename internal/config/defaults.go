package config

import "time"

// Default value constants.
const (
	DefaultDataRoot = "data"

	DefaultSplitMethod = "random_split"

	DefaultModel        = "mlp-dti"
	DefaultEpochs       = 50
	DefaultBatchSize    = 32
	DefaultOptimizer    = "adam"
	DefaultLearningRate = 1e-3

	DefaultMetricThreshold = 0.5

	DefaultMonitorPort = 8080
	DefaultMonitorMode = "release"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the toolkit
// default.  Fields already set by the caller are left unchanged so explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Data.Root == "" {
		cfg.Data.Root = DefaultDataRoot
	}

	if cfg.Split.Method == "" {
		cfg.Split.Method = DefaultSplitMethod
	}
	if len(cfg.Split.Fractions) == 0 {
		cfg.Split.Fractions = []float64{0.8, 0.1, 0.1}
	}
	if cfg.Split.K == 0 {
		cfg.Split.K = 5
	}

	if cfg.Train.Model == "" {
		cfg.Train.Model = DefaultModel
	}
	if cfg.Train.Epochs == 0 {
		cfg.Train.Epochs = DefaultEpochs
	}
	if cfg.Train.BatchSize == 0 {
		cfg.Train.BatchSize = DefaultBatchSize
	}
	if cfg.Train.Optimizer == "" {
		cfg.Train.Optimizer = DefaultOptimizer
	}
	if cfg.Train.LearningRate == 0 {
		cfg.Train.LearningRate = DefaultLearningRate
	}
	if cfg.Train.GradAccumSteps == 0 {
		cfg.Train.GradAccumSteps = 1
	}

	if len(cfg.Eval.Metrics) == 0 {
		cfg.Eval.Metrics = []string{"accuracy", "roc_auc"}
	}
	if cfg.Eval.Threshold == 0 {
		cfg.Eval.Threshold = DefaultMetricThreshold
	}

	if cfg.Monitor.Port == 0 {
		cfg.Monitor.Port = DefaultMonitorPort
	}
	if cfg.Monitor.Mode == "" {
		cfg.Monitor.Mode = DefaultMonitorMode
	}
	if cfg.Monitor.ReadTimeout == 0 {
		cfg.Monitor.ReadTimeout = 10 * time.Second
	}
	if cfg.Monitor.WriteTimeout == 0 {
		cfg.Monitor.WriteTimeout = 10 * time.Second
	}
	if cfg.Monitor.ShutdownTimeout == 0 {
		cfg.Monitor.ShutdownTimeout = 5 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
