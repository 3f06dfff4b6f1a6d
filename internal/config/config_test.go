package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/internal/config"
)

// validConfig returns a config that passes Validate.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{"zero epochs", func(c *config.Config) { c.Train.Epochs = 0 }, "train.epochs"},
		{"negative batch size", func(c *config.Config) { c.Train.BatchSize = -1 }, "train.batch_size"},
		{"zero learning rate", func(c *config.Config) { c.Train.LearningRate = 0 }, "train.learning_rate"},
		{"dropout of one", func(c *config.Config) { c.Train.Dropout = 1 }, "train.dropout"},
		{"negative fraction", func(c *config.Config) { c.Split.Fractions = []float64{0.9, -0.1, 0.2} }, "split.fractions"},
		{"no metrics", func(c *config.Config) { c.Eval.Metrics = nil }, "eval.metrics"},
		{"bad monitor port", func(c *config.Config) { c.Monitor.Enabled = true; c.Monitor.Port = 70000 }, "monitor.port"},
		{"bad monitor mode", func(c *config.Config) { c.Monitor.Enabled = true; c.Monitor.Mode = "prod" }, "monitor.mode"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestMonitorValidationSkippedWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.Enabled = false
	cfg.Monitor.Port = 0
	cfg.Monitor.Mode = "anything"
	require.NoError(t, cfg.Validate())
}
