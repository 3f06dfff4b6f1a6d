package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
data:
  root: "./datasets"
  cache_path: "/tmp/ddk-cache.db"
  num_workers: 4
split:
  method: "scaffold_split"
  fractions: [0.7, 0.15, 0.15]
  seed: 42
train:
  model: "gcn-dti"
  epochs: 20
  batch_size: 64
  optimizer: "adamw"
  learning_rate: 0.0005
  weight_decay: 0.01
  shuffle: true
eval:
  metrics: ["roc_auc", "prc_auc", "accuracy"]
monitor:
  enabled: true
  port: 9091
log:
  level: "debug"
  format: "text"
`

func createTempConfigFile(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./datasets", cfg.Data.Root)
	assert.Equal(t, "scaffold_split", cfg.Split.Method)
	assert.Equal(t, []float64{0.7, 0.15, 0.15}, cfg.Split.Fractions)
	assert.Equal(t, "gcn-dti", cfg.Train.Model)
	assert.Equal(t, 64, cfg.Train.BatchSize)
	assert.InDelta(t, 0.0005, cfg.Train.LearningRate, 1e-12)
	assert.True(t, cfg.Train.Shuffle)
	assert.Equal(t, []string{"roc_auc", "prc_auc", "accuracy"}, cfg.Eval.Metrics)
	assert.Equal(t, 9091, cfg.Monitor.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset fields pick up defaults.
	assert.Equal(t, 1, cfg.Train.GradAccumSteps)
	assert.Equal(t, DefaultMetricThreshold, cfg.Eval.Threshold)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("non_existent_config.yaml")
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "train: [")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, `
train:
  epochs: -3
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "train.epochs")
}

func TestLoadFromEnvDefaultsOnly(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Train.Model)
	assert.Equal(t, DefaultEpochs, cfg.Train.Epochs)
	assert.Equal(t, DefaultSplitMethod, cfg.Split.Method)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DDK_TRAIN_MODEL", "affinity-mlp")
	t.Setenv("DDK_TRAIN_BATCH_SIZE", "128")

	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "affinity-mlp", cfg.Train.Model)
	assert.Equal(t, 128, cfg.Train.BatchSize)
}

func TestMustLoadPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad("does-not-exist.yaml") })
}
