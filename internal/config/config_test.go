package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "cpu", cfg.Training.Device)
	assert.Equal(t, 16, cfg.Training.BatchSize)
	assert.Equal(t, 1, cfg.Model.Planes[0])
	assert.Equal(t, 1, cfg.Model.Planes[len(cfg.Model.Planes)-1])
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
training:
  device: cuda
  batch_size: 8
  learning_rate: 0.001
  epochs: 25
data:
  train_path: /data/wm
model:
  planes: [1, 8, 1]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cuda", cfg.Training.Device)
	assert.Equal(t, 8, cfg.Training.BatchSize)
	assert.InDelta(t, 0.001, cfg.Training.LearningRate, 1e-12)
	assert.Equal(t, 25, cfg.Training.Epochs)
	assert.Equal(t, "/data/wm", cfg.Data.TrainPath)
	assert.Equal(t, []int{1, 8, 1}, cfg.Model.Planes)
	// Absent keys keep their defaults.
	assert.Equal(t, 64, cfg.Data.PatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "training:\n  epochs: 25\n")
	t.Setenv("WMR_EPOCHS", "3")
	t.Setenv("WMR_LEARNING_RATE", "0.5")
	t.Setenv("WMR_TRAIN_PATH", "/tmp/pairs")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.InDelta(t, 0.5, cfg.Training.LearningRate, 1e-12)
	assert.Equal(t, "/tmp/pairs", cfg.Data.TrainPath)
}

func TestLoadBadEnv(t *testing.T) {
	path := writeConfig(t, "training:\n  epochs: 25\n")
	t.Setenv("WMR_BATCH_SIZE", "many")

	_, err := Load(path)
	assert.ErrorContains(t, err, "WMR_BATCH_SIZE")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "training:\n  batch_size: 0\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "batch_size")
}

func TestValidateModelPlanes(t *testing.T) {
	for _, planes := range [][]int{{1, 0, 1}, {1, -2, 1}} {
		cfg := DefaultConfig()
		cfg.Model.Planes = planes
		assert.ErrorContains(t, cfg.Validate(), "model.planes entries must be positive", "%v", planes)
	}

	path := writeConfig(t, "model:\n  planes: [1, 0, 1]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "model.planes")
}
