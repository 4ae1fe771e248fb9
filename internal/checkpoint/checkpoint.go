// Package checkpoint persists training snapshots, one file per epoch.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lon9/waifu2x-tools/internal/optim"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

// DefaultDir is where the training command writes checkpoints.
const DefaultDir = "checkpoints"

// Record is the state captured at the end of an epoch.
type Record struct {
	Epoch          int           `json:"epoch"`
	ModelState     waifu2x.Model `json:"model_state"`
	OptimizerState optim.State   `json:"optimizer_state"`
	Loss           float64       `json:"loss"`
}

// Path is the file name used for the checkpoint of epoch.
func Path(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint_epoch_%d.json", epoch))
}

// Save writes r to Path(dir, r.Epoch), creating dir if needed. The file is
// written to a temporary name first and renamed into place.
func Save(dir string, r *Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	path := Path(dir, r.Epoch)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if err := json.NewEncoder(file).Encode(r); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return path, nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r Record
	if err := json.NewDecoder(file).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if err := r.ModelState.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return &r, nil
}
