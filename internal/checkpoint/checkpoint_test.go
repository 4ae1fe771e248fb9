package checkpoint

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lon9/waifu2x-tools/internal/optim"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("checkpoints", "checkpoint_epoch_10.json"), Path("checkpoints", 10))
}

func TestSaveAndLoad(t *testing.T) {
	m, err := waifu2x.NewModel([]int{1, 2, 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	opt := optim.NewAdam(0.01)
	opt.Step(m.Params(), make([]float64, m.NumParams()))

	dir := filepath.Join(t.TempDir(), "checkpoints")
	path, err := Save(dir, &Record{Epoch: 20, ModelState: m, OptimizerState: opt.State(), Loss: 0.125})
	require.NoError(t, err)
	assert.Equal(t, Path(dir, 20), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must not remain")

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, r.Epoch)
	assert.Equal(t, 0.125, r.Loss)
	assert.Equal(t, 1, r.OptimizerState.Step)
	assert.Equal(t, m.Params(), r.ModelState.Params())
}

func TestSaveKeepsEarlierEpochs(t *testing.T) {
	m, err := waifu2x.NewModel([]int{1, 1}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	dir := t.TempDir()
	for _, epoch := range []int{10, 20} {
		_, err := Save(dir, &Record{Epoch: epoch, ModelState: m})
		require.NoError(t, err)
	}
	assert.FileExists(t, Path(dir, 10))
	assert.FileExists(t, Path(dir, 20))
}

func TestLoadRejectsBadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"epoch":1,"model_state":[]}`), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, waifu2x.ErrInvalidModel)
}

func TestSaveReplacesSameEpochFromEarlierRun(t *testing.T) {
	m, err := waifu2x.NewModel([]int{1, 1}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	dir := t.TempDir()

	_, err = Save(dir, &Record{Epoch: 10, ModelState: m, Loss: 1})
	require.NoError(t, err)
	_, err = Save(dir, &Record{Epoch: 10, ModelState: m, Loss: 2})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	r, err := Load(Path(dir, 10))
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Loss)
}
