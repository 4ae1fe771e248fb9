package enhance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	input  string
	output string
}

type fakeEnhancer struct {
	calls  []call
	result string
	err    error
}

func (f *fakeEnhancer) EnhanceImage(ctx context.Context, path, outputPath string) (string, error) {
	f.calls = append(f.calls, call{"image", path, outputPath})
	return f.result, f.err
}

func (f *fakeEnhancer) EnhanceDirectory(ctx context.Context, dir, outputDir string) error {
	f.calls = append(f.calls, call{"directory", dir, outputDir})
	return f.err
}

func imageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
	return path
}

func TestRunSingleFileDefaultOutput(t *testing.T) {
	in := imageFile(t)
	f := &fakeEnhancer{result: "/somewhere/in_enhanced.png"}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: in}, f, &out)
	assert.Equal(t, 0, code)
	assert.Equal(t, []call{{"image", in, ""}}, f.calls)
	assert.Equal(t, fmt.Sprintf(MsgDone, "/somewhere/in_enhanced.png"), out.String())
}

func TestRunSingleFileExplicitOutput(t *testing.T) {
	in := imageFile(t)
	f := &fakeEnhancer{result: "/out.png"}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: in, Output: "/out.png"}, f, &out)
	assert.Equal(t, 0, code)
	assert.Equal(t, []call{{"image", in, "/out.png"}}, f.calls)
}

func TestRunDirectoryDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	f := &fakeEnhancer{}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: dir}, f, &out)
	assert.Equal(t, 0, code)
	want := filepath.Join(dir, "enhanced")
	assert.Equal(t, []call{{"directory", dir, want}}, f.calls)
	assert.Equal(t, fmt.Sprintf(MsgDone, want), out.String())
}

func TestRunDirectoryExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	f := &fakeEnhancer{}

	code := Run(context.Background(), Options{Input: dir, Output: "/results"}, f, &bytes.Buffer{})
	assert.Equal(t, 0, code)
	assert.Equal(t, []call{{"directory", dir, "/results"}}, f.calls)
}

func TestRunMissingInput(t *testing.T) {
	f := &fakeEnhancer{}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: filepath.Join(t.TempDir(), "nope.png")}, f, &out)
	assert.Equal(t, 0, code)
	assert.Empty(t, f.calls)
	assert.Equal(t, MsgNotExist, out.String())
}

func TestRunEnhancerError(t *testing.T) {
	f := &fakeEnhancer{err: errors.New("decode failed")}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: imageFile(t)}, f, &out)
	assert.Equal(t, 1, code)
	assert.Equal(t, "An error occurred: decode failed\n", out.String())
}

func TestRunInterrupted(t *testing.T) {
	f := &fakeEnhancer{err: fmt.Errorf("a.png: %w", context.Canceled)}
	var out bytes.Buffer

	code := Run(context.Background(), Options{Input: t.TempDir()}, f, &out)
	assert.Equal(t, 1, code)
	assert.Equal(t, MsgCancelled, out.String())
	assert.NotContains(t, out.String(), "An error occurred")
}

func TestRunInterruptedAfterSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeEnhancer{result: "x.png"}
	var out bytes.Buffer

	code := Run(ctx, Options{Input: imageFile(t)}, f, &out)
	assert.Equal(t, 1, code)
	assert.Equal(t, MsgCancelled, out.String())
}
