package main

import (
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(args ...string) (*Options, error) {
	opts := &Options{}
	_, err := flags.NewParser(opts, flags.None).ParseArgs(args)
	return opts, err
}

func TestOptionsDefaults(t *testing.T) {
	opts, err := parse("photo.png")
	require.NoError(t, err)
	assert.Equal(t, "photo.png", opts.Args.Input)
	assert.Equal(t, "", opts.Output)
	assert.Equal(t, "", opts.Device)
	assert.Equal(t, "models/scale2.0x_model.json", opts.ModelName)
}

func TestOptionsAll(t *testing.T) {
	opts, err := parse("-o", "out", "--device", "cpu", "-m", "m.json", "dir")
	require.NoError(t, err)
	assert.Equal(t, "dir", opts.Args.Input)
	assert.Equal(t, "out", opts.Output)
	assert.Equal(t, "cpu", opts.Device)
	assert.Equal(t, "m.json", opts.ModelName)
}

func TestOptionsErrors(t *testing.T) {
	_, err := parse("--device", "tpu", "in.png")
	assert.Error(t, err)

	_, err = parse()
	assert.Error(t, err, "input is required")
}
