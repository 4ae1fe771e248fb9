package main

// Options is option of the command.
type Options struct {
	Output    string `short:"o" long:"output" description:"Output path: an image file for a file input, a directory for a directory input"`
	Device    string `long:"device" choice:"cuda" choice:"cpu" description:"Device to use (default: cuda if available)"`
	ModelName string `short:"m" long:"model" default:"models/scale2.0x_model.json" description:"Path of model"`
	CPU       int    `short:"c" long:"cpu" description:"The number of CPUs used to calcurate"`
	Verbose   bool   `short:"v" long:"verbose" description:"Show debug logs"`

	Args struct {
		Input string `positional-arg-name:"input" description:"Input image path or directory"`
	} `positional-args:"yes" required:"yes"`
}
