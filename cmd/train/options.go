package main

// Options is option of the command.
type Options struct {
	Config string `short:"c" long:"config" default:"configs/config.yaml" description:"Path of the training configuration"`
	Export string `long:"export" description:"Write the model held by this checkpoint to --output and exit"`
	Output string `short:"o" long:"output" default:"models/watermark_remover.json" description:"Model path written by --export"`
}
