// Package enhance decides between single image and directory enhancement
// for the command line tool and reports the outcome.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultSubdir is created inside a directory input when no output is given.
const DefaultSubdir = "enhanced"

// Messages printed by Run.
const (
	MsgDone      = "Done, result saved to: %s\n"
	MsgNotExist  = "Error: input path does not exist\n"
	MsgCancelled = "\nProcessing cancelled\n"
	MsgFailed    = "An error occurred: %s\n"
)

// ImageEnhancer enhances single images and whole directories.
type ImageEnhancer interface {
	// EnhanceImage writes the result to outputPath, or to a location of
	// its own choosing when outputPath is empty, and returns the path.
	EnhanceImage(ctx context.Context, path, outputPath string) (string, error)
	EnhanceDirectory(ctx context.Context, dir, outputDir string) error
}

// Options are the user supplied paths.
type Options struct {
	Input  string
	Output string
}

// Run dispatches on the kind of opts.Input and returns the process exit
// status. A missing input is reported but is not a failure.
func Run(ctx context.Context, opts Options, e ImageEnhancer, out io.Writer) int {
	info, err := os.Stat(opts.Input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprint(out, MsgNotExist)
			return 0
		}
		return Fail(out, err)
	}

	var result string
	if info.IsDir() {
		result = opts.Output
		if result == "" {
			result = filepath.Join(opts.Input, DefaultSubdir)
		}
		err = e.EnhanceDirectory(ctx, opts.Input, result)
	} else {
		result, err = e.EnhanceImage(ctx, opts.Input, opts.Output)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return Fail(out, err)
	}

	fmt.Fprintf(out, MsgDone, result)
	return 0
}

// Fail reports err and returns the failing exit status. Cancellation gets
// its own message.
func Fail(out io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprint(out, MsgCancelled)
	} else {
		fmt.Fprintf(out, MsgFailed, err)
	}
	return 1
}
