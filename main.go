package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"github.com/jessevdk/go-flags"

	"github.com/lon9/waifu2x-tools/internal/device"
	"github.com/lon9/waifu2x-tools/internal/enhance"
	"github.com/lon9/waifu2x-tools/internal/logger"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

func main() {

	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "waifu2x-go"
	parser.Usage = "[-o <output-path>] [--device cuda|cpu] [-m <model-path>] <input>"
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level})
	if err != nil {
		os.Exit(enhance.Fail(os.Stdout, err))
	}

	numCPU := opts.CPU
	cpus := runtime.NumCPU()
	if numCPU != 0 {
		if numCPU > cpus {
			runtime.GOMAXPROCS(cpus)
		} else {
			runtime.GOMAXPROCS(numCPU)
		}
	}

	dev := device.Probe()
	if opts.Device != "" {
		if dev, err = device.Parse(opts.Device); err != nil {
			os.Exit(enhance.Fail(os.Stdout, err))
		}
	}
	if dev == device.CUDA {
		log.Warn().Msg("no CUDA kernels are built in, running on CPU")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		// A second interrupt terminates immediately.
		<-ctx.Done()
		stop()
	}()

	e, err := waifu2x.NewEnhancer(opts.ModelName, runtime.GOMAXPROCS(0), log)
	if err != nil {
		os.Exit(enhance.Fail(os.Stdout, err))
	}
	code := enhance.Run(ctx, enhance.Options{Input: opts.Args.Input, Output: opts.Output}, e, os.Stdout)
	stop()
	os.Exit(code)
}
