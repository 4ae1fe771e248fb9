// Command train fits the watermark removal network to paired images.
package main

import (
	"context"
	"math/rand"
	"os"
	"runtime"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/lon9/waifu2x-tools/internal/checkpoint"
	"github.com/lon9/waifu2x-tools/internal/config"
	"github.com/lon9/waifu2x-tools/internal/dataset"
	"github.com/lon9/waifu2x-tools/internal/device"
	"github.com/lon9/waifu2x-tools/internal/logger"
	"github.com/lon9/waifu2x-tools/internal/optim"
	"github.com/lon9/waifu2x-tools/internal/train"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

func main() {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "train"
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Used until the configured logger exists.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	if opts.Export != "" {
		if err := export(opts.Export, opts.Output); err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
		log.Info().Str("model", opts.Output).Msg("model exported")
		return
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log, err = logger.New(logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		log = zerolog.New(os.Stderr)
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	dev, err := device.Parse(cfg.Training.Device)
	if err != nil {
		return err
	}
	if dev == device.CUDA {
		log.Warn().Msg("no CUDA kernels are built in, training on CPU")
	}

	ds, err := dataset.Open(cfg.Data.TrainPath, cfg.Data.PatchSize)
	if err != nil {
		return err
	}
	loader := dataset.NewLoader(ds, cfg.Training.BatchSize, cfg.Data.Workers, true, cfg.Training.Seed)

	model, err := waifu2x.NewModel(cfg.Model.Planes, rand.New(rand.NewSource(cfg.Training.Seed)))
	if err != nil {
		return err
	}
	log.Info().
		Int("pairs", ds.Len()).
		Int("batches", loader.Len()).
		Int("params", model.NumParams()).
		Str("device", dev.String()).
		Msg("starting training")

	t := &train.Trainer{
		Net:           train.NewRemover(model, runtime.GOMAXPROCS(0)),
		Loader:        loader,
		Optimizer:     optim.NewAdam(cfg.Training.LearningRate),
		Loss:          optim.L1Loss,
		Epochs:        cfg.Training.Epochs,
		CheckpointDir: checkpoint.DefaultDir,
		Out:           os.Stdout,
		Progress:      os.Stderr,
		Log:           log,
	}
	_, err = t.Run(ctx)
	return err
}

func export(ckptPath, modelPath string) error {
	r, err := checkpoint.Load(ckptPath)
	if err != nil {
		return err
	}
	return r.ModelState.Save(modelPath)
}
