package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/castor/internal/logger"
	"github.com/samcharles93/castor/internal/session"
	"github.com/samcharles93/castor/internal/toy"
)

var (
	capacity   int64
	batchLimit int64
	threads    int64
	gpuLayers  int64
	useMmap    bool
	flashAttn  bool
	modelSeed  int64
	backend    string
	logLevel   string
	logFormat  string
)

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "capacity",
			Aliases:     []string{"ctx", "c"},
			Usage:       "context window capacity in positions",
			Value:       4096,
			Destination: &capacity,
		},
		&cli.Int64Flag{
			Name:        "batch-limit",
			Aliases:     []string{"batch_limit", "b"},
			Usage:       "max tokens per submitted batch",
			Value:       512,
			Destination: &batchLimit,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Usage:       "backend thread count (0 = auto)",
			Destination: &threads,
		},
		&cli.Int64Flag{
			Name:        "gpu-layers",
			Aliases:     []string{"gpu_layers", "ngl"},
			Usage:       "layers to offload to the GPU",
			Destination: &gpuLayers,
		},
		&cli.BoolFlag{
			Name:        "mmap",
			Usage:       "memory-map model weights",
			Value:       true,
			Destination: &useMmap,
		},
		&cli.BoolFlag{
			Name:        "flash-attn",
			Aliases:     []string{"flash_attn", "fa"},
			Usage:       "enable flash attention",
			Destination: &flashAttn,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "model backend (toy)",
			Value:       "toy",
			Destination: &backend,
		},
		&cli.Int64Flag{
			Name:        "model-seed",
			Aliases:     []string{"model_seed"},
			Usage:       "toy backend seed",
			Value:       1,
			Destination: &modelSeed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "pretty":
		return logger.Pretty(os.Stderr, level)
	default:
		return logger.Default()
	}
}

func sessionOptions() session.Options {
	return session.Options{
		Capacity:       int(capacity),
		BatchLimit:     int(batchLimit),
		Threads:        int(threads),
		GPULayers:      int(gpuLayers),
		UseMmap:        useMmap,
		FlashAttention: flashAttn,
	}
}

func newModel() (session.Model, error) {
	switch backend {
	case "toy", "":
		return toy.New(toy.Config{Seed: modelSeed}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
