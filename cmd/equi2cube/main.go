// Command equi2cube converts equirectangular panoramas into six cubemap faces.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"equi2cube/internal/batch"
	"equi2cube/internal/config"
	"equi2cube/internal/cubemap"
	"equi2cube/internal/imageio"
	"equi2cube/internal/layout"
	"equi2cube/internal/logger"
)

const (
	// Flags.
	flagConfig      = "config"
	flagSaveConfig  = "save-config"
	flagInput       = "input"
	flagOutput      = "output"
	flagFaceSize    = "face-size"
	flagWorkers     = "workers"
	flagNaming      = "naming"
	flagFormat      = "format"
	flagOrientation = "orientation"
	flagAtlas       = "atlas"
	flagThumbnail   = "thumbnail"
	flagClearOutput = "clear-output"
	flagQuality     = "quality"
	flagLogLevel    = "log-level"
	flagLogFile     = "log-file"
	flagNoManifest  = "no-manifest"
)

func main() {
	app := &cli.App{
		Name:      "equi2cube",
		Usage:     "convert equirectangular panoramas to cubemap faces",
		ArgsUsage: "[input]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load settings from `FILE` (default: per-user config.yaml)",
			},
			&cli.BoolFlag{
				Name:  flagSaveConfig,
				Usage: "write the given settings back to the config file",
			},
			&cli.StringFlag{
				Name:    flagInput,
				Aliases: []string{"i"},
				Usage:   "panorama file or directory of panoramas",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "output directory (default: <input dir>/cubemap)",
			},
			&cli.IntFlag{
				Name:    flagFaceSize,
				Aliases: []string{"s"},
				Usage:   "face edge length in pixels (default: source height / 2)",
			},
			&cli.IntFlag{
				Name:    flagWorkers,
				Aliases: []string{"j"},
				Usage:   "number of files converted in parallel (default: NumCPU)",
			},
			&cli.StringFlag{
				Name:  flagNaming,
				Usage: "face suffixes: short (px..) or long (posx..)",
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Usage: "output format extension, e.g. png, jpg, webp (default: keep source format)",
			},
			&cli.StringFlag{
				Name:  flagOrientation,
				Usage: "face orientation: native, rotated or mirrored",
			},
			&cli.StringFlag{
				Name:  flagAtlas,
				Usage: "also write a combined image: cross or strip",
			},
			&cli.IntFlag{
				Name:  flagThumbnail,
				Usage: "also write an atlas preview no larger than `N` pixels",
			},
			&cli.BoolFlag{
				Name:  flagClearOutput,
				Usage: "remove everything in the output directory first",
			},
			&cli.IntFlag{
				Name:  flagQuality,
				Usage: "JPEG quality 1-100 (default: 95)",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagNoManifest,
				Usage: "do not write manifest.json",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// Load config
	cfgPath := c.String(flagConfig)
	var (
		cfg config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfgPath = config.DefaultPath()
		cfg, err = config.LoadOrDefault(cfgPath)
	}
	if err != nil {
		return err
	}

	input := c.String(flagInput)
	if input == "" {
		input = c.Args().First()
	}

	flags := config.Flags{
		Input:       input,
		Output:      c.String(flagOutput),
		FaceSize:    c.Int(flagFaceSize),
		Workers:     c.Int(flagWorkers),
		Naming:      c.String(flagNaming),
		Format:      c.String(flagFormat),
		Orientation: c.String(flagOrientation),
		Atlas:       c.String(flagAtlas),
		Thumbnail:   c.Int(flagThumbnail),
		ClearOutput: c.Bool(flagClearOutput),
		JPEGQuality: c.Int(flagQuality),
		LogLevel:    c.String(flagLogLevel),
		LogFile:     c.String(flagLogFile),
	}
	// Persisted settings carry only what was given, not derived values.
	saved := cfg
	saved.Apply(flags)

	// CLI flags override config file
	cfg.Resolve(flags)
	if c.IsSet(flagFaceSize) && c.Int(flagFaceSize) <= 0 {
		return fmt.Errorf("--%s must be positive: %w", flagFaceSize, cubemap.ErrInvalidDimensions)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return err
	}
	defer logger.Sync()

	bcfg, err := batchConfig(cfg)
	if err != nil {
		return err
	}

	if c.Bool(flagSaveConfig) {
		if err := saved.SaveTo(cfgPath); err != nil {
			return err
		}
		logger.Log.Info("config saved", zap.String("path", cfgPath))
	}

	files, err := batch.Scan(cfg.Input, imageio.InputExts())
	if err != nil {
		return err
	}
	if err := batch.PrepareOutput(cfg.Output, cfg.ClearOutput, cfg.Input); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := c.App.Writer
	fmt.Fprintf(w, "Equirectangular → Cubemap\n")
	fmt.Fprintf(w, "Files: %d, Workers: %d\n", len(files), cfg.Workers)
	fmt.Fprintf(w, "Output: %s\n", cfg.Output)
	fmt.Fprintln(w, "------------------------------------------------------------")

	sum := batch.Run(ctx, bcfg, files)

	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "Done in %.1fs\n", sum.Elapsed.Seconds())
	fmt.Fprintf(w, "Converted: %d/%d\n", sum.Count(batch.StatusOK), len(files))
	if n := sum.Count(batch.StatusSkipped); n > 0 {
		fmt.Fprintf(w, "Skipped: %d (interrupted)\n", n)
	}

	failed := sum.Count(batch.StatusFailed)
	if failed > 0 {
		fmt.Fprintf(w, "\nFailed (%d):\n", failed)
		shown := 0
		for _, r := range sum.Results {
			if r.Status != batch.StatusFailed {
				continue
			}
			if shown == 20 {
				fmt.Fprintf(w, "  ... and %d more\n", failed-shown)
				break
			}
			fmt.Fprintf(w, "  %s: %v\n", filepath.Base(r.Source), r.Err)
			shown++
		}
	}

	// Write manifest
	if !c.Bool(flagNoManifest) {
		manifestPath := filepath.Join(cfg.Output, "manifest.json")
		if err := batch.WriteManifest(manifestPath, sum, bcfg.Naming); err != nil {
			logger.Log.Warn("manifest write failed", zap.Error(err))
		} else {
			fmt.Fprintf(w, "Manifest: %s\n", manifestPath)
		}
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	if ctx.Err() != nil {
		return cli.Exit("interrupted", 130)
	}
	return nil
}

// batchConfig turns the validated string settings into typed batch settings.
func batchConfig(cfg config.Config) (batch.Config, error) {
	naming, err := imageio.ParseNaming(cfg.Naming)
	if err != nil {
		return batch.Config{}, err
	}
	orient, err := layout.ParseOrientation(cfg.Orientation)
	if err != nil {
		return batch.Config{}, err
	}
	if cfg.Format != "" && !imageio.Encodable(cfg.Format) {
		return batch.Config{}, fmt.Errorf("%w: cannot write %s", imageio.ErrUnsupportedFormat, cfg.Format)
	}

	bcfg := batch.Config{
		OutputDir:   cfg.Output,
		FaceSize:    cfg.FaceSize,
		Naming:      naming,
		Format:      cfg.Format,
		Orientation: orient,
		Thumbnail:   cfg.Thumbnail,
		JPEGQuality: cfg.JPEGQuality,
		Workers:     cfg.Workers,
		ReportEvery: 2 * time.Second,
	}
	if cfg.Atlas != "" {
		kind, err := layout.ParseAtlas(cfg.Atlas)
		if err != nil {
			return batch.Config{}, err
		}
		bcfg.WriteAtlas = true
		bcfg.Atlas = kind
	}
	return bcfg, nil
}
