// Command seamcheck converts one panorama and verifies that pixels lying on
// edges shared by two or three faces carry the same value on every face.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"equi2cube/internal/cubemap"
	"equi2cube/internal/imageio"
	"equi2cube/internal/logger"
)

type edgePixel struct {
	face cubemap.Face
	x, y int
}

func main() {
	app := &cli.App{
		Name:      "seamcheck",
		Usage:     "check a cubemap conversion for seam mismatches",
		ArgsUsage: "PANORAMA",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "face-size",
				Aliases: []string{"s"},
				Usage:   "face edge length in pixels (default: source height / 2)",
			},
			&cli.IntFlag{
				Name:  "tolerance",
				Usage: "largest accepted per-channel difference",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
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
	if c.NArg() != 1 {
		_ = cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	level := "warn"
	if c.Bool("debug") {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		return err
	}
	defer logger.Sync()

	path := c.Args().First()
	img, format, err := imageio.Load(path)
	if err != nil {
		return err
	}
	src := cubemap.FromImage(img)
	logger.Log.Debug("loaded",
		zap.String("file", path),
		zap.String("format", format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height),
		zap.Int("channels", src.Channels))

	var opts []cubemap.Option
	if c.IsSet("face-size") {
		opts = append(opts, cubemap.WithFaceSize(c.Int("face-size")))
	}
	start := time.Now()
	faces, err := cubemap.Convert(src, opts...)
	if err != nil {
		return err
	}
	size := faces[0].Width
	logger.Log.Debug("converted", zap.Int("face_size", size), zap.Duration("took", time.Since(start)))

	// Group border pixels by the ray they sample.
	groups := map[r3.Vec][]edgePixel{}
	for f := cubemap.PosX; f <= cubemap.NegZ; f++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if x != 0 && y != 0 && x != size-1 && y != size-1 {
					continue
				}
				d := cubemap.Direction(f, y, x, size)
				groups[d] = append(groups[d], edgePixel{f, x, y})
			}
		}
	}

	shared, worst := 0, 0
	var worstAt r3.Vec
	for dir, px := range groups {
		if len(px) < 2 {
			continue
		}
		shared++
		ref := faces.Get(px[0].face).At(px[0].x, px[0].y)
		for _, p := range px[1:] {
			got := faces.Get(p.face).At(p.x, p.y)
			for ch := range ref {
				diff := int(ref[ch]) - int(got[ch])
				if diff < 0 {
					diff = -diff
				}
				if diff > worst {
					worst, worstAt = diff, dir
				}
			}
		}
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Face size: %d\n", size)
	fmt.Fprintf(w, "Shared edge rays: %d\n", shared)
	fmt.Fprintf(w, "Max channel difference: %d\n", worst)
	if worst > c.Int("tolerance") {
		fmt.Fprintf(w, "Worst ray: (%.4f, %.4f, %.4f)\n", worstAt.X, worstAt.Y, worstAt.Z)
		return cli.Exit("seam mismatch", 2)
	}
	fmt.Fprintln(w, "OK")
	return nil
}
