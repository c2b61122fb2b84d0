package batch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"equi2cube/internal/cubemap"
	"equi2cube/internal/imageio"
	"equi2cube/internal/layout"
	"equi2cube/internal/logger"
)

// Config holds the settings shared by every file of a run.
type Config struct {
	OutputDir   string
	FaceSize    int // 0 = source height / 2
	Naming      imageio.Naming
	Format      string // forced output extension, "" keeps the source's
	Orientation layout.Orientation
	WriteAtlas  bool
	Atlas       layout.AtlasKind
	Thumbnail   int // max side of the atlas preview, 0 = none
	JPEGQuality int
	Workers     int

	// Progress, when set, is called from worker goroutines after each file
	// with the number of finished files. Calls are not ordered.
	Progress func(done, total int)

	// ReportEvery is the interval of the rate log line. Zero disables it.
	ReportEvery time.Duration
}

// Status is the outcome of one file.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result holds the outcome of processing one source file.
type Result struct {
	Source   string
	Status   Status
	FaceSize int
	Faces    [6]string // output paths in cubemap.Order
	Atlas    string
	Preview  string
	Err      error
	Elapsed  time.Duration
}

// Summary is the outcome of a run. Results are in input order.
type Summary struct {
	RunID   string
	Started time.Time
	Elapsed time.Duration
	Results []Result
}

// Count returns the number of results with status s.
func (s Summary) Count(st Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == st {
			n++
		}
	}
	return n
}

// Err combines the errors of every failed file, or returns nil.
func (s Summary) Err() error {
	var err error
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.Source, r.Err))
		}
	}
	return err
}

// Run converts files using a bounded worker pool.
//
// Cancelling ctx stops new files from starting; files already being
// converted run to completion so no face set is left half written.
// Files never started are reported as StatusSkipped. A failing file is
// logged and recorded and does not stop the others.
func Run(ctx context.Context, cfg Config, files []string) Summary {
	total := len(files)
	sum := Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Results: make([]Result, total),
	}
	var processed atomic.Int64

	log := logger.Log.With(zap.String("run", sum.RunID))
	log.Info("batch started", zap.Int("files", total), zap.Int("workers", cfg.Workers))

	// Progress reporter
	done := make(chan struct{})
	if cfg.ReportEvery > 0 {
		go func() {
			ticker := time.NewTicker(cfg.ReportEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						rate := float64(p) / time.Since(sum.Started).Seconds()
						log.Sugar().Infof("[%d/%d] %.2f files/sec", p, total, rate)
					}
				}
			}
		}()
	}

	stems := outputStems(files, cfg.Format)
	for i, path := range files {
		if stems[i] != imageio.Stem(path) {
			log.Warn("output name taken by another source",
				zap.String("file", path), zap.String("stem", stems[i]))
		}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range files {
		if ctx.Err() != nil {
			sum.Results[i] = Result{Source: path, Status: StatusSkipped, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				sum.Results[i] = Result{Source: path, Status: StatusSkipped, Err: ctx.Err()}
				return nil
			}
			sum.Results[i] = processFile(cfg, path, stems[i], log)
			n := processed.Add(1)
			if cfg.Progress != nil {
				cfg.Progress(int(n), total)
			}
			return nil
		})
	}

	_ = g.Wait()
	close(done)
	sum.Elapsed = time.Since(sum.Started)

	log.Info("batch finished",
		zap.Int("ok", sum.Count(StatusOK)),
		zap.Int("failed", sum.Count(StatusFailed)),
		zap.Int("skipped", sum.Count(StatusSkipped)),
		zap.Duration("elapsed", sum.Elapsed))
	return sum
}

// outputStems returns the name stem used for each source's output files.
// Sources whose outputs would share names (room.png and room.bmp written
// as PNG, say) get their source extension appended, then a counter if that
// is still taken. Names are compared case-insensitively.
func outputStems(files []string, format string) []string {
	stems := make([]string, len(files))
	key := func(i int, stem string) string {
		return strings.ToLower(stem + imageio.OutputExt(filepath.Ext(files[i]), format))
	}

	count := make(map[string]int, len(files))
	for i, f := range files {
		stems[i] = imageio.Stem(f)
		count[key(i, stems[i])]++
	}
	for i, f := range files {
		if count[key(i, stems[i])] > 1 {
			if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f)), "."); ext != "" {
				stems[i] += "_" + ext
			}
		}
	}

	taken := make(map[string]bool, len(files))
	for i := range files {
		base := stems[i]
		for n := 2; taken[key(i, stems[i])]; n++ {
			stems[i] = fmt.Sprintf("%s_%d", base, n)
		}
		taken[key(i, stems[i])] = true
	}
	return stems
}

// removeFiles deletes a partially written face set. Files that cannot be
// removed are logged so leftovers are visible.
func removeFiles(paths []string, log *zap.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove partial output", zap.String("path", p), zap.Error(err))
		}
	}
}

func processFile(cfg Config, path, stem string, log *zap.Logger) Result {
	start := time.Now()
	res := Result{Source: path}

	fail := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		log.Error("conversion failed", zap.String("file", path), zap.Error(err))
		return res
	}

	img, _, err := imageio.Load(path)
	if err != nil {
		return fail(err)
	}
	src := cubemap.FromImage(img)

	var opts []cubemap.Option
	if cfg.FaceSize > 0 {
		opts = append(opts, cubemap.WithFaceSize(cfg.FaceSize))
	}
	faces, err := cubemap.Convert(src, opts...)
	if err != nil {
		return fail(err)
	}
	res.FaceSize = faces[0].Width

	var imgs [6]image.Image
	for i, f := range faces {
		imgs[i] = f.Image()
	}
	imgs = layout.Orient(imgs, cfg.Orientation)

	ext := imageio.OutputExt(filepath.Ext(path), cfg.Format)
	encOpts := imageio.EncodeOptions{JPEGQuality: cfg.JPEGQuality}

	var written []string
	save := func(name string, img image.Image) (string, error) {
		out := filepath.Join(cfg.OutputDir, name)
		if err := imageio.Save(out, img, encOpts); err != nil {
			return "", err
		}
		written = append(written, out)
		return out, nil
	}
	rollback := func(err error) Result {
		removeFiles(written, log)
		return fail(err)
	}

	for i, f := range cubemap.Order {
		out, err := save(imageio.FaceFileName(stem, f, ext, cfg.Naming), imgs[i])
		if err != nil {
			return rollback(err)
		}
		res.Faces[i] = out
	}

	if cfg.WriteAtlas {
		atlas := layout.Atlas(imgs, cfg.Atlas)
		out, err := save(fmt.Sprintf("%s_%s%s", stem, cfg.Atlas, ext), atlas)
		if err != nil {
			return rollback(err)
		}
		res.Atlas = out

		if cfg.Thumbnail > 0 {
			out, err := save(fmt.Sprintf("%s_%s_thumb%s", stem, cfg.Atlas, ext), layout.Thumbnail(atlas, cfg.Thumbnail))
			if err != nil {
				return rollback(err)
			}
			res.Preview = out
		}
	}

	res.Status = StatusOK
	res.Elapsed = time.Since(start)
	log.Debug("converted",
		zap.String("file", path),
		zap.Int("source_width", src.Width),
		zap.Int("source_height", src.Height),
		zap.Int("face_size", res.FaceSize),
		zap.Duration("took", res.Elapsed))
	return res
}
