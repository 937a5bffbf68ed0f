// Package batch renders many robot descriptions to WebP previews with a
// worker pool. Each robot succeeds or fails on its own.
package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"urdf-asset-renderer/internal/asset"
	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/postprocess"
	"urdf-asset-renderer/internal/raster"
	"urdf-asset-renderer/internal/skeleton"
	"urdf-asset-renderer/internal/texture"
	"urdf-asset-renderer/internal/urdf"
)

// Job is one description to render.
type Job struct {
	Name  string // output stem
	Input string // URDF path
}

// JobsFor builds jobs named after each file's stem. Duplicate stems get a
// numeric suffix.
func JobsFor(paths []string) []Job {
	seen := make(map[string]int)
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, n)
		} else {
			seen[name] = 1
		}
		jobs[i] = Job{Name: name, Input: p}
	}
	return jobs
}

// Config holds all shared resources for a batch run.
type Config struct {
	OutputDir string
	Load      asset.LoadOptions
	// Render options; Textures is filled by Run when nil.
	Render  raster.Options
	Workers int
	Loader  meshio.Loader // defaults to meshio.FileLoader
	Logger  *slog.Logger
	// Progress is the interval between progress log lines.
	Progress time.Duration
}

// Result holds the outcome of processing one job.
type Result struct {
	Name     string        `json:"name"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Assets   int           `json:"assets"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func (cfg *Config) defaults(jobs []Job) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Loader == nil {
		cfg.Loader = meshio.FileLoader{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Progress <= 0 {
		cfg.Progress = 2 * time.Second
	}
	if cfg.Render.Textures == nil {
		dirs := make([]string, 0, len(jobs))
		for _, j := range jobs {
			dirs = append(dirs, filepath.Dir(j.Input))
		}
		cfg.Render.Textures = texture.NewCache(texture.BuildIndex(dirs...), cfg.Logger)
	}
}

// Run processes all jobs using a worker pool. Jobs not started before ctx
// is cancelled fail with the context error.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	cfg.defaults(jobs)
	log := cfg.Logger
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Progress)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info("progress", "done", p, "total", total, "per_sec", fmt.Sprintf("%.1f", rate))
				}
			}
		}
	}()

	// Worker pool
	jobChan := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = Result{Name: jobs[idx].Name, Input: jobs[idx].Input, Error: err.Error()}
				} else {
					results[idx] = processJob(cfg, jobs[idx])
				}
				processed.Add(1)
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	log.Info("batch finished", "ok", ok, "failed", total-ok, "elapsed", time.Since(start).Round(time.Millisecond))
	return results
}

func processJob(cfg Config, job Job) Result {
	start := time.Now()
	res := Result{Name: job.Name, Input: job.Input}

	out, n, err := renderJob(cfg, job)
	res.Duration = time.Since(start)
	res.Assets = n
	if err != nil {
		res.Error = err.Error()
		cfg.Logger.Warn("render failed", "robot", job.Name, "err", err)
		return res
	}
	res.Output = out
	res.Success = true
	cfg.Logger.Debug("rendered", "robot", job.Name, "assets", n, "output", out, "took", res.Duration)
	return res
}

func renderJob(cfg Config, job Job) (string, int, error) {
	robot, err := urdf.ParseFile(job.Input, cfg.Load.URDF)
	if err != nil {
		return "", 0, err
	}
	opts := cfg.Load.Options
	opts.Logger = cfg.Logger
	resource, err := asset.Resolve(robot, cfg.Loader, opts)
	if err != nil {
		return "", 0, err
	}
	frames, err := skeleton.RestFrames(robot.Joints, resource.Base)
	if err != nil {
		return "", 0, err
	}

	img := raster.Render(resource, frames, cfg.Render)
	if cfg.Render.Supersample > 1 {
		img = postprocess.Downsample(img, cfg.Render.Size)
	}

	outPath := filepath.Join(cfg.OutputDir, job.Name+".webp")
	if err := writeWebP(outPath, img); err != nil {
		return "", resource.Len(), err
	}
	return outPath, resource.Len(), nil
}

// writeWebP encodes to a temporary file first so watchers of the output
// never see a partial image.
func writeWebP(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*.webp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := nativewebp.Encode(tmp, img, nil); err != nil {
		tmp.Close()
		return fmt.Errorf("webp encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
