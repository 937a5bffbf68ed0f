package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"urdf-asset-renderer/internal/batch"
	"urdf-asset-renderer/internal/config"
	"urdf-asset-renderer/internal/raster"
	"urdf-asset-renderer/internal/shape"
)

var (
	renderOutput      string
	renderSize        int
	renderSupersample int
	renderWorkers     int
	renderAzimuth     float64
	renderElevation   float64
	renderPerspective bool
	renderManifest    bool
	renderWatch       bool
	renderDebounce    time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render <urdf>...",
	Short: "Render robot descriptions to WebP previews",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOutput, "output", "o", "", "Output directory (default: config output_dir)")
	f.IntVar(&renderSize, "size", 0, "Image edge length in pixels (default: 256)")
	f.IntVar(&renderSupersample, "supersample", 0, "Supersampling factor (default: 2)")
	f.IntVar(&renderWorkers, "workers", 0, "Number of worker goroutines (default: NumCPU)")
	f.Float64Var(&renderAzimuth, "azimuth", 45, "Camera azimuth in degrees")
	f.Float64Var(&renderElevation, "elevation", 25, "Camera elevation in degrees")
	f.BoolVar(&renderPerspective, "perspective", false, "Use a perspective projection")
	f.BoolVar(&renderManifest, "manifest", true, "Write manifest.json to the output directory")
	f.BoolVar(&renderWatch, "watch", false, "Re-render a description whenever it changes")
	f.DurationVar(&renderDebounce, "debounce", 300*time.Millisecond, "Quiet period before re-rendering in watch mode")
	rootCmd.AddCommand(renderCmd)
}

func renderFlags(cmd *cobra.Command, flags *config.Flags) {
	flags.OutputDir = renderOutput
	flags.Size = renderSize
	flags.Supersample = renderSupersample
	flags.Workers = renderWorkers
	flags.Azimuth = changedFloat(cmd, "azimuth", renderAzimuth)
	flags.Elevation = changedFloat(cmd, "elevation", renderElevation)
	flags.Perspective = changedBool(cmd, "perspective", renderPerspective)
}

func runRender(cmd *cobra.Command, args []string) error {
	jobs := batch.JobsFor(args)
	bc := batch.Config{
		OutputDir: cfg.OutputDir,
		Load:      cfg.LoadOptions(),
		Render: raster.Options{
			Size:        cfg.RenderSize,
			Supersample: cfg.Supersample,
			Camera:      cfg.Camera(),
			Segments:    shape.DefaultSegments,
		},
		Workers: cfg.Workers,
		Logger:  logger,
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Robots: %d, Workers: %d\n", len(jobs), cfg.Workers)
	fmt.Fprintf(out, "Output: %s\n", cfg.OutputDir)
	fmt.Fprintln(out, "------------------------------------------------------------")

	start := time.Now()
	results := batch.Run(cmd.Context(), bc, jobs)
	fmt.Fprintln(out, "------------------------------------------------------------")
	fmt.Fprintf(out, "Done in %.1fs\n", time.Since(start).Seconds())

	var failed []batch.Result
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	fmt.Fprintf(out, "Rendered: %d/%d\n", len(results)-len(failed), len(results))
	if len(failed) > 0 {
		fmt.Fprintf(out, "\nFailed (%d):\n", len(failed))
		for _, r := range failed[:min(len(failed), 20)] {
			fmt.Fprintf(out, "  %s: %s\n", r.Name, r.Error)
		}
	}

	if renderManifest {
		manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return err
		}
		if err := batch.WriteManifest(manifestPath, results); err != nil {
			logger.Warn("manifest write failed", "err", err)
		} else {
			fmt.Fprintf(out, "Manifest: %s\n", manifestPath)
		}
	}

	if renderWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return batch.Watch(ctx, bc, jobs, renderDebounce, func(r batch.Result) {
			if r.Success {
				fmt.Fprintf(out, "%s: %s (%d assets, %s)\n", r.Name, r.Output, r.Assets, r.Duration.Round(time.Millisecond))
			} else {
				fmt.Fprintf(out, "%s: %s\n", r.Name, r.Error)
			}
		})
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d robots failed", len(failed), len(results))
	}
	return nil
}
