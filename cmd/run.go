package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/stereomatch/internal/imageio"
	"github.com/cwbudde/stereomatch/internal/stereo"
)

var (
	leftPath      string
	rightPath     string
	outPath       string
	blockSize     int
	maxDisparity  int
	uniqueness    int
	noPreFilter   bool
	noInterpolate bool
	runWorkers    int
	runScale      float64
	cpuProfile    string
	memProfile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match a stereo pair once",
	Long:  `Computes the disparity map of a rectified stereo pair and writes it as a normalized grayscale image.`,
	RunE:  runMatch,
}

func init() {
	runCmd.Flags().StringVar(&leftPath, "left", "", "Left (reference) image path (required)")
	runCmd.Flags().StringVar(&rightPath, "right", "", "Right image path (required)")
	runCmd.Flags().StringVar(&outPath, "out", "disparity.png", "Output image path (.png or .pgm)")
	runCmd.Flags().IntVar(&blockSize, "block", 11, "Matching window side, odd")
	runCmd.Flags().IntVar(&maxDisparity, "max-disparity", 64, "Largest candidate disparity")
	runCmd.Flags().IntVar(&uniqueness, "uniqueness", 15, "Uniqueness margin in percent (0 disables)")
	runCmd.Flags().BoolVar(&noPreFilter, "no-prefilter", false, "Skip the horizontal gradient prefilter")
	runCmd.Flags().BoolVar(&noInterpolate, "no-interpolate", false, "Keep unreliable pixels instead of repairing them")
	runCmd.Flags().IntVar(&runWorkers, "workers", runtime.NumCPU(), "Goroutines aggregating disparity levels")
	runCmd.Flags().Float64Var(&runScale, "scale", 1.0, "Downscale factor applied to both inputs, in (0, 1]")

	// Profiling flags
	runCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	runCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	runCmd.MarkFlagRequired("left")
	runCmd.MarkFlagRequired("right")
	rootCmd.AddCommand(runCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", cpuProfile)
	}

	slog.Info("Starting match",
		"left", leftPath,
		"right", rightPath,
		"block", blockSize,
		"max_disparity", maxDisparity,
		"uniqueness", uniqueness,
	)

	leftGray, err := imageio.LoadGray(leftPath)
	if err != nil {
		return err
	}
	rightGray, err := imageio.LoadGray(rightPath)
	if err != nil {
		return err
	}

	if runScale < 1 {
		if leftGray, err = imageio.Downscale(leftGray, runScale); err != nil {
			return err
		}
		if rightGray, err = imageio.Downscale(rightGray, runScale); err != nil {
			return err
		}
	}

	left := stereo.FromGray(leftGray)
	right := stereo.FromGray(rightGray)
	slog.Info("Loaded pair", "width", left.Width, "height", left.Height)

	params := stereo.DefaultParams()
	params.BlockSize = blockSize
	params.MaxDisparity = maxDisparity
	params.UniquenessThreshold = uniqueness
	params.PreFilter = !noPreFilter
	params.InterpolateBad = !noInterpolate
	params.Workers = runWorkers

	out := stereo.NewImage(left.Width, left.Height, stereo.S16)

	start := time.Now()
	if err := stereo.ComputeDisparityMap(left, right, out, params); err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}
	elapsed := time.Since(start)

	if err := imageio.SaveGray(outPath, imageio.RenderDisparity(out)); err != nil {
		return err
	}

	unreliable := 0
	for _, v := range out.PixS16 {
		if v == stereo.Unreliable {
			unreliable++
		}
	}

	// Throughput in disparity-candidate evaluations per second.
	evals := float64(left.Width) * float64(left.Height) * float64(maxDisparity+1)
	eps := evals / elapsed.Seconds()

	slog.Info("Match complete",
		"elapsed", elapsed,
		"unreliable_pixels", unreliable,
		"evals_per_second", fmt.Sprintf("%.0f", eps),
	)
	fmt.Printf("Wrote %s (%dx%d, %d unreliable, %s)\n",
		outPath, out.Width, out.Height, unreliable, elapsed.Round(time.Millisecond))

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // Run GC to get accurate heap stats
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("Memory profile written", "output", memProfile)
	}
	return nil
}
