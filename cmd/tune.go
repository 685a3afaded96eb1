package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/stereomatch/internal/imageio"
	"github.com/cwbudde/stereomatch/internal/stereo"
	"github.com/cwbudde/stereomatch/internal/store"
	"github.com/cwbudde/stereomatch/internal/tune"
)

var (
	tuneLeftPath  string
	tuneRightPath string
	truthPath     string
	tuneIters     int
	tunePopSize   int
	tuneSeed      int64
	tuneRestarts  int
	tunePatience  int
	tuneThreshold float64
	tuneDataDir   string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search matcher parameters against a ground-truth map",
	Long: `Tunes block size, disparity range and uniqueness threshold by minimizing
the bad-pixel fraction against a ground-truth disparity image. The ground
truth is an 8-bit image whose pixel values are disparities; 255 marks
pixels without ground truth.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneLeftPath, "left", "", "Left image path (required)")
	tuneCmd.Flags().StringVar(&tuneRightPath, "right", "", "Right image path (required)")
	tuneCmd.Flags().StringVar(&truthPath, "truth", "", "Ground-truth disparity image path (required)")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 60, "Optimizer iterations per restart")
	tuneCmd.Flags().IntVar(&tunePopSize, "pop", 20, "Optimizer population size")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Random seed")
	tuneCmd.Flags().IntVar(&tuneRestarts, "restarts", 4, "Independent optimizer restarts")
	tuneCmd.Flags().IntVar(&tunePatience, "patience", 2, "Stop after N stale restarts")
	tuneCmd.Flags().Float64Var(&tuneThreshold, "threshold", 0.01, "Minimum relative improvement per restart")
	tuneCmd.Flags().StringVar(&tuneDataDir, "data", "./data", "Run store directory")

	tuneCmd.MarkFlagRequired("left")
	tuneCmd.MarkFlagRequired("right")
	tuneCmd.MarkFlagRequired("truth")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	leftGray, err := imageio.LoadGray(tuneLeftPath)
	if err != nil {
		return err
	}
	rightGray, err := imageio.LoadGray(tuneRightPath)
	if err != nil {
		return err
	}
	truthGray, err := imageio.LoadGray(truthPath)
	if err != nil {
		return err
	}

	truth := truthToS16(stereo.FromGray(truthGray))
	evaluator, err := tune.NewEvaluator(
		stereo.FromGray(leftGray),
		stereo.FromGray(rightGray),
		truth,
		tune.DefaultParamSpace(),
	)
	if err != nil {
		return fmt.Errorf("failed to build evaluator: %w", err)
	}

	cfg := tune.DefaultConfig()
	cfg.Iterations = tuneIters
	cfg.PopSize = tunePopSize
	cfg.Seed = tuneSeed
	cfg.Restarts = tuneRestarts
	cfg.Convergence.Patience = tunePatience
	cfg.Convergence.Threshold = tuneThreshold

	runStore, err := store.NewFSStore(tuneDataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	runID := uuid.New().String()
	runDir, err := runStore.RunDir(runID)
	if err != nil {
		return err
	}
	traceWriter, err := store.NewTraceWriter(runDir, false)
	if err != nil {
		return fmt.Errorf("failed to create trace writer: %w", err)
	}
	defer func() {
		if err := traceWriter.Close(); err != nil {
			slog.Warn("Failed to close trace writer", "error", err)
		}
	}()

	start := time.Now()
	result := tune.Run(evaluator, cfg, nil, func(restart int, cost float64, vector []float64) {
		traceWriter.Write(store.TraceEntry{
			Restart:   restart,
			Cost:      cost,
			Timestamp: time.Now(),
			Vector:    vector,
		})
	})
	elapsed := time.Since(start)

	best := evaluator.Decode(result.BestVector)
	fmt.Printf("Tuned in %s over %d evaluations (run %s)\n",
		elapsed.Round(time.Second), result.Evaluations, runID)
	fmt.Printf("  bad-pixel cost: %.4f -> %.4f\n", result.InitialCost, result.BestCost)
	fmt.Printf("  block size:     %d\n", best.BlockSize)
	fmt.Printf("  max disparity:  %d\n", best.MaxDisparity)
	fmt.Printf("  uniqueness:     %d\n", best.UniquenessThreshold)
	return nil
}

// truthToS16 reinterprets an 8-bit ground-truth image as disparities.
// The value 255 conventionally marks missing ground truth and maps to
// Unreliable so those pixels are excluded from scoring.
func truthToS16(img *stereo.Image) *stereo.Image {
	out := stereo.NewImage(img.Width, img.Height, stereo.S16)
	for i, v := range img.PixU8 {
		if v == 255 {
			out.PixS16[i] = stereo.Unreliable
		} else {
			out.PixS16[i] = int16(v)
		}
	}
	return out
}
