package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cwbudde/stereomatch/internal/imageio"
	"github.com/cwbudde/stereomatch/internal/stereo"
	"github.com/cwbudde/stereomatch/internal/store"
)

// runJob executes a matching job in the background, streaming stage
// progress through the broadcaster and persisting the finished run when a
// store is configured.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID,
		"left", job.Config.LeftPath, "right", job.Config.RightPath)

	left, right, err := loadPair(job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	slog.Info("Loaded stereo pair", "job_id", jobID,
		"width", left.Width, "height", left.Height)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	params := matchParams(job.Config)
	params.Progress = func(stage string, done, total int) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Stage = stage
			j.StageDone = done
			j.StageTotal = total
		})
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	out := stereo.NewImage(left.Width, left.Height, stereo.S16)
	start := time.Now()
	err = stereo.ComputeDisparityMap(left, right, out, params)
	elapsed := time.Since(start)
	close(progressDone)

	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("matching failed: %w", err))
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	result := store.NewRunResult(jobID, job.Config, out.Width, out.Height)
	result.ElapsedMS = elapsed.Milliseconds()
	summarize(out, params, result)

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.EndTime = &endTime
		j.disparity = out
	}); err != nil {
		return err
	}

	if runStore != nil {
		if err := persistRun(runStore, jobID, result, out); err != nil {
			slog.Warn("Failed to persist run", "job_id", jobID, "error", err)
		}
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"unreliable_fraction", result.UnreliableFraction,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Stage:     stereo.StageSelect,
		Done:      1,
		Total:     1,
		Timestamp: time.Now(),
	})
	return nil
}

// loadPair loads and optionally downscales both input images.
func loadPair(config JobConfig) (left, right *stereo.Image, err error) {
	leftGray, err := imageio.LoadGray(config.LeftPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load left image: %w", err)
	}
	rightGray, err := imageio.LoadGray(config.RightPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load right image: %w", err)
	}

	if config.Scale > 0 && config.Scale < 1 {
		leftGray, err = imageio.Downscale(leftGray, config.Scale)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scale left image: %w", err)
		}
		rightGray, err = imageio.Downscale(rightGray, config.Scale)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scale right image: %w", err)
		}
	}
	return stereo.FromGray(leftGray), stereo.FromGray(rightGray), nil
}

// matchParams translates a job config into matcher parameters.
func matchParams(config JobConfig) stereo.Params {
	params := stereo.DefaultParams()
	params.BlockSize = config.BlockSize
	params.MaxDisparity = config.MaxDisparity
	params.UniquenessThreshold = config.UniquenessThreshold
	params.PreFilter = config.PreFilter
	params.InterpolateBad = config.InterpolateBad
	if config.Workers > 0 {
		params.Workers = config.Workers
	}
	return params
}

// summarize fills the observed disparity range and unreliable fraction of
// the valid region into the result record.
func summarize(out *stereo.Image, params stereo.Params, result *store.RunResult) {
	half := params.BlockSize / 2
	w, h := out.Width, out.Height

	minD, maxD := 0, 0
	first := true
	total, unreliable := 0, 0
	for y := half; y < h-half; y++ {
		row := y * w
		for x := params.MaxDisparity; x < w-half; x++ {
			total++
			v := out.PixS16[row+x]
			if v == stereo.Unreliable {
				unreliable++
				continue
			}
			if first {
				minD, maxD = int(v), int(v)
				first = false
				continue
			}
			if int(v) < minD {
				minD = int(v)
			}
			if int(v) > maxD {
				maxD = int(v)
			}
		}
	}

	result.MinDisparity = minD
	result.MaxDisparity = maxD
	if total > 0 {
		result.UnreliableFraction = float64(unreliable) / float64(total)
	}
}

// persistRun saves the result record and the rendered disparity image.
func persistRun(runStore store.Store, jobID string, result *store.RunResult, out *stereo.Image) error {
	if err := runStore.SaveRun(jobID, result); err != nil {
		return err
	}
	dir, err := runStore.RunDir(jobID)
	if err != nil {
		return err
	}
	rendered := imageio.RenderDisparity(out)
	if err := imageio.SaveGray(filepath.Join(dir, "disparity.png"), rendered); err != nil {
		return err
	}
	slog.Debug("Run artifacts saved", "job_id", jobID, "dir", dir)
	return nil
}

// monitorProgress broadcasts job progress at a throttled rate while the
// matcher runs.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:     jobID,
				State:     job.State,
				Stage:     job.Stage,
				Done:      job.StageDone,
				Total:     job.StageTotal,
				Timestamp: time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message.
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled.
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
