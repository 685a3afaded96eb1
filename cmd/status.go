package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		config := job["config"].(map[string]interface{})
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		fmt.Printf("  Pair: %s / %s\n", config["leftPath"], config["rightPath"])
		fmt.Printf("  Block: %v  Max disparity: %v\n", config["blockSize"], config["maxDisparity"])
		if job["error"] != nil && job["error"].(string) != "" {
			fmt.Printf("  Error: %s\n", job["error"])
		}
		fmt.Println()
	}
	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	config := status["config"].(map[string]interface{})
	fmt.Println("Configuration:")
	fmt.Printf("  Left: %s\n", config["leftPath"])
	fmt.Printf("  Right: %s\n", config["rightPath"])
	fmt.Printf("  Block size: %v\n", config["blockSize"])
	fmt.Printf("  Max disparity: %v\n", config["maxDisparity"])
	fmt.Printf("  Uniqueness: %v\n", config["uniquenessThreshold"])
	fmt.Println()

	if stage, ok := status["stage"].(string); ok && stage != "" {
		fmt.Printf("Progress: %s (%v/%v)\n", stage, status["stageDone"], status["stageTotal"])
	}

	if result, ok := status["result"].(map[string]interface{}); ok && result != nil {
		fmt.Println("Result:")
		fmt.Printf("  Size: %vx%v\n", result["width"], result["height"])
		fmt.Printf("  Disparity range: [%v, %v]\n", result["minDisparity"], result["maxDisparity"])
		fmt.Printf("  Unreliable: %.1f%%\n", result["unreliableFraction"].(float64)*100)
		fmt.Printf("  Elapsed: %vms\n", result["elapsedMs"])
	}

	if status["elapsed"] != nil {
		elapsed := time.Duration(status["elapsed"].(float64) * float64(time.Second))
		fmt.Printf("Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}
	if status["error"] != nil && status["error"].(string) != "" {
		fmt.Printf("\nError: %s\n", status["error"])
	}
	return nil
}
