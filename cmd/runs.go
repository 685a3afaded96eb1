package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/stereomatch/internal/store"
)

var runsDataDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage persisted runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runStore, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}

		infos, err := runStore.ListRuns()
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No runs found")
			return nil
		}

		fmt.Printf("Found %d run(s):\n\n", len(infos))
		for _, info := range infos {
			fmt.Printf("Run ID: %s\n", info.RunID)
			fmt.Printf("  Pair: %s / %s\n", info.LeftPath, info.RightPath)
			fmt.Printf("  Block: %d  Max disparity: %d\n", info.BlockSize, info.MaxDisparity)
			fmt.Printf("  Unreliable: %.1f%%  Elapsed: %dms\n",
				info.UnreliableFraction*100, info.ElapsedMS)
			fmt.Printf("  Finished: %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Println()
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a persisted run and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runStore, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}

		if err := runStore.DeleteRun(args[0]); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data", "./data", "Run store directory")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
