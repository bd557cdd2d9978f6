package main

import (
	"errors"
	"fmt"

	"questlog/internal/ledger"
	"questlog/internal/notify"
	"questlog/internal/syncer"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	var configPath string
	var withHistory bool

	cmd := &cobra.Command{
		Use:   "progress <checkpoint-id>",
		Short: "Show a checkpoint's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd, configPath, args[0], withHistory)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	cmd.Flags().BoolVar(&withHistory, "history", false, "also print the progress history")
	return cmd
}

func runProgress(cmd *cobra.Command, configPath, checkpointID string, withHistory bool) error {
	_, stores, err := loadStores(configPath)
	if err != nil {
		return err
	}

	progress, err := ledger.Progress(stores.Planner, checkpointID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d%%\n", checkpointID, progress)

	if withHistory {
		entries, err := ledger.History(stores.Planner, checkpointID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			commit := "-"
			if e.CommitID != nil {
				commit = *e.CommitID
			}
			fmt.Fprintf(out, "  %s  %3d%% -> %3d%%  commit=%s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.PreviousProgress, e.NewProgress, commit, e.ChangeReason)
		}
	}
	return nil
}

func newScheduleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule block commands",
	}

	setStatus := &cobra.Command{
		Use:   "set-status <block-id> <status>",
		Short: "Transition a schedule block's status",
		Long:  "Transitions a schedule block among scheduled, in_progress, partially_completed, completed and cancelled. Crossing the completed boundary updates the linked task's completion record.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(cmd, configPath, args[0], args[1])
		},
	}
	setStatus.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")

	cmd.AddCommand(setStatus)
	return cmd
}

func runSetStatus(cmd *cobra.Command, configPath, blockID, status string) error {
	cfg, stores, err := loadStores(configPath)
	if err != nil {
		return err
	}

	s := syncer.New(stores.Schedule, stores.Tasks)
	block, err := s.SetStatus(blockID, status)
	if err != nil {
		var incErr *syncer.InconsistencyError
		if errors.As(err, &incErr) {
			// Drift between the stores is worth an alert even from the CLI.
			if notifier, nerr := buildNotifier(cfg); nerr == nil {
				notifier.Send(cmd.Context(), notify.SyncInconsistentEvent(incErr))
				notifier.Close()
			}
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Block %s is now %s\n", block.ID, block.Status)
	return nil
}
