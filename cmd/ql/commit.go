package main

import (
	"fmt"
	"strings"
	"time"

	"questlog/internal/assess"
	"questlog/internal/planner"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var configPath, questID, milestoneID, date string

	cmd := &cobra.Command{
		Use:   "commit <content>",
		Short: "Record a daily progress report",
		Long:  "Records a free-text daily progress report (a \"commit\") against a quest. Run `ql assess` afterwards to turn it into checkpoint progress.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return runCommit(cmd, configPath, questID, milestoneID, date, content)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	cmd.Flags().StringVarP(&questID, "quest", "q", "", "quest ID (required)")
	cmd.Flags().StringVarP(&milestoneID, "milestone", "m", "", "milestone ID (defaults to the quest's current milestone at assessment time)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "commit date, YYYY-MM-DD (default today)")
	cmd.MarkFlagRequired("quest")
	return cmd
}

func runCommit(cmd *cobra.Command, configPath, questID, milestoneID, date, content string) error {
	_, stores, err := loadStores(configPath)
	if err != nil {
		return err
	}
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	commit, err := planner.CreateCommit(stores.Planner, planner.CommitOpts{
		QuestID:     questID,
		MilestoneID: milestoneID,
		CommitDate:  date,
		Content:     content,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Commit %s recorded for %s\n", commit.ID, commit.CommitDate)
	return nil
}

func newAssessCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assess <commit-id>",
		Short: "Assess a commit against its open checkpoints",
		Long:  "Sends the commit to the configured LLM assessor and applies the suggested progress through the ledger. Reports how many checkpoints changed, stayed put, or failed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	return cmd
}

func runAssess(cmd *cobra.Command, configPath, commitID string) error {
	cfg, stores, err := loadStores(configPath)
	if err != nil {
		return err
	}
	provider, err := assess.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	result, err := assess.AssessCommit(cmd.Context(), stores.Planner, provider, commitID, assess.Options{
		Timeout:      cfg.LLM.Timeout(),
		AbortOnError: cfg.Assessment.AbortOnError,
		MaxReasonLen: cfg.Assessment.MaxReasonLen,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(result.Assessments) == 0 && result.Skipped == 0 {
		fmt.Fprintf(out, "No open checkpoints for commit %s\n", commitID)
		return nil
	}
	fmt.Fprintf(out, "Assessed commit %s with %s: %d suggestions, %d changes, %d no-ops, %d skipped, %d failed\n",
		commitID, result.Model, len(result.Assessments), len(result.Changes), result.NoOps, result.Skipped, result.Failed)
	for _, ch := range result.Changes {
		suffix := ""
		if ch.Completed {
			suffix = " (completed)"
		}
		fmt.Fprintf(out, "  %s: %d%% -> %d%%%s\n", ch.CheckpointID, ch.Previous, ch.Final, suffix)
	}
	return nil
}
