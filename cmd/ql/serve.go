package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"questlog/internal/assess"
	"questlog/internal/config"
	"questlog/internal/db"
	"questlog/internal/notify"
	"questlog/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Questlog API server",
		Long:  "Serves the HTTP API, schedules the daily digest, and delivers notifications to any configured chat adapters. Shuts down gracefully on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured HTTP port")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, stores, err := loadStores(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(stores); err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	provider, err := assess.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer notifier.Close()

	digest, err := notify.StartDigestCron(cfg.Notify.DigestCron, stores, notifier)
	if err != nil {
		return err
	}
	defer digest.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.Opts{
		Stores:   stores,
		Provider: provider,
		Notifier: notifier,
		Config:   cfg,
		Port:     port,
		Out:      cmd.OutOrStdout(),
	})
}

// buildNotifier assembles adapters for every chat platform with credentials
// configured. No credentials means a silent notifier.
func buildNotifier(cfg *config.Config) (*notify.Notifier, error) {
	var adapters []notify.Adapter

	if cfg.Notify.Slack.BotToken != "" {
		slack, err := notify.NewSlack(notify.SlackOpts{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, fmt.Errorf("configure slack notifier: %w", err)
		}
		adapters = append(adapters, slack)
	}

	if cfg.Notify.Discord.BotToken != "" {
		discord, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken: cfg.Notify.Discord.BotToken,
			Channel:  cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return nil, fmt.Errorf("configure discord notifier: %w", err)
		}
		adapters = append(adapters, discord)
	}

	return notify.New(adapters...), nil
}
