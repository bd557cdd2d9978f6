package main

import (
	"fmt"

	"questlog/internal/config"
	"questlog/internal/db"
	"github.com/spf13/cobra"
)

// loadStores loads the config file and opens all three stores.
func loadStores(configPath string) (*config.Config, *db.Stores, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	stores, err := db.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, stores, nil
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath == defaultConfigPath {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

const defaultConfigPath = "questlog.yaml"

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Questlog stores",
		Long:  "Creates the planner, schedule and tasks stores and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// MySQL backends need their databases created before GORM can connect.
	if cfg.MySQL != nil {
		adminDB, err := db.ConnectAdmin(cfg.MySQL.Host, cfg.MySQL.Port)
		if err != nil {
			return err
		}
		for _, suffix := range []string{"planner", "schedule", "tasks"} {
			name := cfg.MySQL.Prefix + "_" + suffix
			if err := db.CreateDatabase(adminDB, name); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created database %s\n", name)
		}
	}

	stores, err := db.Open(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(stores); err != nil {
		return err
	}
	fmt.Fprintln(out, "Stores migrated: planner, schedule, tasks")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var configPath string
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every table in all stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			_, stores, err := loadStores(configPath)
			if err != nil {
				return err
			}
			if err := db.Reset(stores); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All stores reset")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Questlog config file")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm destructive reset")
	return cmd
}
