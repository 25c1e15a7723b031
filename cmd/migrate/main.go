package main

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskhub/internal/pkg/logger"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/database"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the taskhub database schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to config file")

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ran, err := database.Migrate(db)
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			}
			for _, v := range ran {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			migrations, err := database.Status(db)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tAPPLIED")
			for _, m := range migrations {
				applied := "pending"
				if m.AppliedAt != nil {
					applied = time.Unix(*m.AppliedAt, 0).UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\n", m.Version, applied)
			}
			return w.Flush()
		},
	}
}
