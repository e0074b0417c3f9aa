package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sadit-diagnostic-engine/internal/database"
)

var errNoPostgresURL = errors.New("storage.postgres_url is not set")

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL review store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withRunner(func(r *database.MigrationRunner) error {
					return r.Up(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withRunner(func(r *database.MigrationRunner) error {
					return r.Down(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the server, schema version and review table state",
			Args:  cobra.NoArgs,
			RunE:  a.migrateStatus,
		},
	)

	return cmd
}

func (a *app) postgresURL() (string, error) {
	url := a.cfg.GetStorageConfig().PostgresURL
	if url == "" {
		return "", errNoPostgresURL
	}
	return url, nil
}

func (a *app) withRunner(fn func(*database.MigrationRunner) error) error {
	url, err := a.postgresURL()
	if err != nil {
		return err
	}

	runner, err := database.NewMigrationRunner(url, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()

	return fn(runner)
}

func (a *app) migrateStatus(cmd *cobra.Command, _ []string) error {
	url, err := a.postgresURL()
	if err != nil {
		return err
	}

	db, err := database.Connect(cmd.Context(), url, database.DefaultPoolConfig(), a.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.Status(cmd.Context())
	if err != nil {
		return err
	}

	err = a.withRunner(func(r *database.MigrationRunner) error {
		version, dirty, err := r.Version()
		if err != nil {
			return fmt.Errorf("reading migration version: %w", err)
		}
		status.MigrationVersion = version
		status.Dirty = dirty
		return nil
	})
	if err != nil {
		return err
	}

	return a.render(cmd.OutOrStdout(), status, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Server:        PostgreSQL %s\nSchema:        version %d (dirty: %t)\nReview table:  %t\nConnections:   %d\n",
			status.ServerVersion, status.MigrationVersion, status.Dirty, status.ReviewTable, status.TotalConns)
		return err
	})
}
