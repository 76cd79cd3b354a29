package main

import (
	"fmt"
	"io"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/wplc/livechat/internal/bootstrap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the chat tables",
		Long:  "Runs the schema migration for sessions, messages, files, operators and flow state. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.OutOrStdout(), bootstrap.BuildContainer())
		},
	}
}

func runMigrate(out io.Writer, inj *do.Injector) error {
	database, err := do.Invoke[*gorm.DB](inj)
	if err != nil {
		return fmt.Errorf("migrate: open database: %w", err)
	}
	models := bootstrap.Models()
	if err := database.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(out, "Migrated %d tables.\n", len(models))
	return nil
}
