package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/database"
)

func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := database.Connect(database.ConfigFromEnv())
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.MigrateUp(db); err != nil {
					return err
				}
				e.logger.Info("schema is up to date")
				return nil
			},
		},
		newMigrateDownCmd(e),
	)
	return cmd
}

func newMigrateDownCmd(e *env) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			db, err := database.Connect(database.ConfigFromEnv())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.MigrateDown(db, steps); err != nil {
				return err
			}
			e.logger.Infow("rolled back migrations", "steps", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}
