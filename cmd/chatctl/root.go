package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// env is loaded once before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	sync   func() error
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "chatctl",
		Short:         "Operate the chat service: run nudge ticks, migrate the schema, test mail",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.sync != nil {
				_ = e.sync()
			}
		},
	}

	rootCmd.AddCommand(
		newNudgeCmd(e),
		newMigrateCmd(e),
		newMailCmd(e),
	)
	return rootCmd
}

func (e *env) load() error {
	_ = godotenv.Load()
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load(viper.New())
	if err != nil {
		return err
	}
	e.cfg, e.logger, e.sync = cfg, lg.Sugar(), lg.Sync
	return nil
}
