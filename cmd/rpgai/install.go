package main

import (
	"github.com/joho/godotenv"
	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/service/installer"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:           "install",
	Short:         "Configure backends, audio and Telegram",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting installation process")

		// run wizard (includes save step)
		if _, err := installer.RunWizard(); err != nil {
			return err
		}

		envPath := config.GetEnvPath()
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", config.GetRuntimePath())
		logger.Info().Msg("Installation complete! Create a persona with 'rpgai persona create', then run 'rpgai chat' or 'rpgai start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
