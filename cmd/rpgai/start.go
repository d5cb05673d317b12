package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/state"
	"github.com/sandevgo/rpgai/internal/transport/telegram"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/sandevgo/rpgai/pkg/srv"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Telegram bot and background workers",
	Long:  `Initializes storage, backends, memory and audio, then serves the owner's Telegram chat until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx, flushLog := bootstrap(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting rpgai")

		app := mustApp(ctx)
		services := []srv.Service{srv.NewCleanup(app.Close), app.Pool}

		tgCfg := config.NewTelegramConfig(ctx)
		sessions := state.NewSessions(tgCfg.DefaultPersonaID, false)

		var transcriber core.Transcriber
		if app.Transcriber != nil {
			transcriber = app.Transcriber
		}

		bot, err := telegram.NewBot(ctx, tgCfg, app.Turns, app.Commands(sessions), sessions, transcriber)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		services = append(services, bot)

		srv.StartServices(ctx, services)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		srv.ShutdownServices(ctx, shutdownCtx, services)
		logger.Info().Msg("rpgai has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
