package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sandevgo/rpgai/internal/service/state"
	"github.com/sandevgo/rpgai/internal/transport/cli"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/spf13/cobra"
)

var chatFlags struct {
	persona string
	voice   bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a persona in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ctx, flushLog := bootstrap(ctx)
		defer flushLog()

		app := mustApp(ctx)
		defer app.Close()

		// Workers run until the chat ends, then drain.
		poolCtx, stopPool := context.WithCancel(ctx)
		go func() {
			if err := app.Pool.Start(poolCtx); err != nil {
				log.FromCtx(ctx).Error().Err(err).Msg("background pool failed")
			}
		}()
		defer func() {
			stopPool()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = app.Pool.Shutdown(shutdownCtx)
		}()

		sessions := state.NewSessions(chatFlags.persona, chatFlags.voice && app.Synthesizer != nil)
		rl, err := cli.NewReadLine(app.Cfg, app.Turns, app.Commands(sessions), sessions, chatFlags.persona)
		if err != nil {
			return err
		}
		defer rl.Shutdown(ctx)

		return rl.Start(ctx)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatFlags.persona, "persona", "p", "", "persona id to talk to")
	chatCmd.Flags().BoolVar(&chatFlags.voice, "voice", false, "synthesize replies when audio is enabled")
	rootCmd.AddCommand(chatCmd)
}
