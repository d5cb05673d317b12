package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/service/ui"
	"github.com/sandevgo/rpgai/pkg/env"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backends and audio services",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		report := app.Health.Check(ctx)
		out := cmd.OutOrStdout()
		for _, c := range report.Components {
			fmt.Fprintf(out, "%s %-8s %s\n", ui.Mark(c.Healthy), c.Kind, c.Name)
		}
		if !report.Healthy() {
			return errors.New("no backend is reachable")
		}
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models [backend]",
	Short: "List models offered by each backend",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		all := app.Router.ListModels(ctx)
		names := make([]string, 0, len(all))
		for name := range all {
			if len(args) == 1 && name != args[0] {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintln(out, ui.TitleStyle.Render(name))
			for _, m := range all[name] {
				fmt.Fprintf(out, "  %s\n", m)
			}
		}
		if len(names) == 0 {
			return errors.New("no backend could list models")
		}
		return nil
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Audio pipeline maintenance",
}

var audioClearCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete cached synthesized speech",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		if app.Synthesizer == nil {
			return errors.New("voice is disabled, set RPGAI_VOICE_ENABLED=true")
		}
		n, err := app.Synthesizer.ClearCache()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d cached file(s)\n", ui.Mark(true), n)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as .env lines, secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()

		app := config.NewAppConfig(ctx)
		backends := config.NewBackendsConfig(ctx)
		memory := config.NewMemoryConfig(ctx)
		voice := config.NewVoiceConfig(ctx)

		b := *backends
		b.OpenRouter.APIKey = mask(b.OpenRouter.APIKey)
		b.OpenAI.APIKey = mask(b.OpenAI.APIKey)
		b.Anthropic.APIKey = mask(b.Anthropic.APIKey)

		content, err := env.MarshalEnv(app, &b, memory, voice)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", config.GetEnvPath())
		fmt.Fprint(out, content)
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

func init() {
	audioCmd.AddCommand(audioClearCmd)
	rootCmd.AddCommand(healthCmd, modelsCmd, audioCmd, configCmd)
}
