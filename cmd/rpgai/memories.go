package main

import (
	"errors"
	"fmt"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/ui"
	"github.com/spf13/cobra"
)

var subjectFlags struct {
	persona string
	user    string
	global  bool
	limit   int
}

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Show what a persona remembers about a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		if !app.Gateway.Enabled() {
			return errors.New("memory is disabled, set RPGAI_MEMORY_ENABLED=true")
		}

		scope := core.UserScope(subjectFlags.user)
		if !subjectFlags.global {
			if subjectFlags.persona == "" {
				return errors.New("--persona is required unless --global is set")
			}
			scope = core.CharacterScope(subjectFlags.persona, subjectFlags.user)
		}

		recs, err := app.Gateway.Summary(ctx, scope)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no memories yet")
			return nil
		}

		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, []string{r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Category, r.Text})
		}
		printTable(cmd.OutOrStdout(), []string{"WHEN", "CATEGORY", "FACT"}, rows)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest conversation between a persona and a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		if subjectFlags.persona == "" {
			return errors.New("--persona is required")
		}

		msgs, err := app.Conversations.History(ctx, subjectFlags.persona, subjectFlags.user, subjectFlags.limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range msgs {
			who := ui.UsageStyle.Render(string(m.Role))
			if m.Role == core.RoleAssistant {
				who = ui.FlagStyle.Render(string(m.Role))
			}
			fmt.Fprintf(out, "%s %s %s\n", ui.DescStyle.Render(m.CreatedAt.Local().Format("15:04")), who, m.Content)
		}
		if len(msgs) == 0 {
			fmt.Fprintln(out, "no messages yet")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{memoriesCmd, historyCmd} {
		c.Flags().StringVarP(&subjectFlags.persona, "persona", "p", "", "persona id")
		c.Flags().StringVarP(&subjectFlags.user, "user", "u", "cli-local", "user id")
	}
	memoriesCmd.Flags().BoolVar(&subjectFlags.global, "global", false, "show facts across every persona")
	historyCmd.Flags().IntVarP(&subjectFlags.limit, "limit", "n", 20, "messages to show")

	rootCmd.AddCommand(memoriesCmd, historyCmd)
}
