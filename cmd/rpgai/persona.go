package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/persona"
	"github.com/sandevgo/rpgai/internal/service/ui"
	"github.com/spf13/cobra"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Create, import and manage personas",
}

var createFlags struct {
	concept string
	backend string
	model   string
	voice   string
	owner   string
}

var personaCreateCmd = &cobra.Command{
	Use:   "create [concept]",
	Short: "Generate a persona from a free-text concept",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		concept := createFlags.concept
		if len(args) == 1 {
			concept = args[0]
		}

		p, err := app.Personas.Generate(ctx, persona.GenerateRequest{
			OwnerID: createFlags.owner,
			Concept: concept,
			Backend: createFlags.backend,
			Model:   createFlags.model,
			Voice:   createFlags.voice,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render(p.Name))
		fmt.Fprintf(out, "%s %s\n", ui.DescStyle.Render("id:"), p.ID)
		if p.Summary != "" {
			fmt.Fprintf(out, "%s\n", p.Summary)
		}
		return nil
	},
}

var personaImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import personas from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		created, err := app.Personas.Import(ctx, createFlags.owner, f)
		if err != nil {
			return err
		}
		for _, p := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Mark(true), p.ID, p.Name)
		}
		return nil
	},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		list, err := app.Personas.List(ctx, createFlags.owner)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no personas yet, create one with 'rpgai persona create'")
			return nil
		}

		rows := make([][]string, 0, len(list))
		for _, p := range list {
			rows = append(rows, []string{p.ID, p.Name, backendLabel(p), p.Voice})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "BACKEND", "VOICE"}, rows)
		return nil
	},
}

func backendLabel(p core.Persona) string {
	b := p.Backend
	if b == "" {
		b = "default"
	}
	if p.Model != "" {
		b += "/" + p.Model
	}
	return b
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Deactivate a persona, keeping its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		if err := app.Personas.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s deactivated\n", ui.Mark(true), args[0])
		return nil
	},
}

var personaAddDocCmd = &cobra.Command{
	Use:   "add-doc <persona-id> <file|url>",
	Short: "Attach a reference document (text, Markdown or HTML)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		personaID, src := args[0], args[1]

		var (
			doc *core.Document
			err error
		)
		if isURL(src) {
			doc, err = app.Personas.FetchDocument(ctx, personaID, src)
		} else {
			var raw []byte
			raw, err = os.ReadFile(src)
			if err != nil {
				return err
			}
			doc, err = app.Personas.AddDocument(ctx, personaID, filepath.Base(src), raw)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%d chars)\n", ui.Mark(true), doc.ID, doc.Filename, utf8.RuneCountInString(doc.Content))
		return nil
	},
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var personaDocsCmd = &cobra.Command{
	Use:   "docs <persona-id>",
	Short: "List a persona's reference documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		docs, err := app.Personas.Documents(ctx, args[0])
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(docs))
		for _, d := range docs {
			ct, _, _ := strings.Cut(d.ContentType, ";")
			rows = append(rows, []string{d.ID, d.Filename, ct, strconv.Itoa(utf8.RuneCountInString(d.Content))})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "FILENAME", "TYPE", "CHARS"}, rows)
		return nil
	},
}

var personaRmDocCmd = &cobra.Command{
	Use:   "rm-doc <persona-id> <document-id>",
	Short: "Remove a reference document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := bootstrap(cmd.Context())
		defer flushLog()
		app := mustApp(ctx)
		defer app.Close()

		if err := app.Personas.RemoveDocument(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s removed\n", ui.Mark(true), args[1])
		return nil
	},
}

func init() {
	personaCmd.PersistentFlags().StringVar(&createFlags.owner, "owner", "", "owner id (defaults to RPGAI_OWNER_ID)")

	personaCreateCmd.Flags().StringVar(&createFlags.concept, "concept", "", "character concept")
	personaCreateCmd.Flags().StringVar(&createFlags.backend, "backend", "", "backend the persona talks through")
	personaCreateCmd.Flags().StringVar(&createFlags.model, "model", "", "model override")
	personaCreateCmd.Flags().StringVar(&createFlags.voice, "voice", "", "Piper voice")

	personaCmd.AddCommand(
		personaCreateCmd,
		personaImportCmd,
		personaListCmd,
		personaDeleteCmd,
		personaAddDocCmd,
		personaDocsCmd,
		personaRmDocCmd,
	)
	rootCmd.AddCommand(personaCmd)
}
