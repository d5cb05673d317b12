package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/rpgai/internal/core"
)

type HealthCommand struct {
	checker   healthChecker
	formatter *ResponseFormatter
}

func NewHealthCommand(checker healthChecker) *HealthCommand {
	return &HealthCommand{
		checker:   checker,
		formatter: NewResponseFormatter(),
	}
}

func (c *HealthCommand) Name() string {
	return "health"
}

func (c *HealthCommand) Description() string {
	return "Check backends and audio services"
}

func (c *HealthCommand) Execute(ctx context.Context, _ string, _ []string) (string, error) {
	report := c.checker.Check(ctx)

	items := make([]string, 0, len(report.Components))
	for _, comp := range report.Components {
		mark := "✅"
		if !comp.Healthy {
			mark = "❌"
		}
		items = append(items, fmt.Sprintf("%s %s `%s`", mark, comp.Kind, comp.Name))
	}

	status := "Healthy"
	if !report.Healthy() {
		status = "Degraded"
	}
	return c.formatter.Combine(
		c.formatter.Info(status),
		c.formatter.List(items),
	), nil
}

// ModelsCommand lists the models each backend offers.
type ModelsCommand struct {
	lister    modelLister
	formatter *ResponseFormatter
}

const maxModelsShown = 15

func NewModelsCommand(lister modelLister) *ModelsCommand {
	return &ModelsCommand{
		lister:    lister,
		formatter: NewResponseFormatter(),
	}
}

func (c *ModelsCommand) Name() string {
	return "models"
}

func (c *ModelsCommand) Description() string {
	return "List models per backend"
}

func (c *ModelsCommand) Execute(ctx context.Context, _ string, args []string) (string, error) {
	all := c.lister.ListModels(ctx)
	if len(all) == 0 {
		return c.formatter.Info("No backend could list models"), nil
	}

	names := make([]string, 0, len(all))
	for name := range all {
		if len(args) > 0 && name != args[0] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sections := []string{c.formatter.Info("Models")}
	for _, name := range names {
		models := all[name]
		shown := models
		if len(shown) > maxModelsShown {
			shown = shown[:maxModelsShown]
		}
		body := c.formatter.List(shown)
		if extra := len(models) - len(shown); extra > 0 {
			body += fmt.Sprintf("… and %d more\n", extra)
		}
		sections = append(sections, c.formatter.Section("🧠", name, body))
	}
	sections = append(sections, c.formatter.Usage("/models [backend]"))
	return c.formatter.Combine(sections...), nil
}

type commandLister interface {
	ListCommands() []core.Command
}

type HelpCommand struct {
	lister    commandLister
	formatter *ResponseFormatter
}

func NewHelpCommand(lister commandLister) *HelpCommand {
	return &HelpCommand{
		lister:    lister,
		formatter: NewResponseFormatter(),
	}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "List commands"
}

func (c *HelpCommand) Execute(context.Context, string, []string) (string, error) {
	var sb strings.Builder
	for _, cmd := range c.lister.ListCommands() {
		sb.WriteString(fmt.Sprintf("/%s  ›  %s\n", cmd.Name(), cmd.Description()))
	}
	return c.formatter.Combine(
		c.formatter.Info("Commands"),
		sb.String(),
		c.formatter.Tip("Anything else you type is said to the active persona"),
	), nil
}
