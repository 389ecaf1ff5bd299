// Package cli wires the gtectasks command tree.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gtec-tasks/internal/config"
	"gtec-tasks/internal/repository"
	"gtec-tasks/internal/service"
)

type App struct {
	ConfigPath string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "gtectasks",
		Short:        "GTEC task tracker: web forms, Telegram bot and KPI reports",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the web front-end, bot and scheduled jobs
  gtectasks serve

  # Print the dashboard numbers
  gtectasks kpi

  # Write the spreadsheet export
  gtectasks export -o tasks.xlsx
`),
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to a YAML config file (environment variables override it)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newKPICmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newExportCmd(app))

	return cmd
}

func (a *App) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// openTasks builds a task service over the configured store. The close func
// is never nil.
func (a *App) openTasks() (*service.TaskService, func() error, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, func() error { return nil }, err
	}
	store, closeFn, err := repository.Open(cfg)
	if err != nil {
		return nil, closeFn, fmt.Errorf("open store: %w", err)
	}
	return service.NewTaskService(store, cfg.Requesters), closeFn, nil
}
