package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gtec-tasks/internal/export"
)

func newExportCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all tasks to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, closeFn, err := app.openTasks()
			defer closeFn()
			if err != nil {
				return err
			}
			snapshot, err := tasks.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			if output == "-" {
				return export.WriteWorkbook(cmd.OutOrStdout(), snapshot)
			}
			if output == "" {
				output = export.FileName(time.Now())
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.WriteWorkbook(file, snapshot); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tasks to %s\n", len(snapshot), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default gtec_tasks_<timestamp>.xlsx, - for stdout)")
	return cmd
}
