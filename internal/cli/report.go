package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"gtec-tasks/internal/model"
	"gtec-tasks/internal/service"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	overdueStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#d16d7a"))
)

func newKPICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "kpi",
		Short: "Print the dashboard KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, closeFn, err := app.openTasks()
			defer closeFn()
			if err != nil {
				return err
			}
			kpis, err := tasks.KPIs(cmd.Context())
			if err != nil {
				return err
			}
			return writeKPITable(cmd.OutOrStdout(), kpis)
		},
	}
}

func writeKPITable(w io.Writer, k service.KPISummary) error {
	pct := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" }
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Metric", "Value").
		Rows(
			[]string{"Total tasks", strconv.Itoa(k.TotalTasks)},
			[]string{"Completed", strconv.Itoa(k.CompletedTasks)},
			[]string{"In progress", strconv.Itoa(k.InProgressTasks)},
			[]string{"On hold", strconv.Itoa(k.OnHoldTasks)},
			[]string{"Not started", strconv.Itoa(k.NotStartedTasks)},
			[]string{"On time", fmt.Sprintf("%d (%s)", k.OnTimeTasks, pct(k.OnTimePct))},
			[]string{"Late", fmt.Sprintf("%d (%s)", k.LateTasks, pct(k.LatePct))},
			[]string{"Unknown timing", strconv.Itoa(k.UnknownTimingTasks)},
			[]string{"Rework required", fmt.Sprintf("%d (%s)", k.ReworkRequiredTasks, pct(k.ReworkPct))},
		)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newListCmd(app *App) *cobra.Command {
	var (
		status  string
		overdue bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.Status
			if strings.TrimSpace(status) != "" {
				s, err := model.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = s
			}

			tasks, closeFn, err := app.openTasks()
			defer closeFn()
			if err != nil {
				return err
			}
			snapshot, err := tasks.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			selected := snapshot[:0]
			for _, t := range snapshot {
				if filter != "" && t.Status != filter {
					continue
				}
				if overdue && !t.IsOverdue(now) {
					continue
				}
				selected = append(selected, t)
			}
			return writeTaskTable(cmd.OutOrStdout(), selected, now)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Only open tasks past their proposed deadline")
	return cmd
}

func writeTaskTable(w io.Writer, tasks []model.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Requester,
			string(t.ProposedDeadline),
			truncate(t.Description, 40),
			string(t.Status),
			string(t.CompletionDate),
			string(t.ReworkNeeded),
			string(t.FinalApproval),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(tasks) && tasks[row].IsOverdue(now):
				return overdueStyle
			default:
				return cellStyle
			}
		}).
		Headers("ID", "Requester", "Deadline", "Description", "Status", "Completed", "Rework", "Approval").
		Rows(rows...)
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
