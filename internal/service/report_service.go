package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"gtec-tasks/internal/model"
)

// ReportService builds human-readable KPI digests for chat notifications.
type ReportService struct {
	tasks *TaskService
}

func NewReportService(tasks *TaskService) *ReportService {
	return &ReportService{tasks: tasks}
}

// Digest renders the KPI summary plus overdue and unapproved tasks as
// Telegram HTML.
func (s *ReportService) Digest(ctx context.Context, now time.Time) (string, error) {
	tasks, err := s.tasks.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return BuildDigest(tasks, now), nil
}

// BuildDigest is the pure part of Digest.
func BuildDigest(tasks []model.Task, now time.Time) string {
	k := ComputeKPIs(tasks)

	var overdue, awaiting []model.Task
	for _, task := range tasks {
		switch {
		case task.IsOverdue(now):
			overdue = append(overdue, task)
		case task.AwaitingApproval():
			awaiting = append(awaiting, task)
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		di, _ := overdue[i].ProposedDeadline.Time()
		dj, _ := overdue[j].ProposedDeadline.Time()
		return di.Before(dj)
	})

	var builder strings.Builder
	builder.WriteString("📊 <b>GTEC task report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))
	builder.WriteString(FormatKPIs(k))

	builder.WriteString("\n⚠️ <b>Overdue</b>\n")
	if len(overdue) == 0 {
		builder.WriteString("— nothing overdue\n")
	} else {
		for _, task := range overdue {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString("\n🕒 <b>Awaiting approval</b>\n")
	if len(awaiting) == 0 {
		builder.WriteString("— no completed task is waiting\n")
	} else {
		for _, task := range awaiting {
			builder.WriteString(formatTask(task, now))
		}
	}

	return strings.TrimSpace(builder.String())
}

// FormatKPIs renders k as Telegram HTML lines.
func FormatKPIs(k KPISummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("• Total: <b>%d</b>\n", k.TotalTasks))
	sb.WriteString(fmt.Sprintf("• Completed: %d · In progress: %d · On hold: %d · Not started: %d\n",
		k.CompletedTasks, k.InProgressTasks, k.OnHoldTasks, k.NotStartedTasks))
	sb.WriteString(fmt.Sprintf("• On time: %d (%.1f%%) · Late: %d (%.1f%%)\n",
		k.OnTimeTasks, k.OnTimePct, k.LateTasks, k.LatePct))
	if k.UnknownTimingTasks > 0 {
		sb.WriteString(fmt.Sprintf("• Unknown timing: %d\n", k.UnknownTimingTasks))
	}
	sb.WriteString(fmt.Sprintf("• Rework: %d (%.1f%%)\n", k.ReworkRequiredTasks, k.ReworkPct))
	return sb.String()
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if deadline, ok := task.ProposedDeadline.Time(); ok && task.Status != model.StatusCompleted {
		switch {
		case task.IsOverdue(now):
			icon = "⚠️"
		case deadline.Sub(calendarDay(now)) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	description := html.EscapeString(strings.TrimSpace(task.Description))
	sb.WriteString(fmt.Sprintf("%s <b>#%s</b> %s", icon, html.EscapeString(task.ID), description))

	if task.GTECUser != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(task.GTECUser)))
	}

	if deadline, ok := task.ProposedDeadline.Time(); ok {
		if task.IsOverdue(now) {
			days := int(calendarDay(now).Sub(deadline).Hours() / 24)
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>%d d late</b>", deadline.Format(model.DateLayout), days))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", deadline.Format(model.DateLayout)))
		}
	}
	if task.Status == model.StatusCompleted && !task.CompletionDate.IsZero() {
		sb.WriteString(fmt.Sprintf("\n   ✅ completed %s", html.EscapeString(string(task.CompletionDate))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
