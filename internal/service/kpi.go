package service

import (
	"math"
	"time"

	"gtec-tasks/internal/model"
)

// KPISummary is the dashboard summary over one snapshot.
type KPISummary struct {
	TotalTasks          int     `json:"totalTasks"`
	CompletedTasks      int     `json:"completedTasks"`
	InProgressTasks     int     `json:"inProgressTasks"`
	OnHoldTasks         int     `json:"onHoldTasks"`
	NotStartedTasks     int     `json:"notStartedTasks"`
	ReworkRequiredTasks int     `json:"reworkRequiredTasks"`
	OnTimeTasks         int     `json:"onTimeTasks"`
	LateTasks           int     `json:"lateTasks"`
	UnknownTimingTasks  int     `json:"unknownTimingTasks"`
	OnTimePct           float64 `json:"onTimePct"`
	LatePct             float64 `json:"latePct"`
	ReworkPct           float64 `json:"reworkPct"`
}

// ComputeKPIs summarizes tasks. Completed tasks whose completion date or
// proposed deadline is missing or unparseable count as unknown timing: they
// stay in the completed total but are neither on time nor late.
func ComputeKPIs(tasks []model.Task) KPISummary {
	var k KPISummary
	k.TotalTasks = len(tasks)

	for _, t := range tasks {
		switch t.Status {
		case model.StatusCompleted:
			k.CompletedTasks++
			switch onTime, known := timing(t); {
			case !known:
				k.UnknownTimingTasks++
			case onTime:
				k.OnTimeTasks++
			default:
				k.LateTasks++
			}
		case model.StatusInProgress:
			k.InProgressTasks++
		case model.StatusOnHold:
			k.OnHoldTasks++
		case model.StatusNotStarted:
			k.NotStartedTasks++
		}
		if t.ReworkNeeded == model.Yes {
			k.ReworkRequiredTasks++
		}
	}

	k.OnTimePct = percent(k.OnTimeTasks, k.CompletedTasks)
	k.LatePct = percent(k.LateTasks, k.CompletedTasks)
	k.ReworkPct = percent(k.ReworkRequiredTasks, k.TotalTasks)
	return k
}

func timing(t model.Task) (onTime, known bool) {
	done, ok := t.CompletionDate.Time()
	if !ok {
		return false, false
	}
	deadline, ok := t.ProposedDeadline.Time()
	if !ok {
		return false, false
	}
	return !calendarDay(done).After(calendarDay(deadline)), true
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// percent returns n/d as a percentage rounded to one decimal, 0 when d is 0.
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}
