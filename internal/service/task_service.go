package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gtec-tasks/internal/model"
	"gtec-tasks/internal/repository"
)

// TaskInput represents data required to create a task, as collected by a form.
type TaskInput struct {
	ID               string
	Requester        string
	RequestDate      string
	ProposedDeadline string
	Department       string
	Description      string
	HoursEstimated   float64
	DirectRelease    string
	GTECUser         string
	GTECDeadline     string
	Status           string
}

// TaskService is the lifecycle engine: it validates form input, applies the
// status/rework/approval rules and persists through the store.
type TaskService struct {
	store      repository.TaskStore
	requesters []string
	now        func() time.Time
}

func NewTaskService(store repository.TaskStore, requesters []string) *TaskService {
	return &TaskService{store: store, requesters: requesters, now: time.Now}
}

// Requesters returns the configured requester choices.
func (s *TaskService) Requesters() []string {
	return append([]string(nil), s.requesters...)
}

// CreateTask validates input and stores a new task with no rework or
// approval state. It returns the assigned id.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (string, error) {
	task, err := s.buildTask(input)
	if err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, &task)
	if err != nil {
		return "", err
	}
	log.Printf("[info] task created id=%s requester=%q status=%q", id, task.Requester, task.Status)
	return id, nil
}

func (s *TaskService) buildTask(input TaskInput) (model.Task, error) {
	requester := strings.TrimSpace(input.Requester)
	if requester == "" {
		return model.Task{}, model.Missing("requester")
	}
	if len(s.requesters) > 0 && !containsFold(s.requesters, requester) {
		return model.Task{}, model.Invalid("requester", requester)
	}

	requestDate, err := model.ParseDate("request_date", input.RequestDate)
	if err != nil {
		return model.Task{}, err
	}
	if requestDate.IsZero() {
		requestDate = model.NewDate(s.now())
	}
	if strings.TrimSpace(input.ProposedDeadline) == "" {
		return model.Task{}, model.Missing("proposed_deadline")
	}
	deadline, err := model.ParseDate("proposed_deadline", input.ProposedDeadline)
	if err != nil {
		return model.Task{}, err
	}
	gtecDeadline, err := model.ParseDate("gtec_deadline", input.GTECDeadline)
	if err != nil {
		return model.Task{}, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return model.Task{}, model.Missing("description")
	}
	if input.HoursEstimated < 0 {
		return model.Task{}, model.Invalid("hours_estimated", formatHours(input.HoursEstimated))
	}

	direct, err := model.ParseYesNo("direct_release", input.DirectRelease)
	if err != nil {
		return model.Task{}, err
	}
	if direct == "" {
		direct = model.Yes
	}

	status := model.StatusNotStarted
	if strings.TrimSpace(input.Status) != "" {
		if status, err = model.ParseStatus(input.Status); err != nil {
			return model.Task{}, err
		}
	}

	return model.Task{
		ID:               strings.TrimSpace(input.ID),
		Requester:        canonical(s.requesters, requester),
		RequestDate:      requestDate,
		ProposedDeadline: deadline,
		Department:       strings.TrimSpace(input.Department),
		Description:      description,
		HoursEstimated:   input.HoursEstimated,
		DirectRelease:    direct,
		GTECUser:         strings.TrimSpace(input.GTECUser),
		GTECDeadline:     gtecDeadline,
		Status:           status,
	}, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// Snapshot returns every task in insertion order.
func (s *TaskService) Snapshot(ctx context.Context) ([]model.Task, error) {
	return s.store.List(ctx)
}

// KPIs computes the dashboard summary over a fresh snapshot.
func (s *TaskService) KPIs(ctx context.Context) (KPISummary, error) {
	tasks, err := s.Snapshot(ctx)
	if err != nil {
		return KPISummary{}, err
	}
	return ComputeKPIs(tasks), nil
}

// UpdateStatusFields moves a task's status and resolves its rework and
// approval sub-state. No ordering is enforced between statuses.
func (s *TaskService) UpdateStatusFields(ctx context.Context, id string, upd StatusUpdate) (*model.Task, error) {
	cur, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	resolved, err := resolveStatusUpdate(*cur, upd, s.now())
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", cur.ID, err)
	}
	updated, err := s.store.Update(ctx, cur.ID, model.LifecyclePatch(resolved))
	if err != nil {
		return nil, err
	}
	log.Printf("[info] task updated id=%s status=%q rework=%q approval=%q", updated.ID, updated.Status, updated.ReworkNeeded, updated.FinalApproval)
	return updated, nil
}

// SubmitFinalApproval records the reviewer's decision and completion date.
// Approving OK requires status Completed; an unset completion date is then
// stamped with today.
func (s *TaskService) SubmitFinalApproval(ctx context.Context, id, approval, completionDate string) (*model.Task, error) {
	cur, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	resolved, err := resolveApproval(*cur, approval, completionDate, s.now())
	if err != nil {
		return nil, fmt.Errorf("approve task %s: %w", cur.ID, err)
	}
	updated, err := s.store.Update(ctx, cur.ID, model.TaskPatch{
		FinalApproval:  &resolved.FinalApproval,
		CompletionDate: &resolved.CompletionDate,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[info] final approval id=%s approval=%q completion=%s", updated.ID, updated.FinalApproval, updated.CompletionDate)
	return updated, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func canonical(list []string, v string) string {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item
		}
	}
	return v
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
