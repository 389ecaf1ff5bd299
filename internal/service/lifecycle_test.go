package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gtec-tasks/internal/model"
	"gtec-tasks/internal/repository"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *TaskService {
	t.Helper()
	svc := NewTaskService(repository.NewMemoryStore(), []string{"Anna P.", "Marco R."})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func createTask(t *testing.T, svc *TaskService, direct string) string {
	t.Helper()
	id, err := svc.CreateTask(context.Background(), TaskInput{
		Requester:        "Anna P.",
		RequestDate:      "2025-03-01",
		ProposedDeadline: "2025-03-20",
		Department:       "Tooling",
		Description:      "Fixture drawing",
		HoursEstimated:   6,
		DirectRelease:    direct,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func hours(h float64) *float64 { return &h }

func TestCreateTaskDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateTask(ctx, TaskInput{
		Requester:        "anna p.",
		ProposedDeadline: "2025-03-20",
		Description:      "  Update BOM  ",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if id != "1" {
		t.Fatalf("expected id 1, got %q", id)
	}

	task, err := svc.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Requester != "Anna P." {
		t.Errorf("requester not canonicalized: %q", task.Requester)
	}
	if task.RequestDate != "2025-03-14" {
		t.Errorf("request date should default to today, got %q", task.RequestDate)
	}
	if task.Status != model.StatusNotStarted || task.DirectRelease != model.Yes {
		t.Errorf("unexpected defaults: status=%q direct=%q", task.Status, task.DirectRelease)
	}
	if task.Description != "Update BOM" {
		t.Errorf("description not trimmed: %q", task.Description)
	}
	if task.ReworkNeeded != "" || task.FinalApproval != "" || !task.CompletionDate.IsZero() {
		t.Errorf("rework/approval state should be unset: %+v", task)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	cases := []struct {
		name  string
		input TaskInput
		want  error
		field string
	}{
		{
			name:  "missing requester",
			input: TaskInput{ProposedDeadline: "2025-03-20", Description: "x"},
			want:  model.ErrMissingRequiredField,
			field: "requester",
		},
		{
			name:  "unknown requester",
			input: TaskInput{Requester: "Someone", ProposedDeadline: "2025-03-20", Description: "x"},
			want:  model.ErrInvalidEnumValue,
			field: "requester",
		},
		{
			name:  "missing deadline",
			input: TaskInput{Requester: "Anna P.", Description: "x"},
			want:  model.ErrMissingRequiredField,
			field: "proposed_deadline",
		},
		{
			name:  "bad deadline",
			input: TaskInput{Requester: "Anna P.", ProposedDeadline: "next friday", Description: "x"},
			want:  model.ErrUnparseableDate,
			field: "proposed_deadline",
		},
		{
			name:  "missing description",
			input: TaskInput{Requester: "Anna P.", ProposedDeadline: "2025-03-20", Description: "  "},
			want:  model.ErrMissingRequiredField,
			field: "description",
		},
		{
			name:  "negative hours",
			input: TaskInput{Requester: "Anna P.", ProposedDeadline: "2025-03-20", Description: "x", HoursEstimated: -1},
			want:  model.ErrInvalidEnumValue,
			field: "hours_estimated",
		},
		{
			name:  "bad status",
			input: TaskInput{Requester: "Anna P.", ProposedDeadline: "2025-03-20", Description: "x", Status: "Archived"},
			want:  model.ErrInvalidEnumValue,
			field: "status",
		},
		{
			name:  "bad direct release",
			input: TaskInput{Requester: "Anna P.", ProposedDeadline: "2025-03-20", Description: "x", DirectRelease: "maybe"},
			want:  model.ErrInvalidEnumValue,
			field: "direct_release",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			_, err := svc.CreateTask(context.Background(), tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var fe *model.FieldError
			if !errors.As(err, &fe) || fe.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
			if tasks, _ := svc.Snapshot(context.Background()); len(tasks) != 0 {
				t.Fatalf("store should stay empty, got %d tasks", len(tasks))
			}
		})
	}
}

func TestCreateTaskDuplicateID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	input := TaskInput{ID: "REQ-1", Requester: "Anna P.", ProposedDeadline: "2025-03-20", Description: "x"}

	if _, err := svc.CreateTask(ctx, input); err != nil {
		t.Fatalf("first CreateTask: %v", err)
	}
	if _, err := svc.CreateTask(ctx, input); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDirectReleaseClearsReworkState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "No")

	// Put the task through a failed check first so there is stale state.
	_, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{
		Status:          "In progress",
		FinalCheck:      "No",
		ReworkType:      "Major",
		ReworkHours:     hours(4),
		ReworkConfirmed: true,
		FinalApproval:   "Pending",
	})
	if err != nil {
		t.Fatalf("rework update: %v", err)
	}

	for _, status := range []string{"Not yet started", "On hold", "In progress", "Completed"} {
		task, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: status, DirectRelease: "Yes"})
		if err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
		if task.DirectRelease != model.Yes {
			t.Fatalf("direct release not applied: %q", task.DirectRelease)
		}
		if task.ReworkNeeded != "" || task.ReworkType != "" || task.ReworkHours != 0 ||
			task.ReworkStatus != "" || task.FinalApproval != "" {
			t.Fatalf("stale rework state after %s: %+v", status, task)
		}

		stored, _ := svc.GetTask(ctx, id)
		if stored.ReworkType != "" || stored.FinalApproval != "" {
			t.Fatalf("stored task keeps stale state: %+v", stored)
		}
	}
}

func TestDirectReleaseRejectsReworkFields(t *testing.T) {
	svc := newTestService(t)
	id := createTask(t, svc, "Yes")

	_, err := svc.UpdateStatusFields(context.Background(), id, StatusUpdate{
		Status:     "Completed",
		ReworkType: "Minor",
	})
	if !errors.Is(err, model.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestStatusMovesFreely(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "Yes")

	for _, status := range []model.Status{model.StatusCompleted, model.StatusNotStarted, model.StatusOnHold, model.StatusInProgress, model.StatusCompleted} {
		task, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: string(status)})
		if err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
		if task.Status != status {
			t.Fatalf("expected %s, got %s", status, task.Status)
		}
	}
}

func TestUpdateRequiresStatusAndCheck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "No")

	if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{}); !errors.Is(err, model.ErrMissingRequiredField) {
		t.Fatalf("missing status: expected ErrMissingRequiredField, got %v", err)
	}
	if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Paused"}); !errors.Is(err, model.ErrInvalidEnumValue) {
		t.Fatalf("bad status: expected ErrInvalidEnumValue, got %v", err)
	}
	if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "In progress"}); !errors.Is(err, model.ErrMissingRequiredField) {
		t.Fatalf("missing final check: expected ErrMissingRequiredField, got %v", err)
	}
	if _, err := svc.UpdateStatusFields(ctx, "404", StatusUpdate{Status: "In progress"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestFinalCheckBranches(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "No")

	task, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "In progress", FinalCheck: "Pending"})
	if err != nil {
		t.Fatalf("pending check: %v", err)
	}
	if task.ReworkNeeded != "" || task.FinalApproval != model.ApprovalPending {
		t.Fatalf("pending check: unexpected state %+v", task)
	}

	task, err = svc.UpdateStatusFields(ctx, id, StatusUpdate{
		Status:          "In progress",
		FinalCheck:      "No",
		ReworkType:      "minor",
		ReworkHours:     hours(2.5),
		ReworkConfirmed: true,
		FinalApproval:   "No",
	})
	if err != nil {
		t.Fatalf("failed check: %v", err)
	}
	if task.ReworkNeeded != model.Yes || task.ReworkType != model.ReworkMinor || task.ReworkHours != 2.5 {
		t.Fatalf("failed check: unexpected rework %+v", task)
	}
	if task.ReworkStatus != model.ReworkNotStarted {
		t.Fatalf("rework status should default, got %q", task.ReworkStatus)
	}
	if task.FinalApproval != model.ApprovalReworkNeeded {
		t.Fatalf("post-rework No should map to Rework Needed, got %q", task.FinalApproval)
	}

	task, err = svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"})
	if err != nil {
		t.Fatalf("passed check: %v", err)
	}
	if task.ReworkNeeded != model.No || task.ReworkType != "" || task.ReworkHours != 0 || task.ReworkStatus != "" {
		t.Fatalf("passed check should clear rework: %+v", task)
	}
	if task.FinalApproval != model.ApprovalPending {
		t.Fatalf("passed check should reset Rework Needed to Pending, got %q", task.FinalApproval)
	}
}

func TestFailedCheckRequiresReworkFields(t *testing.T) {
	base := StatusUpdate{
		Status:          "In progress",
		FinalCheck:      "No",
		ReworkType:      "Major",
		ReworkHours:     hours(1),
		ReworkConfirmed: true,
		FinalApproval:   "Pending",
	}
	cases := []struct {
		name   string
		mutate func(*StatusUpdate)
		want   error
	}{
		{"no type", func(u *StatusUpdate) { u.ReworkType = "" }, model.ErrMissingRequiredField},
		{"bad type", func(u *StatusUpdate) { u.ReworkType = "Huge" }, model.ErrInvalidEnumValue},
		{"no hours", func(u *StatusUpdate) { u.ReworkHours = nil }, model.ErrMissingRequiredField},
		{"negative hours", func(u *StatusUpdate) { u.ReworkHours = hours(-2) }, model.ErrInvalidEnumValue},
		{"not confirmed", func(u *StatusUpdate) { u.ReworkConfirmed = false }, model.ErrMissingRequiredField},
		{"no approval", func(u *StatusUpdate) { u.FinalApproval = "" }, model.ErrMissingRequiredField},
		{"bad approval", func(u *StatusUpdate) { u.FinalApproval = "Maybe" }, model.ErrInvalidEnumValue},
		{"bad rework status", func(u *StatusUpdate) { u.ReworkStatus = "Stuck" }, model.ErrInvalidEnumValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			id := createTask(t, svc, "No")
			upd := base
			tc.mutate(&upd)
			if _, err := svc.UpdateStatusFields(context.Background(), id, upd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			task, _ := svc.GetTask(context.Background(), id)
			if task.ReworkNeeded != "" || task.Status != model.StatusNotStarted {
				t.Fatalf("rejected update must not persist: %+v", task)
			}
		})
	}
}

func TestPassedCheckRejectsReworkFields(t *testing.T) {
	svc := newTestService(t)
	id := createTask(t, svc, "No")

	_, err := svc.UpdateStatusFields(context.Background(), id, StatusUpdate{
		Status:      "Completed",
		FinalCheck:  "Yes",
		ReworkHours: hours(3),
	})
	if !errors.Is(err, model.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

// Approving OK requires status Completed. A completed task approved without a
// completion date gets the approval day.
func TestApprovalPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("reject OK before completion", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "In progress", FinalCheck: "Yes"}); err != nil {
			t.Fatalf("update: %v", err)
		}

		_, err := svc.SubmitFinalApproval(ctx, id, "OK", "")
		if !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		task, _ := svc.GetTask(ctx, id)
		if task.FinalApproval == model.ApprovalOK || !task.CompletionDate.IsZero() {
			t.Fatalf("rejected approval must not persist: %+v", task)
		}
	})

	t.Run("reject OK through status update", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		_, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "On hold", FinalCheck: "Yes", FinalApproval: "OK"})
		if !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
	})

	t.Run("stamp completion date", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		task, err := svc.SubmitFinalApproval(ctx, id, "ok", "")
		if err != nil {
			t.Fatalf("SubmitFinalApproval: %v", err)
		}
		if task.FinalApproval != model.ApprovalOK || task.CompletionDate != "2025-03-14" {
			t.Fatalf("expected OK stamped 2025-03-14, got %q %q", task.FinalApproval, task.CompletionDate)
		}
	})

	t.Run("keep supplied completion date", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		task, err := svc.SubmitFinalApproval(ctx, id, "Yes", "2025-03-10")
		if err != nil {
			t.Fatalf("SubmitFinalApproval: %v", err)
		}
		if task.FinalApproval != model.ApprovalOK || task.CompletionDate != "2025-03-10" {
			t.Fatalf("unexpected approval state %q %q", task.FinalApproval, task.CompletionDate)
		}
	})
}

// Both mutation paths agree on which approvals a final check allows, so a
// later status move cannot quietly undo an approval.
func TestApprovalFollowsFinalCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("pending check blocks OK", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Pending"}); err != nil {
			t.Fatalf("update: %v", err)
		}

		if _, err := svc.SubmitFinalApproval(ctx, id, "OK", ""); !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Pending", FinalApproval: "OK"}); !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		task, _ := svc.GetTask(ctx, id)
		if task.FinalApproval != model.ApprovalPending || !task.CompletionDate.IsZero() {
			t.Fatalf("rejected approval must not persist: %+v", task)
		}
	})

	t.Run("passed check blocks rework", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"}); err != nil {
			t.Fatalf("update: %v", err)
		}

		if _, err := svc.SubmitFinalApproval(ctx, id, "Rework Needed", ""); !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes", FinalApproval: "No"}); !errors.Is(err, model.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
	})

	t.Run("status move keeps approval", func(t *testing.T) {
		svc := newTestService(t)
		id := createTask(t, svc, "No")
		if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		approved, err := svc.SubmitFinalApproval(ctx, id, "OK", "")
		if err != nil {
			t.Fatalf("approve: %v", err)
		}

		task, err := svc.UpdateStatusFields(ctx, id, UpdateKeepingSubstate(*approved, "Completed"))
		if err != nil {
			t.Fatalf("status move: %v", err)
		}
		if task.FinalApproval != model.ApprovalOK {
			t.Fatalf("approval lost on status move, got %q", task.FinalApproval)
		}
	})
}

func TestSubmitFinalApprovalCompletionDateOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "Yes")

	// Completion date and status are independent.
	task, err := svc.SubmitFinalApproval(ctx, id, "", "2025-03-12")
	if err != nil {
		t.Fatalf("SubmitFinalApproval: %v", err)
	}
	if task.CompletionDate != "2025-03-12" || task.Status != model.StatusNotStarted {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.FinalApproval != "" {
		t.Fatalf("direct release task must not gain approval: %q", task.FinalApproval)
	}

	if _, err := svc.SubmitFinalApproval(ctx, id, "OK", ""); !errors.Is(err, model.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for direct release approval, got %v", err)
	}
	if _, err := svc.SubmitFinalApproval(ctx, id, "", "31/31/2025"); !errors.Is(err, model.ErrUnparseableDate) {
		t.Fatalf("expected ErrUnparseableDate, got %v", err)
	}
}

func TestReopeningWithdrawsApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := createTask(t, svc, "No")

	if _, err := svc.UpdateStatusFields(ctx, id, StatusUpdate{Status: "Completed", FinalCheck: "Yes"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.SubmitFinalApproval(ctx, id, "OK", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cur, _ := svc.GetTask(ctx, id)
	task, err := svc.UpdateStatusFields(ctx, id, UpdateKeepingSubstate(*cur, "In progress"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if task.FinalApproval != model.ApprovalPending {
		t.Fatalf("expected approval withdrawn, got %q", task.FinalApproval)
	}
	if task.ReworkNeeded != model.No {
		t.Fatalf("check result should survive reopening, got %q", task.ReworkNeeded)
	}
}

func TestUpdateKeepingSubstate(t *testing.T) {
	rework := model.Task{
		Status:        model.StatusInProgress,
		DirectRelease: model.No,
		ReworkNeeded:  model.Yes,
		ReworkType:    model.ReworkMajor,
		ReworkHours:   5,
		ReworkStatus:  model.ReworkInProgress,
		FinalApproval: model.ApprovalReworkNeeded,
	}
	upd := UpdateKeepingSubstate(rework, "Completed")
	if upd.FinalCheck != string(model.CheckFailed) || upd.ReworkType != "Major" || !upd.ReworkConfirmed {
		t.Fatalf("unexpected update %+v", upd)
	}
	if upd.ReworkHours == nil || *upd.ReworkHours != 5 {
		t.Fatalf("rework hours not carried: %+v", upd.ReworkHours)
	}

	resolved, err := resolveStatusUpdate(rework, upd, fixedNow)
	if err != nil {
		t.Fatalf("resolveStatusUpdate: %v", err)
	}
	if resolved.Status != model.StatusCompleted || resolved.ReworkStatus != model.ReworkInProgress {
		t.Fatalf("unexpected resolved task %+v", resolved)
	}

	direct := UpdateKeepingSubstate(model.Task{DirectRelease: model.Yes}, "On hold")
	if direct != (StatusUpdate{Status: "On hold"}) {
		t.Fatalf("direct release update should carry status only: %+v", direct)
	}
}
