package service

import (
	"time"

	"gtec-tasks/internal/model"
)

// StatusUpdate carries the raw status, rework and approval fields of an
// update form. Empty strings mean "not supplied".
type StatusUpdate struct {
	Status        string
	DirectRelease string
	FinalCheck    string
	ReworkType    string
	ReworkHours   *float64
	// ReworkConfirmed is the reviewer's tick that the rework was agreed.
	ReworkConfirmed bool
	ReworkStatus    string
	FinalApproval   string
}

// UpdateKeepingSubstate builds an update that moves t to status while
// keeping its current release, check and rework answers.
func UpdateKeepingSubstate(t model.Task, status string) StatusUpdate {
	upd := StatusUpdate{Status: status}
	if t.DirectRelease != model.No {
		return upd
	}
	check := model.FinalCheckOf(t)
	upd.FinalCheck = string(check)
	if check != model.CheckFailed {
		return upd
	}
	hours := t.ReworkHours
	upd.ReworkType = string(t.ReworkType)
	upd.ReworkHours = &hours
	upd.ReworkConfirmed = true
	upd.ReworkStatus = string(t.ReworkStatus)
	upd.FinalApproval = string(t.FinalApproval)
	if t.FinalApproval == "" {
		upd.FinalApproval = string(model.ApprovalPending)
	}
	if t.FinalApproval == model.ApprovalOK {
		if parsed, err := model.ParseStatus(status); err == nil && parsed != model.StatusCompleted {
			upd.FinalApproval = string(model.ApprovalPending)
		}
	}
	return upd
}

// resolveStatusUpdate applies upd to cur and returns the fully resolved task.
// Fields that do not apply to the chosen branch are cleared; supplying a
// value for them is an error rather than being dropped.
func resolveStatusUpdate(cur model.Task, upd StatusUpdate, today time.Time) (model.Task, error) {
	status, err := model.ParseStatus(upd.Status)
	if err != nil {
		return cur, err
	}

	direct := cur.DirectRelease
	if upd.DirectRelease != "" {
		if direct, err = model.ParseYesNo("direct_release", upd.DirectRelease); err != nil {
			return cur, err
		}
	}
	if direct == "" {
		return cur, model.Missing("direct_release")
	}

	t := cur
	t.Status = status
	t.DirectRelease = direct

	if direct == model.Yes {
		if err := rejectSupplied(upd, "direct release is Yes", fieldFinalCheck, fieldReworkType, fieldReworkHours, fieldReworkConfirmed, fieldReworkStatus, fieldFinalApproval); err != nil {
			return cur, err
		}
		clearRework(&t)
		t.ReworkNeeded = ""
		t.FinalApproval = ""
		return t, nil
	}

	check, err := model.ParseFinalCheck(upd.FinalCheck)
	if err != nil {
		return cur, err
	}

	switch check {
	case model.CheckPending:
		if err := rejectSupplied(upd, "final check is Pending", fieldReworkType, fieldReworkHours, fieldReworkConfirmed, fieldReworkStatus); err != nil {
			return cur, err
		}
		approval, err := model.ParseFinalApproval(upd.FinalApproval)
		if err != nil {
			return cur, err
		}
		if err := approvalFitsCheck(check, approval, upd.FinalApproval); err != nil {
			return cur, err
		}
		clearRework(&t)
		t.ReworkNeeded = ""
		t.FinalApproval = model.ApprovalPending

	case model.CheckPassed:
		if err := rejectSupplied(upd, "final check passed", fieldReworkType, fieldReworkHours, fieldReworkConfirmed, fieldReworkStatus); err != nil {
			return cur, err
		}
		approval, err := model.ParseFinalApproval(upd.FinalApproval)
		if err != nil {
			return cur, err
		}
		if err := approvalFitsCheck(check, approval, upd.FinalApproval); err != nil {
			return cur, err
		}
		clearRework(&t)
		t.ReworkNeeded = model.No
		switch {
		case approval != "":
			t.FinalApproval = approval
		case t.FinalApproval == "" || t.FinalApproval == model.ApprovalReworkNeeded:
			t.FinalApproval = model.ApprovalPending
		case t.FinalApproval == model.ApprovalOK && status != model.StatusCompleted:
			// Reopening an approved task withdraws the approval.
			t.FinalApproval = model.ApprovalPending
		}

	case model.CheckFailed:
		reworkType, err := model.ParseReworkType(upd.ReworkType)
		if err != nil {
			return cur, err
		}
		if reworkType == "" {
			return cur, model.Missing("rework_type")
		}
		if upd.ReworkHours == nil {
			return cur, model.Missing("rework_hours")
		}
		if *upd.ReworkHours < 0 {
			return cur, model.Invalid("rework_hours", formatHours(*upd.ReworkHours))
		}
		if !upd.ReworkConfirmed {
			return cur, model.Missing("rework_confirmation")
		}
		if upd.FinalApproval == "" {
			return cur, model.Missing("final_approval")
		}
		approval, err := model.ParseFinalApproval(upd.FinalApproval)
		if err != nil {
			return cur, err
		}
		reworkStatus, err := model.ParseReworkStatus(upd.ReworkStatus)
		if err != nil {
			return cur, err
		}
		if reworkStatus == "" {
			reworkStatus = cur.ReworkStatus
		}
		if reworkStatus == "" {
			reworkStatus = model.ReworkNotStarted
		}

		t.ReworkNeeded = model.Yes
		t.ReworkType = reworkType
		t.ReworkHours = *upd.ReworkHours
		t.ReworkStatus = reworkStatus
		t.FinalApproval = approval
	}

	if err := checkApproval(&t, upd.FinalApproval, today); err != nil {
		return cur, err
	}
	return t, nil
}

// resolveApproval applies a final approval decision to cur.
func resolveApproval(cur model.Task, rawApproval, rawCompletion string, today time.Time) (model.Task, error) {
	approval, err := model.ParseFinalApproval(rawApproval)
	if err != nil {
		return cur, err
	}
	completion, err := model.ParseDate("completion_date", rawCompletion)
	if err != nil {
		return cur, err
	}

	t := cur
	if !completion.IsZero() {
		t.CompletionDate = completion
	}

	if cur.DirectRelease == model.Yes {
		if approval != "" {
			return cur, model.Illegal("final_approval", rawApproval, "direct release tasks bypass approval")
		}
		return t, nil
	}

	if err := approvalFitsCheck(model.FinalCheckOf(cur), approval, rawApproval); err != nil {
		return cur, err
	}
	if approval != "" {
		t.FinalApproval = approval
	}
	if err := checkApproval(&t, rawApproval, today); err != nil {
		return cur, err
	}
	return t, nil
}

// approvalFitsCheck rejects decisions the recorded final check rules out:
// while the check is Pending only Pending is allowed, and a passed check
// cannot be sent back for rework.
func approvalFitsCheck(check model.FinalCheck, approval model.FinalApproval, raw string) error {
	switch {
	case check == model.CheckPending && approval != "" && approval != model.ApprovalPending:
		return model.Illegal("final_approval", raw, "final check is Pending")
	case check == model.CheckPassed && approval == model.ApprovalReworkNeeded:
		return model.Illegal("final_approval", raw, "final check passed")
	}
	return nil
}

// checkApproval enforces that OK is only given to completed tasks and
// stamps the completion date when approval arrives without one.
func checkApproval(t *model.Task, raw string, today time.Time) error {
	if t.FinalApproval != model.ApprovalOK {
		return nil
	}
	if t.Status != model.StatusCompleted {
		if raw == "" {
			raw = string(t.FinalApproval)
		}
		return model.Illegal("final_approval", raw, "status must be Completed before approval")
	}
	if t.CompletionDate.IsZero() {
		t.CompletionDate = model.NewDate(today)
	}
	return nil
}

func clearRework(t *model.Task) {
	t.ReworkType = ""
	t.ReworkHours = 0
	t.ReworkStatus = ""
}

const (
	fieldFinalCheck      = "final_check"
	fieldReworkType      = "rework_type"
	fieldReworkHours     = "rework_hours"
	fieldReworkConfirmed = "rework_confirmation"
	fieldReworkStatus    = "rework_status"
	fieldFinalApproval   = "final_approval"
)

func rejectSupplied(upd StatusUpdate, reason string, fields ...string) error {
	for _, f := range fields {
		var value string
		switch f {
		case fieldFinalCheck:
			value = upd.FinalCheck
		case fieldReworkType:
			value = upd.ReworkType
		case fieldReworkHours:
			if upd.ReworkHours != nil && *upd.ReworkHours != 0 {
				value = formatHours(*upd.ReworkHours)
			}
		case fieldReworkConfirmed:
			if upd.ReworkConfirmed {
				value = "yes"
			}
		case fieldReworkStatus:
			value = upd.ReworkStatus
		case fieldFinalApproval:
			value = upd.FinalApproval
		}
		if value != "" {
			return model.Illegal(f, value, "not applicable when "+reason)
		}
	}
	return nil
}
