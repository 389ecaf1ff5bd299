package model

import "time"

// Task is a unit of requested work tracked through request, execution,
// optional rework and final approval.
type Task struct {
	// Seq orders rows in SQL backends; it is not part of the tabular format.
	Seq uint `gorm:"primaryKey;autoIncrement" json:"-"`

	ID               string        `gorm:"uniqueIndex;not null" json:"id"`
	Requester        string        `json:"requester"`
	RequestDate      Date          `json:"requestDate"`
	ProposedDeadline Date          `json:"proposedDeadline"`
	Department       string        `json:"department"`
	Description      string        `json:"description"`
	HoursEstimated   float64       `json:"hoursEstimated"`
	DirectRelease    YesNo         `json:"directRelease"`
	GTECUser         string        `gorm:"column:gtec_user" json:"gtecUser"`
	GTECDeadline     Date          `gorm:"column:gtec_deadline" json:"gtecDeadline"`
	Status           Status        `gorm:"index" json:"status"`
	CompletionDate   Date          `json:"completionDate"`
	ReworkNeeded     YesNo         `json:"reworkNeeded"`
	ReworkType       ReworkType    `json:"reworkType"`
	ReworkHours      float64       `json:"reworkHours"`
	ReworkStatus     ReworkStatus  `json:"reworkStatus"`
	FinalApproval    FinalApproval `json:"finalApproval"`

	UpdatedAt time.Time `json:"-"`
}

// IsOverdue reports whether an open task is past its proposed deadline on day.
func (t Task) IsOverdue(day time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	deadline, ok := t.ProposedDeadline.Time()
	if !ok {
		return false
	}
	y, m, d := day.Date()
	return deadline.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// AwaitingApproval reports whether a completed task still needs a reviewer.
func (t Task) AwaitingApproval() bool {
	return t.Status == StatusCompleted && t.DirectRelease == No && t.FinalApproval != ApprovalOK
}

// TaskPatch is a field-level change set. Nil fields are left untouched; a
// non-nil pointer to a zero value clears the field.
type TaskPatch struct {
	Requester        *string
	RequestDate      *Date
	ProposedDeadline *Date
	Department       *string
	Description      *string
	HoursEstimated   *float64
	DirectRelease    *YesNo
	GTECUser         *string
	GTECDeadline     *Date
	Status           *Status
	CompletionDate   *Date
	ReworkNeeded     *YesNo
	ReworkType       *ReworkType
	ReworkHours      *float64
	ReworkStatus     *ReworkStatus
	FinalApproval    *FinalApproval
}

// Apply merges p into t.
func (p TaskPatch) Apply(t *Task) {
	setIf(&t.Requester, p.Requester)
	setIf(&t.RequestDate, p.RequestDate)
	setIf(&t.ProposedDeadline, p.ProposedDeadline)
	setIf(&t.Department, p.Department)
	setIf(&t.Description, p.Description)
	setIf(&t.HoursEstimated, p.HoursEstimated)
	setIf(&t.DirectRelease, p.DirectRelease)
	setIf(&t.GTECUser, p.GTECUser)
	setIf(&t.GTECDeadline, p.GTECDeadline)
	setIf(&t.Status, p.Status)
	setIf(&t.CompletionDate, p.CompletionDate)
	setIf(&t.ReworkNeeded, p.ReworkNeeded)
	setIf(&t.ReworkType, p.ReworkType)
	setIf(&t.ReworkHours, p.ReworkHours)
	setIf(&t.ReworkStatus, p.ReworkStatus)
	setIf(&t.FinalApproval, p.FinalApproval)
}

// LifecyclePatch returns a patch carrying every status, rework and approval
// field of t, so stale values are overwritten even when t holds sentinels.
func LifecyclePatch(t Task) TaskPatch {
	return TaskPatch{
		DirectRelease:  &t.DirectRelease,
		Status:         &t.Status,
		CompletionDate: &t.CompletionDate,
		ReworkNeeded:   &t.ReworkNeeded,
		ReworkType:     &t.ReworkType,
		ReworkHours:    &t.ReworkHours,
		ReworkStatus:   &t.ReworkStatus,
		FinalApproval:  &t.FinalApproval,
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
