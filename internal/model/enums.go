package model

import "strings"

// Status is the execution state of a task. Values are the labels stored in
// the tasks file.
type Status string

const (
	StatusNotStarted Status = "Not yet started"
	StatusOnHold     Status = "On hold"
	StatusInProgress Status = "In progress"
	StatusCompleted  Status = "Completed"
)

// ValidStatuses returns all status values in form order.
func ValidStatuses() []Status {
	return []Status{StatusNotStarted, StatusOnHold, StatusInProgress, StatusCompleted}
}

// ParseStatus accepts a status label case-insensitively. Empty input is an error.
func ParseStatus(raw string) (Status, error) {
	if strings.TrimSpace(raw) == "" {
		return "", Missing("status")
	}
	return parseEnum("status", raw, ValidStatuses(), map[string]Status{
		"notstarted": StatusNotStarted,
		"todo":       StatusNotStarted,
		"hold":       StatusOnHold,
		"wip":        StatusInProgress,
		"done":       StatusCompleted,
	})
}

// YesNo is the two-valued answer used by Direct Release and Rework Needed.
// The empty value means not applicable.
type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

func ParseYesNo(field, raw string) (YesNo, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return parseEnum(field, raw, []YesNo{Yes, No}, map[string]YesNo{
		"y": Yes, "true": Yes, "1": Yes,
		"n": No, "false": No, "0": No,
	})
}

type ReworkType string

const (
	ReworkMinor ReworkType = "Minor"
	ReworkMajor ReworkType = "Major"
)

func ParseReworkType(raw string) (ReworkType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return parseEnum("rework_type", raw, []ReworkType{ReworkMinor, ReworkMajor}, nil)
}

type ReworkStatus string

const (
	ReworkNotStarted ReworkStatus = "Not yet started"
	ReworkInProgress ReworkStatus = "In progress"
	ReworkCompleted  ReworkStatus = "Completed"
)

func ValidReworkStatuses() []ReworkStatus {
	return []ReworkStatus{ReworkNotStarted, ReworkInProgress, ReworkCompleted}
}

func ParseReworkStatus(raw string) (ReworkStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return parseEnum("rework_status", raw, ValidReworkStatuses(), map[string]ReworkStatus{
		"notstarted": ReworkNotStarted,
		"done":       ReworkCompleted,
	})
}

// FinalApproval is the reviewer's verdict on a task's output.
type FinalApproval string

const (
	ApprovalPending      FinalApproval = "Pending"
	ApprovalOK           FinalApproval = "OK"
	ApprovalReworkNeeded FinalApproval = "Rework Needed"
)

func ValidApprovals() []FinalApproval {
	return []FinalApproval{ApprovalPending, ApprovalOK, ApprovalReworkNeeded}
}

// ParseFinalApproval also accepts the post-rework answers Yes and No.
func ParseFinalApproval(raw string) (FinalApproval, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return parseEnum("final_approval", raw, ValidApprovals(), map[string]FinalApproval{
		"yes":      ApprovalOK,
		"approved": ApprovalOK,
		"no":       ApprovalReworkNeeded,
		"rework":   ApprovalReworkNeeded,
	})
}

// FinalCheck is the outcome of the first review of a task that is not
// released directly. It is not stored; it decides Rework Needed.
type FinalCheck string

const (
	CheckPending FinalCheck = "Pending"
	CheckPassed  FinalCheck = "Yes"
	CheckFailed  FinalCheck = "No"
)

func ParseFinalCheck(raw string) (FinalCheck, error) {
	if strings.TrimSpace(raw) == "" {
		return "", Missing("final_check")
	}
	return parseEnum("final_check", raw, []FinalCheck{CheckPending, CheckPassed, CheckFailed}, map[string]FinalCheck{
		"y": CheckPassed, "ok": CheckPassed,
		"n": CheckFailed,
	})
}

// FinalCheckOf derives the check outcome recorded on t.
func FinalCheckOf(t Task) FinalCheck {
	switch t.ReworkNeeded {
	case No:
		return CheckPassed
	case Yes:
		return CheckFailed
	default:
		return CheckPending
	}
}

func parseEnum[T ~string](field, raw string, allowed []T, aliases map[string]T) (T, error) {
	key := normalizeKey(raw)
	for _, v := range allowed {
		if normalizeKey(string(v)) == key {
			return v, nil
		}
	}
	if v, ok := aliases[key]; ok {
		return v, nil
	}
	var zero T
	return zero, Invalid(field, raw)
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
