package domain

import "fmt"

type ImportStatus string

const (
	StatusImported   ImportStatus = "imported"
	StatusConfirmed  ImportStatus = "confirmed"
	StatusCalculated ImportStatus = "calculated"
	StatusApproved   ImportStatus = "approved"
)

var statusOrder = map[ImportStatus]int{
	StatusImported:   0,
	StatusConfirmed:  1,
	StatusCalculated: 2,
	StatusApproved:   3,
}

func ParseImportStatus(s string) (ImportStatus, error) {
	st := ImportStatus(s)
	if _, ok := statusOrder[st]; !ok {
		return "", fmt.Errorf("unknown import status %q", s)
	}
	return st, nil
}

func (s ImportStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s ImportStatus) Before(other ImportStatus) bool {
	return statusOrder[s] < statusOrder[other]
}

type Action string

const (
	ActionConfirm   Action = "confirm"
	ActionCalculate Action = "calculate"
	ActionApprove   Action = "approve"
	ActionCancel    Action = "cancel"
)

// Can reports whether action is allowed for batch in its current state.
func (b ImportBatch) Can(action Action) bool {
	switch action {
	case ActionConfirm:
		return b.Status == StatusImported || b.Status == StatusConfirmed
	case ActionCalculate:
		return b.Status == StatusConfirmed
	case ActionApprove:
		return (b.Status == StatusConfirmed || b.Status == StatusCalculated) && b.PendingRewards > 0
	case ActionCancel:
		return b.Status.Valid() && b.Status.Before(StatusCalculated)
	default:
		return false
	}
}

// Actions lists the allowed actions in display order.
func (b ImportBatch) Actions() []Action {
	var out []Action
	for _, a := range []Action{ActionConfirm, ActionCalculate, ActionApprove, ActionCancel} {
		if b.Can(a) {
			out = append(out, a)
		}
	}
	return out
}

// After returns the status a successful action leaves the batch in.
func (a Action) After(from ImportStatus) ImportStatus {
	switch a {
	case ActionConfirm:
		return StatusConfirmed
	case ActionCalculate:
		return StatusCalculated
	case ActionApprove:
		return StatusApproved
	default:
		return from
	}
}

// DisplayMonth renders YYYYMM as YYYY-MM. Anything else is returned unchanged.
func DisplayMonth(month string) string {
	if len(month) != 6 {
		return month
	}
	return month[:4] + "-" + month[4:]
}
