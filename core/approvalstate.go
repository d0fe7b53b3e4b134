package core

import "strings"

type ApprovalState int

const (
	NoApprover ApprovalState = iota
	PendingApproval
	Approved
)

func (s ApprovalState) String() string {
	switch s {
	case PendingApproval:
		return "pending_approval"
	case Approved:
		return "approved"
	default:
		return "no_approver"
	}
}

// State derives the approval state from the stored fields. requires_approval
// only controls whether the page offers the approval buttons.
func (t *Timesheet) State() ApprovalState {
	if t.Approved {
		return Approved
	}
	if t.Approver == nil || strings.TrimSpace(t.Approver.Name) == "" || strings.TrimSpace(t.Approver.Email) == "" {
		return NoApprover
	}
	return PendingApproval
}

// InApprovalWorkflow reports whether the page should offer request/approve actions.
func (t *Timesheet) InApprovalWorkflow() bool {
	return t.RequiresApproval && t.State() == PendingApproval
}

// CanRequestApproval checks the fields the approval request email is built from.
func (t *Timesheet) CanRequestApproval() error {
	var missing []string
	if strings.TrimSpace(t.User.Name) == "" {
		missing = append(missing, "user.name")
	}
	if t.ApproverName() == "" {
		missing = append(missing, "approver.approvers_name")
	}
	if t.ApproverEmail() == "" {
		missing = append(missing, "approver.approvers_email")
	}
	if strings.TrimSpace(t.MonthYear) == "" {
		missing = append(missing, "month_year")
	}
	if len(missing) > 0 {
		return &IncompleteRecordError{Missing: missing}
	}
	if t.State() == Approved {
		return Conflict("Timesheet has already been approved")
	}
	return nil
}

// CanApprove checks the fields the confirmation email is built from. Approving an
// already approved record is allowed and idempotent.
func (t *Timesheet) CanApprove() error {
	var missing []string
	if strings.TrimSpace(t.User.Name) == "" {
		missing = append(missing, "user.name")
	}
	if strings.TrimSpace(t.User.Email) == "" {
		missing = append(missing, "user.email")
	}
	if t.ApproverName() == "" {
		missing = append(missing, "approver.approvers_name")
	}
	if strings.TrimSpace(t.MonthYear) == "" {
		missing = append(missing, "month_year")
	}
	if len(missing) > 0 {
		return &IncompleteRecordError{Missing: missing}
	}
	return nil
}
