package service

import (
	"time"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// DefaultLockGrace is how long business partners may still edit a locked row.
const DefaultLockGrace = 30 * 24 * time.Hour

// EditPolicy decides which cells a role may change.
type EditPolicy struct {
	grace time.Duration
	now   func() time.Time
}

// NewEditPolicy builds the policy; a non-positive grace uses DefaultLockGrace.
func NewEditPolicy(grace time.Duration, now func() time.Time) *EditPolicy {
	if grace <= 0 {
		grace = DefaultLockGrace
	}
	if now == nil {
		now = time.Now
	}
	return &EditPolicy{grace: grace, now: now}
}

// RowEditable reports whether the evaluator columns of rec are editable.
func (p *EditPolicy) RowEditable(rec models.EvaluationRecord, role models.Role, email string) bool {
	switch role {
	case models.RoleDev, models.RoleTest:
		return true
	case models.RoleBP:
		return !rec.Locked() || p.withinGrace(rec.LockedTimestamp)
	case models.RoleMA:
		return !rec.Locked() && models.NormalizeEmail(rec.DirectManagerEmail) == models.NormalizeEmail(email)
	default:
		return false
	}
}

// LockEditable reports whether IS_LOCKED of rec may be toggled.
func (p *EditPolicy) LockEditable(rec models.EvaluationRecord, role models.Role) bool {
	switch role {
	case models.RoleDev, models.RoleTest:
		return true
	case models.RoleBP:
		return !rec.Locked()
	default:
		return false
	}
}

// CellEditable reports whether column of rec may be changed. Reason is set
// when it may not.
func (p *EditPolicy) CellEditable(rec models.EvaluationRecord, column string, role models.Role, email string) (bool, string) {
	if column == models.ColIsLocked {
		if p.LockEditable(rec, role) {
			return true, ""
		}
		return false, "lock flag is not editable for this role"
	}
	if !isEditableColumn(column) {
		return false, "column is read-only"
	}
	if !p.RowEditable(rec, role, email) {
		if rec.Locked() {
			return false, "row is locked"
		}
		return false, "row is outside the editable scope of this role"
	}
	return true, ""
}

func (p *EditPolicy) withinGrace(lockedAt models.Timestamp) bool {
	if lockedAt.IsSentinel() {
		return false
	}
	cutoff := models.NewTimestamp(p.now()).Time().Add(-p.grace)
	return !lockedAt.Time().Before(cutoff)
}

func isEditableColumn(column string) bool {
	for _, c := range models.EditableColumns {
		if c == column {
			return true
		}
	}
	return false
}
