package models

import (
	"fmt"
	"time"
)

// Session is the per-user editing context. It owns the loaded dataset, the
// render baseline used for edit detection and the pending change set.
// NewSession and Rebase are the only places the dataset and baseline are
// taken from the warehouse.
type Session struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	// Actor is the authenticated identity when a privileged user impersonates.
	Actor string `json:"actor,omitempty"`

	Dataset  *EvaluationDataset                 `json:"dataset"`
	Baseline map[EvaluationKey]EvaluationRecord `json:"baseline"`
	Changes  *ChangeSet                         `json:"changes"`
	Unsaved  bool                               `json:"unsaved"`

	// GridToken is folded into the grid identity; it changes whenever the
	// client must drop its cached grid state.
	GridToken string `json:"grid_token"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession initialises a session from a freshly loaded dataset.
func NewSession(id, email string, role Role, dataset *EvaluationDataset, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Email:     NormalizeEmail(email),
		Role:      role,
		Changes:   &ChangeSet{},
		CreatedAt: now,
	}
	s.Rebase(dataset, now)
	return s
}

// Rebase replaces the dataset and resets the render baseline to what the grid
// will show next: each loaded row with the pending changes applied. Pending
// changes themselves are left to the caller.
func (s *Session) Rebase(dataset *EvaluationDataset, now time.Time) {
	if dataset == nil {
		dataset = NewEvaluationDataset(nil)
	}
	if s.Changes == nil {
		s.Changes = &ChangeSet{}
	}
	s.Dataset = dataset
	s.Baseline = make(map[EvaluationKey]EvaluationRecord, dataset.Len())
	for _, rec := range dataset.Records {
		s.Baseline[rec.Key()] = s.Pending(rec)
	}
	s.UpdatedAt = now
}

// ClearChanges drops pending edits and the unsaved flag.
func (s *Session) ClearChanges() {
	if s.Changes == nil {
		s.Changes = &ChangeSet{}
	}
	s.Changes.Reset()
	s.Unsaved = false
}

// Accumulate merges a detected batch and refreshes the unsaved flag.
func (s *Session) Accumulate(batch []RowPatch) {
	if s.Changes == nil {
		s.Changes = &ChangeSet{}
	}
	s.Changes.Merge(batch)
	s.Unsaved = !s.Changes.Empty()
}

// InvalidateGrid forces clients to rebuild their grid from fresh data. The
// token carries only the latest invalidation.
func (s *Session) InvalidateGrid(now time.Time) {
	s.GridToken = fmt.Sprintf("_locked_%s", now.Format("20060102150405.000"))
}

// Pending returns the record as the user currently sees it: the loaded row
// with pending edits applied.
func (s *Session) Pending(rec EvaluationRecord) EvaluationRecord {
	patch, ok := s.Changes.Get(rec.Key())
	if !ok {
		return rec
	}
	for col, value := range patch.Fields {
		_ = EvaluationSchema.Set(&rec, col, value)
	}
	return rec
}
