package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

// ScopeService narrows a dataset to what a role may see.
type ScopeService struct {
	logger *zap.Logger
}

// NewScopeService constructs the role-scoped view filter.
func NewScopeService(logger *zap.Logger) *ScopeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{logger: logger}
}

// Scope restricts managers to their direct and indirect reports. Every
// other role sees the full dataset. A manager without reports gets
// ErrEmptyScope.
func (s *ScopeService) Scope(records []models.EvaluationRecord, role models.Role, email string) ([]models.EvaluationRecord, error) {
	if role != models.RoleMA {
		return records, nil
	}
	reports := NewHierarchy(records).AllReports(email)
	scoped := make([]models.EvaluationRecord, 0, len(reports))
	for _, rec := range records {
		if _, ok := reports[models.NormalizeEmail(rec.EmailAddress)]; ok {
			scoped = append(scoped, rec)
		}
	}
	if len(scoped) == 0 {
		s.logger.Warn("manager has no reports in hierarchy", zap.String("email", email))
		return nil, appErrors.ErrEmptyScope
	}
	return scoped, nil
}

// View applies the role scope, the evaluation period, a grid filter model
// and, for managers, the direct-team toggle. An empty period keeps every
// period. An empty result is reported as ErrEmptyView alongside the empty
// slice so callers can still render.
func (s *ScopeService) View(records []models.EvaluationRecord, role models.Role, email string, query models.ViewQuery, filter models.FilterModel) ([]models.EvaluationRecord, error) {
	scoped, err := s.Scope(records, role, email)
	if err != nil {
		return nil, err
	}

	view := make([]models.EvaluationRecord, 0, len(scoped))
	normalized := models.NormalizeEmail(email)
	for _, rec := range scoped {
		if query.Period != "" && rec.YearEvaluation() != query.Period {
			continue
		}
		if role == models.RoleMA && query.TeamOnly && models.NormalizeEmail(rec.DirectManagerEmail) != normalized {
			continue
		}
		view = append(view, rec)
	}
	view = ApplyFilter(view, filter)

	if len(view) == 0 {
		return view, appErrors.ErrEmptyView
	}
	return view, nil
}

// ApplyFilter keeps rows matching every "set" column filter of the model.
// Other filter types and unknown columns are ignored.
func ApplyFilter(records []models.EvaluationRecord, filter models.FilterModel) []models.EvaluationRecord {
	if len(filter) == 0 {
		return records
	}
	type setFilter struct {
		column string
		values map[string]struct{}
	}
	active := make([]setFilter, 0, len(filter))
	for column, cf := range filter {
		if cf.FilterType != models.FilterTypeSet {
			continue
		}
		if _, ok := models.EvaluationSchema.Lookup(column); !ok && column != models.ColYearEvaluation {
			continue
		}
		values := make(map[string]struct{}, len(cf.Values))
		for _, v := range cf.Values {
			values[models.CoerceString(v)] = struct{}{}
		}
		active = append(active, setFilter{column: column, values: values})
	}

	out := make([]models.EvaluationRecord, 0, len(records))
	for i := range records {
		keep := true
		for _, f := range active {
			if _, ok := f.values[columnText(&records[i], f.column)]; !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, records[i])
		}
	}
	return out
}

func columnText(rec *models.EvaluationRecord, column string) string {
	if column == models.ColYearEvaluation {
		return rec.YearEvaluation()
	}
	value, _ := models.EvaluationSchema.Get(rec, column)
	return models.CoerceString(value)
}
