package service

import (
	"fmt"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// EditDetector diffs a rendered grid against the session's render baseline.
type EditDetector struct {
	schema  *models.Schema
	skipped map[string]struct{}
}

// NewEditDetector builds a detector that ignores primary key, engine-written
// and derived columns.
func NewEditDetector() *EditDetector {
	skipped := map[string]struct{}{models.ColYearEvaluation: {}}
	for _, c := range models.PrimaryKeyColumns {
		skipped[c] = struct{}{}
	}
	for _, c := range models.AuditColumns {
		skipped[c] = struct{}{}
	}
	return &EditDetector{schema: models.EvaluationSchema, skipped: skipped}
}

// Detection is the outcome of one render comparison.
type Detection struct {
	Diff []models.RowPatch
	// Rendered holds each rendered row merged over its previous baseline.
	Rendered map[models.EvaluationKey]models.EvaluationRecord
}

// Detect compares every rendered row that also exists in baseline and emits
// only the differing columns. Rows missing from baseline are not diffed but
// are still reported in Rendered so the caller can adopt them. A row
// without its primary key is rejected.
func (d *EditDetector) Detect(rows []models.GridRow, baseline map[models.EvaluationKey]models.EvaluationRecord) (Detection, error) {
	out := Detection{Rendered: make(map[models.EvaluationKey]models.EvaluationRecord, len(rows))}
	for i, row := range rows {
		key, err := d.schema.KeyFromMap(row)
		if err != nil {
			return Detection{}, fmt.Errorf("rendered row %d: %w", i, err)
		}
		before, known := baseline[key]
		after := before
		if !known {
			after = models.EvaluationRecord{UserID: key.UserID, Year: key.Year, Evaluation: key.Evaluation}
		}

		fields := make(map[string]interface{})
		for column, raw := range row {
			if _, skip := d.skipped[column]; skip {
				continue
			}
			col, ok := d.schema.Lookup(column)
			if !ok {
				continue
			}
			value := col.Coerce(raw)
			previous, _ := d.schema.Get(&before, column)
			if known && !models.ValuesEqual(previous, value) {
				fields[column] = value
			}
			if err := d.schema.Set(&after, column, value); err != nil {
				return Detection{}, err
			}
		}

		out.Rendered[key] = after
		if known && len(fields) > 0 {
			out.Diff = append(out.Diff, models.RowPatch{Key: key, Fields: fields})
		}
	}
	return out, nil
}
