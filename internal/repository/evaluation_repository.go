package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// EvaluationRepository reads and writes the evaluation table in PostgreSQL.
type EvaluationRepository struct {
	db    *sqlx.DB
	table string
}

// NewEvaluationRepository constructs the warehouse-backed evaluation store.
func NewEvaluationRepository(db *sqlx.DB, table string) *EvaluationRepository {
	return &EvaluationRepository{db: db, table: quoteTable(table)}
}

// Mode reports the persistence mode recorded with each save.
func (r *EvaluationRepository) Mode() string {
	return "postgres"
}

// LoadAll returns every evaluation row. NULL text and numbers are read as
// their zero values.
func (r *EvaluationRepository) LoadAll(ctx context.Context) ([]models.EvaluationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY "USER_ID", "YEAR", "EVALUATION"`, selectList(models.EvaluationSchema.Columns()), r.table)
	var records []models.EvaluationRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}
	for i := range records {
		records[i].Normalize()
	}
	return records, nil
}

// Persist bulk-loads rows into a temporary staging table and updates the
// target from it on the primary key, all in one transaction. It returns the
// number of target rows updated.
func (r *EvaluationRepository) Persist(ctx context.Context, rows []models.EvaluationRecord) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	columns := models.EvaluationSchema.Columns()
	names := models.EvaluationSchema.Names()
	staging := "kulate_stoly_staging_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin persist tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, createStagingQuery(staging, columns)); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(staging, names...))
	if err != nil {
		return 0, fmt.Errorf("prepare staging copy: %w", err)
	}
	for _, row := range rows {
		values, err := models.EvaluationSchema.Values(row, names)
		if err != nil {
			_ = stmt.Close()
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("copy row %s: %w", row.Key(), err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("flush staging copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close staging copy: %w", err)
	}

	res, err := tx.ExecContext(ctx, updateFromStagingQuery(r.table, staging))
	if err != nil {
		return 0, fmt.Errorf("update evaluations from staging: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count updated evaluations: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(staging))); err != nil {
		return 0, fmt.Errorf("drop staging table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit persist tx: %w", err)
	}
	return int(affected), nil
}

// ModifiedWhen returns the current HIST_DATA_MODIFIED_WHEN of each key found.
func (r *EvaluationRepository) ModifiedWhen(ctx context.Context, keys []models.EvaluationKey) (map[models.EvaluationKey]models.Timestamp, error) {
	out := make(map[models.EvaluationKey]models.Timestamp, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]interface{}, 0, len(keys)*3)
	for _, key := range keys {
		args = append(args, key.UserID, key.Year, key.Evaluation)
	}
	query := fmt.Sprintf(`SELECT "USER_ID", "YEAR", "EVALUATION", "HIST_DATA_MODIFIED_WHEN" FROM %s WHERE ("USER_ID", "YEAR", "EVALUATION") IN (%s)`,
		r.table, keyPlaceholders(len(keys)))

	var rows []struct {
		UserID     string           `db:"USER_ID"`
		Year       int              `db:"YEAR"`
		Evaluation int              `db:"EVALUATION"`
		Modified   models.Timestamp `db:"HIST_DATA_MODIFIED_WHEN"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load modification times: %w", err)
	}
	for _, row := range rows {
		key := models.EvaluationKey{UserID: strings.TrimSpace(row.UserID), Year: row.Year, Evaluation: row.Evaluation}
		out[key] = row.Modified
	}
	return out, nil
}

func selectList(columns []models.Column) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		name := pq.QuoteIdentifier(c.Name)
		switch c.Type {
		case models.TypeString:
			parts[i] = fmt.Sprintf("COALESCE(%s, '') AS %s", name, name)
		case models.TypeInt:
			parts[i] = fmt.Sprintf("COALESCE(%s, 0) AS %s", name, name)
		default:
			parts[i] = name
		}
	}
	return strings.Join(parts, ", ")
}

func createStagingQuery(staging string, columns []models.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pq.QuoteIdentifier(c.Name) + " " + sqlType(c.Type)
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", pq.QuoteIdentifier(staging), strings.Join(defs, ", "))
}

func updateFromStagingQuery(table, staging string) string {
	sets := make([]string, len(models.UpdateColumns))
	for i, c := range models.UpdateColumns {
		name := pq.QuoteIdentifier(c)
		sets[i] = fmt.Sprintf("%s = s.%s", name, name)
	}
	conds := make([]string, len(models.PrimaryKeyColumns))
	for i, c := range models.PrimaryKeyColumns {
		name := pq.QuoteIdentifier(c)
		conds[i] = fmt.Sprintf("t.%s = s.%s", name, name)
	}
	return fmt.Sprintf("UPDATE %s AS t SET %s FROM %s AS s WHERE %s",
		table, strings.Join(sets, ", "), pq.QuoteIdentifier(staging), strings.Join(conds, " AND "))
}

func sqlType(t models.ColumnType) string {
	switch t {
	case models.TypeInt:
		return "BIGINT"
	case models.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// quoteTable quotes each part of a possibly schema-qualified table name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(strings.Trim(p, `"`))
	}
	return strings.Join(parts, ".")
}

func keyPlaceholders(n int) string {
	tuples := make([]string, n)
	for i := 0; i < n; i++ {
		tuples[i] = fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
	}
	return strings.Join(tuples, ", ")
}
