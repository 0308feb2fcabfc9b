package repository

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/pkg/export"
	"github.com/noah-isme/kulate-stoly-api/pkg/storage"
)

// FilterRepository stores named filter models in PostgreSQL.
type FilterRepository struct {
	db    *sqlx.DB
	table string
}

// NewFilterRepository constructs a FilterRepository.
func NewFilterRepository(db *sqlx.DB, table string) *FilterRepository {
	return &FilterRepository{db: db, table: quoteTable(table)}
}

// ListByCreator returns the creator's filters ordered by name.
func (r *FilterRepository) ListByCreator(ctx context.Context, creator string) ([]models.SavedFilter, error) {
	query := fmt.Sprintf(`SELECT "FILTER_NAME", "FILTER_CREATOR", "FILTERED_VALUES", "UPDATED_AT" FROM %s WHERE "FILTER_CREATOR" = $1 ORDER BY "FILTER_NAME"`, r.table)
	var filters []models.SavedFilter
	if err := r.db.SelectContext(ctx, &filters, query, creator); err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	return filters, nil
}

// Upsert inserts the filter or replaces the model stored under the same
// name and creator.
func (r *FilterRepository) Upsert(ctx context.Context, filter models.SavedFilter) error {
	if filter.UpdatedAt.IsZero() {
		filter.UpdatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s ("FILTER_NAME", "FILTER_CREATOR", "FILTERED_VALUES", "UPDATED_AT")
VALUES (:FILTER_NAME, :FILTER_CREATOR, :FILTERED_VALUES, :UPDATED_AT)
ON CONFLICT ("FILTER_NAME", "FILTER_CREATOR") DO UPDATE SET "FILTERED_VALUES" = EXCLUDED."FILTERED_VALUES", "UPDATED_AT" = EXCLUDED."UPDATED_AT"`, r.table)
	if _, err := r.db.NamedExecContext(ctx, query, filter); err != nil {
		return fmt.Errorf("upsert filter: %w", err)
	}
	return nil
}

var filterHeaders = []string{"FILTER_NAME", "FILTER_CREATOR", "FILTERED_VALUES", "UPDATED_AT"}

// FilterCSVStore keeps saved filters in a local CSV file.
type FilterCSVStore struct {
	storage *storage.LocalStorage
	file    string
	codec   *export.CSVExporter
	mu      sync.Mutex
}

// NewFilterCSVStore constructs a file-backed filter store.
func NewFilterCSVStore(store *storage.LocalStorage, file string) *FilterCSVStore {
	if file == "" {
		file = "filters.csv"
	}
	return &FilterCSVStore{storage: store, file: file, codec: export.NewCSVExporter()}
}

// ListByCreator returns the creator's filters ordered by name.
func (s *FilterCSVStore) ListByCreator(ctx context.Context, creator string) ([]models.SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]models.SavedFilter, 0)
	for _, f := range all {
		if f.Creator == creator {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Upsert inserts or replaces the filter keyed by name and creator.
func (s *FilterCSVStore) Upsert(ctx context.Context, filter models.SavedFilter) error {
	if filter.UpdatedAt.IsZero() {
		filter.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	replaced := false
	for i, f := range all {
		if f.Name == filter.Name && f.Creator == filter.Creator {
			all[i] = filter
			replaced = true
		}
	}
	if !replaced {
		all = append(all, filter)
	}

	data := export.Dataset{Headers: filterHeaders, Rows: make([]map[string]string, 0, len(all))}
	for _, f := range all {
		data.Rows = append(data.Rows, map[string]string{
			"FILTER_NAME":     f.Name,
			"FILTER_CREATOR":  f.Creator,
			"FILTERED_VALUES": f.FilteredValues,
			"UPDATED_AT":      f.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return s.storage.Replace(s.file, func(w io.Writer) error {
		return s.codec.Write(w, data)
	})
}

func (s *FilterCSVStore) readAll() ([]models.SavedFilter, error) {
	if !s.storage.Exists(s.file) {
		return nil, nil
	}
	file, err := s.storage.Open(s.file)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := s.codec.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.file, err)
	}
	out := make([]models.SavedFilter, 0, len(data.Rows))
	for _, row := range data.Rows {
		updated, _ := time.Parse(time.RFC3339, row["UPDATED_AT"])
		out = append(out, models.SavedFilter{
			Name:           row["FILTER_NAME"],
			Creator:        row["FILTER_CREATOR"],
			FilteredValues: row["FILTERED_VALUES"],
			UpdatedAt:      updated,
		})
	}
	return out, nil
}
