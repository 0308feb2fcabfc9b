package repository

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/pkg/export"
	"github.com/noah-isme/kulate-stoly-api/pkg/storage"
)

// EvaluationCSVStore keeps the evaluation table in a local CSV file. It
// serves development and tests in place of the warehouse.
type EvaluationCSVStore struct {
	storage *storage.LocalStorage
	file    string
	codec   *export.CSVExporter
	mu      sync.Mutex
}

// NewEvaluationCSVStore constructs a file-backed evaluation store.
func NewEvaluationCSVStore(store *storage.LocalStorage, file string) *EvaluationCSVStore {
	if file == "" {
		file = "evaluations.csv"
	}
	return &EvaluationCSVStore{storage: store, file: file, codec: export.NewCSVExporter()}
}

// Mode reports the persistence mode recorded with each save.
func (s *EvaluationCSVStore) Mode() string {
	return "local"
}

// LoadAll parses every row of the file. A missing file is an empty table.
func (s *EvaluationCSVStore) LoadAll(ctx context.Context) ([]models.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	records := make([]models.EvaluationRecord, 0, len(data.Rows))
	for i, row := range data.Rows {
		rec, err := models.EvaluationSchema.RecordFromStrings(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.file, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Persist updates the write-back columns of rows already in the file and
// appends unknown ones. Columns the schema does not know are preserved.
func (s *EvaluationCSVStore) Persist(ctx context.Context, rows []models.EvaluationRecord) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return 0, err
	}
	data.Headers = mergeHeaders(data.Headers, models.EvaluationSchema.Names())

	index := make(map[models.EvaluationKey]int, len(data.Rows))
	for i, row := range data.Rows {
		key, err := models.EvaluationSchema.KeyFromMap(looseRow(row))
		if err != nil {
			continue
		}
		index[key] = i
	}

	for _, rec := range rows {
		values := models.EvaluationSchema.Strings(rec)
		pos, ok := index[rec.Key()]
		if !ok {
			index[rec.Key()] = len(data.Rows)
			data.Rows = append(data.Rows, values)
			continue
		}
		for _, col := range models.UpdateColumns {
			data.Rows[pos][col] = values[col]
		}
	}

	if err := s.storage.Replace(s.file, func(w io.Writer) error {
		return s.codec.Write(w, data)
	}); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ModifiedWhen returns the current HIST_DATA_MODIFIED_WHEN of each key found.
func (s *EvaluationCSVStore) ModifiedWhen(ctx context.Context, keys []models.EvaluationKey) (map[models.EvaluationKey]models.Timestamp, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[models.EvaluationKey]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}
	out := make(map[models.EvaluationKey]models.Timestamp, len(keys))
	for _, rec := range records {
		if _, ok := wanted[rec.Key()]; ok {
			out[rec.Key()] = rec.HistDataModifiedWhen
		}
	}
	return out, nil
}

func (s *EvaluationCSVStore) read() (export.Dataset, error) {
	if !s.storage.Exists(s.file) {
		return export.Dataset{}, nil
	}
	file, err := s.storage.Open(s.file)
	if err != nil {
		return export.Dataset{}, err
	}
	defer file.Close()
	data, err := s.codec.Parse(file)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("parse %s: %w", s.file, err)
	}
	return data, nil
}

func mergeHeaders(existing, required []string) []string {
	out := append([]string{}, existing...)
	seen := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		seen[h] = struct{}{}
	}
	for _, h := range required {
		if _, ok := seen[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

func looseRow(row map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
