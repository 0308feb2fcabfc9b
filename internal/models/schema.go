package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// ColumnType is the declared storage type of a warehouse column.
type ColumnType string

const (
	TypeString    ColumnType = "str"
	TypeInt       ColumnType = "int"
	TypeTimestamp ColumnType = "datetime64[ns]"
)

// Column describes one persisted column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`

	index []int
}

// Schema is the fixed expected shape of a persisted evaluation row. Every
// value entering a record (warehouse load, grid render, save) passes through
// Coerce so a column is always converted the same way.
type Schema struct {
	columns []Column
	byName  map[string]int
}

// recordMapper resolves record fields by their db tag, the same way sqlx
// scans warehouse rows into EvaluationRecord.
var recordMapper = reflectx.NewMapper("db")

// EvaluationSchema is the schema of the evaluation table, in warehouse column order.
var EvaluationSchema = buildSchema()

func buildSchema() *Schema {
	fields := recordMapper.TypeMap(reflect.TypeOf(EvaluationRecord{})).Tree.Children
	s := &Schema{byName: make(map[string]int, len(fields))}
	timestampType := reflect.TypeOf(Timestamp{})
	for _, fi := range fields {
		if fi == nil {
			continue
		}
		if _, tagged := fi.Field.Tag.Lookup("db"); !tagged {
			continue
		}
		col := Column{Name: fi.Name, index: fi.Index}
		switch {
		case fi.Field.Type == timestampType:
			col.Type = TypeTimestamp
		case fi.Field.Type.Kind() == reflect.Int:
			col.Type = TypeInt
		default:
			col.Type = TypeString
		}
		s.byName[col.Name] = len(s.columns)
		s.columns = append(s.columns, col)
	}
	return s
}

// Columns returns the ordered column list.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the ordered column names.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by name.
func (s *Schema) Lookup(name string) (Column, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[idx], true
}

// Types returns the column -> type mapping handed to storage.
func (s *Schema) Types() map[string]ColumnType {
	out := make(map[string]ColumnType, len(s.columns))
	for _, c := range s.columns {
		out[c.Name] = c.Type
	}
	return out
}

// Coerce converts raw into the Go value of the column's declared type:
// string, int or Timestamp. Non-numeric ints become 0 and unparseable
// timestamps become the epoch default.
func (c Column) Coerce(raw interface{}) interface{} {
	switch c.Type {
	case TypeInt:
		return CoerceInt(raw)
	case TypeTimestamp:
		return CoerceTimestamp(raw)
	default:
		return CoerceString(raw)
	}
}

// Coerce converts raw for the named column.
func (s *Schema) Coerce(name string, raw interface{}) (interface{}, error) {
	col, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return col.Coerce(raw), nil
}

// Get reads a column value from a record.
func (s *Schema) Get(rec *EvaluationRecord, name string) (interface{}, bool) {
	col, ok := s.Lookup(name)
	if !ok {
		return nil, false
	}
	return reflectx.FieldByIndexesReadOnly(reflect.ValueOf(rec).Elem(), col.index).Interface(), true
}

// Set coerces raw and writes it into the record.
func (s *Schema) Set(rec *EvaluationRecord, name string, raw interface{}) error {
	col, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown column %q", name)
	}
	reflectx.FieldByIndexes(reflect.ValueOf(rec).Elem(), col.index).Set(reflect.ValueOf(col.Coerce(raw)))
	return nil
}

// KeyFromMap extracts and normalises the primary key from a loosely typed row.
func (s *Schema) KeyFromMap(row map[string]interface{}) (EvaluationKey, error) {
	for _, col := range PrimaryKeyColumns {
		if v, ok := row[col]; !ok || v == nil || strings.TrimSpace(CoerceString(v)) == "" {
			return EvaluationKey{}, fmt.Errorf("row is missing primary key column %s", col)
		}
	}
	return EvaluationKey{
		UserID:     strings.TrimSpace(CoerceString(row[ColUserID])),
		Year:       CoerceInt(row[ColYear]),
		Evaluation: CoerceInt(row[ColEvaluation]),
	}, nil
}

// RecordFromMap builds a record from a loosely typed row. Columns outside
// the schema are ignored; absent columns keep their zero value.
func (s *Schema) RecordFromMap(row map[string]interface{}) (EvaluationRecord, error) {
	if _, err := s.KeyFromMap(row); err != nil {
		return EvaluationRecord{}, err
	}
	var rec EvaluationRecord
	for name, raw := range row {
		if _, ok := s.byName[name]; !ok {
			continue
		}
		if err := s.Set(&rec, name, raw); err != nil {
			return EvaluationRecord{}, err
		}
	}
	rec.Normalize()
	return rec, nil
}

// RecordFromStrings builds a record from a text row such as a CSV line.
func (s *Schema) RecordFromStrings(row map[string]string) (EvaluationRecord, error) {
	loose := make(map[string]interface{}, len(row))
	for k, v := range row {
		loose[k] = v
	}
	return s.RecordFromMap(loose)
}

// Map renders every schema column plus the derived YEAR_EVALUATION.
func (s *Schema) Map(rec EvaluationRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(s.columns)+1)
	v := reflect.ValueOf(rec)
	for _, c := range s.columns {
		out[c.Name] = reflectx.FieldByIndexesReadOnly(v, c.index).Interface()
	}
	out[ColYearEvaluation] = rec.YearEvaluation()
	return out
}

// Strings renders every schema column as text.
func (s *Schema) Strings(rec EvaluationRecord) map[string]string {
	out := make(map[string]string, len(s.columns))
	v := reflect.ValueOf(rec)
	for _, c := range s.columns {
		out[c.Name] = CoerceString(reflectx.FieldByIndexesReadOnly(v, c.index).Interface())
	}
	return out
}

// Values renders the named columns in order, for positional SQL arguments.
func (s *Schema) Values(rec EvaluationRecord, names []string) ([]interface{}, error) {
	out := make([]interface{}, len(names))
	for i, name := range names {
		value, ok := s.Get(&rec, name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		out[i] = value
	}
	return out, nil
}

// ValuesEqual compares two coerced column values.
func ValuesEqual(a, b interface{}) bool {
	ta, okA := a.(Timestamp)
	tb, okB := b.(Timestamp)
	if okA && okB {
		return ta.Equal(tb)
	}
	return a == b
}

// CoerceString converts raw into text; nil becomes "".
func CoerceString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case Timestamp:
		return v.String()
	case time.Time:
		return NewTimestamp(v).String()
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return CoerceString(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// CoerceInt converts raw into an integer, 0 when it is not numeric.
func CoerceInt(raw interface{}) int {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case float32:
		return CoerceInt(float64(v))
	case bool:
		if v {
			return 1
		}
		return 0
	case json.Number:
		return CoerceInt(string(v))
	case []byte:
		return CoerceInt(string(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return CoerceInt(f)
		}
		return 0
	default:
		return 0
	}
}
