package models

import (
	"encoding/json"
	"sort"
)

// RowPatch carries the changed fields of one row. Field values are already
// coerced to their column types.
type RowPatch struct {
	Key    EvaluationKey          `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

// Columns returns the patched column names in sorted order.
func (p RowPatch) Columns() []string {
	cols := make([]string, 0, len(p.Fields))
	for c := range p.Fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// UnmarshalJSON restores typed field values after a round trip through a
// session store.
func (p *RowPatch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key    EvaluationKey          `json:"key"`
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Key = raw.Key
	p.Fields = make(map[string]interface{}, len(raw.Fields))
	for col, value := range raw.Fields {
		coerced, err := EvaluationSchema.Coerce(col, value)
		if err != nil {
			return err
		}
		p.Fields[col] = coerced
	}
	return nil
}

func (p RowPatch) clone() RowPatch {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		if v != nil {
			fields[k] = v
		}
	}
	return RowPatch{Key: p.Key, Fields: fields}
}

// ChangeSet accumulates edits per primary key in first-seen order.
type ChangeSet struct {
	Rows []RowPatch `json:"rows"`
}

// NewChangeSet builds a change set from patches, merging duplicate keys.
func NewChangeSet(patches ...RowPatch) *ChangeSet {
	cs := &ChangeSet{}
	cs.Merge(patches)
	return cs
}

// Len returns the number of changed rows.
func (cs *ChangeSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Rows)
}

// Empty reports whether there is nothing to save.
func (cs *ChangeSet) Empty() bool {
	return cs.Len() == 0
}

// Get returns the accumulated patch for key.
func (cs *ChangeSet) Get(key EvaluationKey) (RowPatch, bool) {
	if cs == nil {
		return RowPatch{}, false
	}
	for _, row := range cs.Rows {
		if row.Key == key {
			return row, true
		}
	}
	return RowPatch{}, false
}

// Merge folds a batch into the change set. Fields present in the batch win
// over earlier values for the same key; fields the batch does not mention
// keep their accumulated value; unseen keys are appended.
func (cs *ChangeSet) Merge(batch []RowPatch) {
	if len(batch) == 0 {
		return
	}
	index := make(map[EvaluationKey]int, len(cs.Rows))
	for i, row := range cs.Rows {
		index[row.Key] = i
	}
	for _, patch := range batch {
		if len(patch.Fields) == 0 {
			continue
		}
		pos, ok := index[patch.Key]
		if !ok {
			index[patch.Key] = len(cs.Rows)
			cs.Rows = append(cs.Rows, patch.clone())
			continue
		}
		for col, value := range patch.Fields {
			if value == nil {
				continue
			}
			cs.Rows[pos].Fields[col] = value
		}
	}
}

// Clone returns a deep copy.
func (cs *ChangeSet) Clone() *ChangeSet {
	out := &ChangeSet{Rows: make([]RowPatch, 0, cs.Len())}
	if cs == nil {
		return out
	}
	for _, row := range cs.Rows {
		out.Rows = append(out.Rows, row.clone())
	}
	return out
}

// Reset drops every accumulated edit.
func (cs *ChangeSet) Reset() {
	cs.Rows = nil
}
