package models

import (
	"encoding/json"
	"time"
)

// FilterTypeSet selects rows whose column value is one of Values.
const FilterTypeSet = "set"

// ColumnFilter is one column entry of a grid filter model.
type ColumnFilter struct {
	FilterType string        `json:"filterType"`
	Values     []interface{} `json:"values,omitempty"`
}

// FilterModel maps column name to its filter, in the grid's wire format.
type FilterModel map[string]ColumnFilter

// SavedFilter is a named filter model stored per creator.
type SavedFilter struct {
	Name           string    `db:"FILTER_NAME" json:"name"`
	Creator        string    `db:"FILTER_CREATOR" json:"creator"`
	FilteredValues string    `db:"FILTERED_VALUES" json:"-"`
	UpdatedAt      time.Time `db:"UPDATED_AT" json:"updated_at"`
}

// Model decodes the stored JSON filter model.
func (f SavedFilter) Model() (FilterModel, error) {
	model := FilterModel{}
	if f.FilteredValues == "" {
		return model, nil
	}
	if err := json.Unmarshal([]byte(f.FilteredValues), &model); err != nil {
		return nil, err
	}
	return model, nil
}
