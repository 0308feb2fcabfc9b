package models

// GridRow is one row as exchanged with the grid client: column name to value.
type GridRow map[string]interface{}

// ViewQuery selects the rows shown in the grid.
type ViewQuery struct {
	Period     string `form:"period" json:"period"`
	FilterName string `form:"filter" json:"filter"`
	TeamOnly   bool   `form:"team" json:"team"`
}

// DisplayRow is a grid row together with its edit permission.
type DisplayRow struct {
	Key      EvaluationKey `json:"key"`
	Editable bool          `json:"editable"`
	// LockEditable reports whether IS_LOCKED itself may be toggled.
	LockEditable bool    `json:"lock_editable"`
	Values       GridRow `json:"values"`
}

// GridView is the filtered table returned for display.
type GridView struct {
	GridKey         string       `json:"grid_key"`
	Period          string       `json:"period"`
	Periods         []string     `json:"periods"`
	EditableColumns []string     `json:"editable_columns"`
	Rows            []DisplayRow `json:"rows"`
	Unsaved         bool         `json:"unsaved"`
	PendingRows     int          `json:"pending_rows"`
}

// RejectedEdit is a detected cell change the session's role may not make.
type RejectedEdit struct {
	Key    EvaluationKey `json:"key"`
	Column string        `json:"column"`
	Reason string        `json:"reason"`
}

// RenderResult is returned after the client posts its rendered table.
type RenderResult struct {
	Diff        []RowPatch     `json:"diff"`
	Rejected    []RejectedEdit `json:"rejected,omitempty"`
	PendingRows int            `json:"pending_rows"`
	Unsaved     bool           `json:"unsaved"`
}

// SaveResult summarises a successful reconciliation.
type SaveResult struct {
	RowsWritten int    `json:"rows_written"`
	Mode        string `json:"mode"`
	GridKey     string `json:"grid_key,omitempty"`
}
