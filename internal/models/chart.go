package models

// Performance categories shared by both talent grids.
const (
	CategoryTop     = "Top"
	CategoryMiddle  = "Middle"
	CategoryLow     = "Low"
	CategoryUnrated = "Nehodnocení"
)

// Categories is the display order of the grid summaries.
var Categories = []string{CategoryTop, CategoryMiddle, CategoryLow, CategoryUnrated}

// PotentialLevels are the POTENCIAL values, "0" meaning not rated.
var PotentialLevels = []string{"0", "nízký", "střední", "vysoký"}

// ScoreBins are the CO+JAK sum buckets of the 3x3 grid, highest first.
var ScoreBins = []string{"8-10", "4-7", "1-3", "0"}

// CategoryCount is one line of a grid summary.
type CategoryCount struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GridCell lists the people placed in one cell of a talent grid.
type GridCell struct {
	Row    string   `json:"row"`
	Column string   `json:"column"`
	Names  []string `json:"names"`
}

// TalentGrid is a pivot of abbreviated names by two dimensions.
type TalentGrid struct {
	RowAxis    string     `json:"row_axis"`
	ColumnAxis string     `json:"column_axis"`
	Rows       []string   `json:"rows"`
	Columns    []string   `json:"columns"`
	Cells      []GridCell `json:"cells"`
}

// TrendPoint is the mean score of one year.
type TrendPoint struct {
	Year        int     `json:"year"`
	MeanHodnoty float64 `json:"mean_hodnoty"`
	MeanVykon   float64 `json:"mean_vykon"`
	Count       int     `json:"count"`
}

// ChartReport bundles every visualisation of a filtered view.
type ChartReport struct {
	Period       string          `json:"period"`
	Previous     bool            `json:"previous"`
	Grid5        TalentGrid      `json:"grid_5x5"`
	Grid5Summary []CategoryCount `json:"grid_5x5_summary"`
	Grid3        TalentGrid      `json:"grid_3x3"`
	Grid3Summary []CategoryCount `json:"grid_3x3_summary"`
	Trend        []TrendPoint    `json:"trend"`
}
