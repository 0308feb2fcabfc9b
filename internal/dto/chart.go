package dto

// ChartQuery selects the view the charts are drawn from.
type ChartQuery struct {
	Period     string `form:"period"`
	FilterName string `form:"filter"`
	TeamOnly   bool   `form:"team"`
	// OneOnOne masks every name except this FULL_NAME.
	OneOnOne string `form:"oneOnOne"`
	Previous bool   `form:"previous"`
}
