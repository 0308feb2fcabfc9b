package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type snapshotProvider interface {
	Snapshot(ctx context.Context, sessionID string, query models.ViewQuery) (*ViewSnapshot, error)
}

// maskedName replaces other people's names in 1-on-1 mode.
const maskedName = "*"

// ChartService computes the talent grids and trend of a view.
type ChartService struct {
	sessions snapshotProvider
	logger   *zap.Logger
}

// NewChartService constructs a ChartService.
func NewChartService(sessions snapshotProvider, logger *zap.Logger) *ChartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartService{sessions: sessions, logger: logger}
}

// Charts builds every chart for the selected view. An empty view yields
// empty charts together with ErrEmptyView.
func (s *ChartService) Charts(ctx context.Context, sessionID string, query dto.ChartQuery) (*models.ChartReport, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID, models.ViewQuery{
		Period:     query.Period,
		FilterName: query.FilterName,
		TeamOnly:   query.TeamOnly,
	})
	if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
		return nil, err
	}
	report := BuildCharts(snap.Scoped, snap.View, query.Previous, query.OneOnOne)
	report.Period = query.Period
	return &report, err
}

// BuildCharts pivots view into the 5x5 and 3x3 talent grids with their
// category summaries, and averages scoped per year for the users in view.
// With previous set the *_PREVIOUS scores are used. A non-empty oneOnOne
// masks every other FULL_NAME.
func BuildCharts(scoped, view []models.EvaluationRecord, previous bool, oneOnOne string) models.ChartReport {
	points := make([]chartPoint, 0, len(view))
	for _, rec := range view {
		p := chartPoint{co: rec.Vykon, jak: rec.Hodnoty, potential: rec.Potencial, name: rec.FullName}
		if previous {
			p.co, p.jak, p.potential = rec.VykonPrevious, rec.HodnotyPrevious, rec.PotencialPrevious
		}
		if strings.TrimSpace(p.potential) == "" {
			p.potential = models.PotentialLevels[0]
		}
		if oneOnOne != "" && p.name != oneOnOne {
			p.name = maskedName
		}
		p.name = AbbreviateName(p.name)
		points = append(points, p)
	}

	report := models.ChartReport{Previous: previous}
	report.Grid5, report.Grid5Summary = grid5(points)
	report.Grid3, report.Grid3Summary = grid3(points)
	report.Trend = Trend(scoped, view)
	return report
}

// AbbreviateName shortens "Jan Novák" to "J. Novák". Single words are kept.
func AbbreviateName(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return strings.TrimSpace(name)
	}
	first, _ := utf8.DecodeRuneInString(parts[0])
	return string(first) + ". " + parts[len(parts)-1]
}

// Category5 classifies a CO (VYKON) / JAK (HODNOTY) pair on the 5x5 grid.
func Category5(co, jak int) string {
	switch {
	case co == 0 || jak == 0:
		return models.CategoryUnrated
	case in(co, 4, 5) && in(jak, 4, 5):
		return models.CategoryTop
	case co == 2 && between(jak, 3, 5),
		co == 3 && between(jak, 2, 5),
		in(co, 4, 5) && in(jak, 2, 3):
		return models.CategoryMiddle
	case co == 1 || jak == 1,
		co == 2 && in(jak, 1, 2),
		between(co, 3, 5) && jak == 1:
		return models.CategoryLow
	default:
		return models.CategoryUnrated
	}
}

// Category3 classifies a CO+JAK sum and POTENCIAL on the 3x3 grid.
func Category3(co, jak int, potential string) string {
	sum := co + jak
	low, mid, high := potential == "nízký", potential == "střední", potential == "vysoký"
	switch {
	case potential == "0" || sum == 0:
		return models.CategoryUnrated
	case (low || mid) && between(sum, 1, 3):
		return models.CategoryLow
	case high && between(sum, 1, 3),
		(low || mid) && between(sum, 4, 7),
		low && between(sum, 8, 10):
		return models.CategoryMiddle
	case high && between(sum, 4, 7),
		(mid || high) && between(sum, 8, 10):
		return models.CategoryTop
	default:
		return models.CategoryUnrated
	}
}

// ScoreBin places a CO+JAK sum into its 3x3 row, "" when above range.
func ScoreBin(sum int) string {
	switch {
	case sum <= 0:
		return "0"
	case sum <= 3:
		return "1-3"
	case sum <= 7:
		return "4-7"
	case sum <= 10:
		return "8-10"
	default:
		return ""
	}
}

// Trend averages HODNOTY and VYKON per YEAR over the scoped rows of every
// user present in view.
func Trend(scoped, view []models.EvaluationRecord) []models.TrendPoint {
	users := make(map[string]struct{}, len(view))
	for _, rec := range view {
		users[rec.Key().UserID] = struct{}{}
	}
	type acc struct{ hodnoty, vykon, count int }
	byYear := make(map[int]*acc)
	for _, rec := range scoped {
		if _, ok := users[rec.Key().UserID]; !ok {
			continue
		}
		a, ok := byYear[rec.Year]
		if !ok {
			a = &acc{}
			byYear[rec.Year] = a
		}
		a.hodnoty += rec.Hodnoty
		a.vykon += rec.Vykon
		a.count++
	}
	out := make([]models.TrendPoint, 0, len(byYear))
	for year, a := range byYear {
		out = append(out, models.TrendPoint{
			Year:        year,
			MeanHodnoty: round2(float64(a.hodnoty) / float64(a.count)),
			MeanVykon:   round2(float64(a.vykon) / float64(a.count)),
			Count:       a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

type chartPoint struct {
	co, jak   int
	potential string
	name      string
}

func grid5(points []chartPoint) (models.TalentGrid, []models.CategoryCount) {
	grid := models.TalentGrid{RowAxis: models.ColVykon, ColumnAxis: models.ColHodnoty}
	for v := 5; v >= 0; v-- {
		grid.Rows = append(grid.Rows, strconv.Itoa(v))
	}
	for v := 0; v <= 5; v++ {
		grid.Columns = append(grid.Columns, strconv.Itoa(v))
	}
	cells := newCells(grid.Rows, grid.Columns)
	categories := make([]string, 0, len(points))
	for _, p := range points {
		cells.add(strconv.Itoa(p.co), strconv.Itoa(p.jak), p.name)
		categories = append(categories, Category5(p.co, p.jak))
	}
	grid.Cells = cells.list()
	return grid, summarize(categories)
}

func grid3(points []chartPoint) (models.TalentGrid, []models.CategoryCount) {
	grid := models.TalentGrid{RowAxis: "CO_JAK", ColumnAxis: models.ColPotencial}
	grid.Rows = append(grid.Rows, models.ScoreBins...)
	grid.Columns = append(grid.Columns, models.PotentialLevels...)
	known := make(map[string]struct{}, len(grid.Columns))
	for _, c := range grid.Columns {
		known[c] = struct{}{}
	}
	var extra []string
	for _, p := range points {
		if _, ok := known[p.potential]; !ok {
			known[p.potential] = struct{}{}
			extra = append(extra, p.potential)
		}
	}
	sort.Strings(extra)
	grid.Columns = append(grid.Columns, extra...)

	cells := newCells(grid.Rows, grid.Columns)
	categories := make([]string, 0, len(points))
	for _, p := range points {
		if bin := ScoreBin(p.co + p.jak); bin != "" {
			cells.add(bin, p.potential, p.name)
		}
		categories = append(categories, Category3(p.co, p.jak, p.potential))
	}
	grid.Cells = cells.list()
	return grid, summarize(categories)
}

// summarize counts categories in display order with percentages of the total.
func summarize(categories []string) []models.CategoryCount {
	counts := make(map[string]int, len(models.Categories))
	for _, c := range categories {
		counts[c]++
	}
	out := make([]models.CategoryCount, 0, len(models.Categories))
	for _, c := range models.Categories {
		entry := models.CategoryCount{Category: c, Count: counts[c]}
		if len(categories) > 0 {
			entry.Percentage = round2(float64(counts[c]) / float64(len(categories)) * 100)
		}
		out = append(out, entry)
	}
	return out
}

type cellIndex struct {
	order []models.GridCell
	pos   map[[2]string]int
}

func newCells(rows, columns []string) *cellIndex {
	idx := &cellIndex{pos: make(map[[2]string]int, len(rows)*len(columns))}
	for _, r := range rows {
		for _, c := range columns {
			idx.pos[[2]string{r, c}] = len(idx.order)
			idx.order = append(idx.order, models.GridCell{Row: r, Column: c, Names: []string{}})
		}
	}
	return idx
}

// add ignores coordinates outside the grid and empty names.
func (c *cellIndex) add(row, column, name string) {
	pos, ok := c.pos[[2]string{row, column}]
	if !ok || name == "" {
		return
	}
	c.order[pos].Names = append(c.order[pos].Names, name)
}

func (c *cellIndex) list() []models.GridCell {
	return c.order
}

func in(v int, options ...int) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func between(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
