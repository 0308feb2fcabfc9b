package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/export"
)

// Export file names.
const (
	CSVExportName = "data_ks.csv"
	PDFExportName = "kulate_stoly_charts.pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(title string, sections ...export.Section) ([]byte, error)
}

// ExportResult is a rendered download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
}

// ExportService renders the current view as CSV and its charts as PDF.
type ExportService struct {
	sessions snapshotProvider
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(sessions snapshotProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{sessions: sessions, csv: csv, pdf: pdf, logger: logger}
}

// CSV renders the rows of the view, pending edits included, with every
// warehouse column plus YEAR_EVALUATION.
func (s *ExportService) CSV(ctx context.Context, sessionID string, query models.ViewQuery) (*ExportResult, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID, query)
	if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
		return nil, err
	}
	payload, err := s.csv.Render(ViewDataset(snap.View))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	s.logger.Info("csv export generated", zap.String("session_id", sessionID), zap.Int("rows", len(snap.View)))
	return &ExportResult{Filename: CSVExportName, ContentType: "text/csv; charset=utf-8", Payload: payload, Rows: len(snap.View)}, nil
}

// PDF renders the talent grids, their summaries and the trend of the view.
func (s *ExportService) PDF(ctx context.Context, sessionID string, query dto.ChartQuery) (*ExportResult, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID, models.ViewQuery{
		Period:     query.Period,
		FilterName: query.FilterName,
		TeamOnly:   query.TeamOnly,
	})
	if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
		return nil, err
	}
	report := BuildCharts(snap.Scoped, snap.View, query.Previous, query.OneOnOne)

	title := "Kulaté stoly"
	if query.Period != "" {
		title = fmt.Sprintf("Kulaté stoly %s", query.Period)
	}
	payload, err := s.pdf.Render(title,
		export.Section{Title: "CO x JAK", Data: gridDataset(report.Grid5)},
		export.Section{Title: "CO x JAK summary", Data: summaryDataset(report.Grid5Summary)},
		export.Section{Title: "CO+JAK x POTENCIAL", Data: gridDataset(report.Grid3)},
		export.Section{Title: "CO+JAK x POTENCIAL summary", Data: summaryDataset(report.Grid3Summary)},
		export.Section{Title: "CO and JAK over time", Data: trendDataset(report.Trend)},
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
	}
	return &ExportResult{Filename: PDFExportName, ContentType: "application/pdf", Payload: payload, Rows: len(snap.View)}, nil
}

// ViewDataset converts records into an export dataset.
func ViewDataset(records []models.EvaluationRecord) export.Dataset {
	headers := append(models.EvaluationSchema.Names(), models.ColYearEvaluation)
	data := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(records))}
	for _, rec := range records {
		row := models.EvaluationSchema.Strings(rec)
		row[models.ColYearEvaluation] = rec.YearEvaluation()
		data.Rows = append(data.Rows, row)
	}
	return data
}

func gridDataset(grid models.TalentGrid) export.Dataset {
	axis := grid.RowAxis + " / " + grid.ColumnAxis
	data := export.Dataset{Headers: append([]string{axis}, grid.Columns...)}
	rows := make(map[string]map[string]string, len(grid.Rows))
	for _, r := range grid.Rows {
		row := map[string]string{axis: r}
		rows[r] = row
		data.Rows = append(data.Rows, row)
	}
	for _, cell := range grid.Cells {
		if row, ok := rows[cell.Row]; ok {
			row[cell.Column] = strings.Join(cell.Names, ", ")
		}
	}
	return data
}

func summaryDataset(summary []models.CategoryCount) export.Dataset {
	data := export.Dataset{Headers: []string{"Category", "Count", "Percentage"}}
	for _, c := range summary {
		data.Rows = append(data.Rows, map[string]string{
			"Category":   c.Category,
			"Count":      strconv.Itoa(c.Count),
			"Percentage": strconv.FormatFloat(c.Percentage, 'f', 2, 64) + " %",
		})
	}
	return data
}

func trendDataset(trend []models.TrendPoint) export.Dataset {
	data := export.Dataset{Headers: []string{models.ColYear, "JAK", "CO", "Count"}}
	for _, p := range trend {
		data.Rows = append(data.Rows, map[string]string{
			models.ColYear: strconv.Itoa(p.Year),
			"JAK":          strconv.FormatFloat(p.MeanHodnoty, 'f', 2, 64),
			"CO":           strconv.FormatFloat(p.MeanVykon, 'f', 2, 64),
			"Count":        strconv.Itoa(p.Count),
		})
	}
	return data
}
