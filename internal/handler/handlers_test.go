package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/internal/service"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type filterServiceMock struct {
	list      []dto.FilterResponse
	creator   string
	sessionID string
	saved     dto.SaveFilterRequest
	err       error
}

func (m *filterServiceMock) List(ctx context.Context, creator string) ([]dto.FilterResponse, error) {
	m.creator = creator
	return m.list, m.err
}

func (m *filterServiceMock) Save(ctx context.Context, sessionID, creator string, req dto.SaveFilterRequest) (*dto.FilterResponse, error) {
	m.sessionID, m.creator, m.saved = sessionID, creator, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.FilterResponse{Name: req.Name, Model: req.Model}, nil
}

type chartServiceMock struct {
	query  dto.ChartQuery
	report *models.ChartReport
	err    error
}

func (m *chartServiceMock) Charts(ctx context.Context, sessionID string, query dto.ChartQuery) (*models.ChartReport, error) {
	m.query = query
	return m.report, m.err
}

type exportServiceMock struct {
	csvQuery models.ViewQuery
	pdfQuery dto.ChartQuery
	err      error
}

func (m *exportServiceMock) CSV(ctx context.Context, sessionID string, query models.ViewQuery) (*service.ExportResult, error) {
	m.csvQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportResult{Filename: service.CSVExportName, ContentType: "text/csv; charset=utf-8", Payload: []byte("USER_ID\nu1\n"), Rows: 1}, nil
}

func (m *exportServiceMock) PDF(ctx context.Context, sessionID string, query dto.ChartQuery) (*service.ExportResult, error) {
	m.pdfQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportResult{Filename: service.PDFExportName, ContentType: "application/pdf", Payload: []byte("%PDF-1.3")}, nil
}

func TestFilterHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &filterServiceMock{list: []dto.FilterResponse{{Name: "a"}, {Name: "b"}}}
	h := NewFilterHandler(svc)

	c, w := newGinContext(http.MethodGet, "/filters", nil)
	withSession(c)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bp@x.cz", svc.creator)
	body := decodeEnvelope(t, w)
	assert.EqualValues(t, 2, body.Meta["count"])
}

func TestFilterHandlerSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &filterServiceMock{}
	h := NewFilterHandler(svc)

	payload := []byte(`{"name":"top","model":{"POTENCIAL":{"filterType":"set","values":["vysoký"]}}}`)
	c, w := newGinContext(http.MethodPost, "/filters", payload)
	withSession(c)
	h.Save(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", svc.sessionID)
	assert.Equal(t, "top", svc.saved.Name)
	assert.Equal(t, models.FilterTypeSet, svc.saved.Model[models.ColPotencial].FilterType)

	c, w = newGinContext(http.MethodPost, "/filters", []byte(`[]`))
	withSession(c)
	h.Save(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.err = appErrors.Clone(appErrors.ErrValidation, "name is required")
	c, w = newGinContext(http.MethodPost, "/filters", payload)
	withSession(c)
	h.Save(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name is required", decodeEnvelope(t, w).Error.Message)
}

func TestChartHandlerBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &chartServiceMock{report: &models.ChartReport{Period: "2024-1"}}
	h := NewChartHandler(svc)

	c, w := newGinContext(http.MethodGet, "/charts?period=2024-1&oneOnOne=Jan%20Nov%C3%A1k&previous=true", nil)
	withSession(c)
	h.Charts(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ChartQuery{Period: "2024-1", OneOnOne: "Jan Novák", Previous: true}, svc.query)

	var report models.ChartReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Equal(t, "2024-1", report.Period)
}

func TestChartHandlerEmptyView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &chartServiceMock{report: &models.ChartReport{}, err: appErrors.ErrEmptyView}
	h := NewChartHandler(svc)

	c, w := newGinContext(http.MethodGet, "/charts", nil)
	withSession(c)
	h.Charts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeEnvelope(t, w).Warnings, 1)

	svc.err = appErrors.ErrSessionNotFound
	c, w = newGinContext(http.MethodGet, "/charts", nil)
	withSession(c)
	h.Charts(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerAttachments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &exportServiceMock{}
	h := NewExportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/export.csv?period=2024-1&team=true", nil)
	withSession(c)
	h.CSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="data_ks.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, models.ViewQuery{Period: "2024-1", TeamOnly: true}, svc.csvQuery)
	assert.Equal(t, "USER_ID\nu1\n", w.Body.String())

	c, w = newGinContext(http.MethodGet, "/export.pdf?oneOnOne=Eva", nil)
	withSession(c)
	h.PDF(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="kulate_stoly_charts.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Eva", svc.pdfQuery.OneOnOne)

	svc.err = appErrors.ErrEmptyScope
	c, w = newGinContext(http.MethodGet, "/export.csv", nil)
	withSession(c)
	h.CSV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestMetricsHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordLock(3)

	failing := ReadinessCheck{Name: "postgres", Check: func(ctx context.Context) error { return errors.New("refused") }}
	passing := ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return nil }}

	c, w := newGinContext(http.MethodGet, "/health", nil)
	NewMetricsHandler(metrics).Health(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(metrics, passing).Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(metrics, passing, failing).Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
	assert.NotContains(t, w.Body.String(), "redis")

	c, w = newGinContext(http.MethodGet, "/status", nil)
	NewMetricsHandler(metrics).Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.MetricsSnapshot
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &snap))
	assert.Equal(t, uint64(3), snap.RowsLocked)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	NewMetricsHandler(metrics).Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rows_locked_total")

	c, _ = newGinContext(http.MethodGet, "/status", nil)
	NewMetricsHandler(nil).Status(c)
	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}
