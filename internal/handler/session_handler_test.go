package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/middleware"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type sessionServiceMock struct {
	createReq   dto.CreateSessionRequest
	createRoles string
	createEmail string
	createResp  *dto.SessionResponse
	createErr   error

	gridQuery models.ViewQuery
	gridResp  *models.GridView
	gridErr   error

	renderReq  dto.RenderRequest
	renderResp *models.RenderResult
	renderErr  error

	changesResp *dto.ChangesResponse
	discardErr  error
	discardID   string

	saveResp *models.SaveResult
	saveErr  error

	lockQuery models.ViewQuery
	lockResp  *models.SaveResult
	lockErr   error
}

func (m *sessionServiceMock) Create(ctx context.Context, rolesHeader, emailHeader string, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	m.createRoles, m.createEmail, m.createReq = rolesHeader, emailHeader, req
	return m.createResp, m.createErr
}

func (m *sessionServiceMock) Grid(ctx context.Context, sessionID string, query models.ViewQuery) (*models.GridView, error) {
	m.gridQuery = query
	return m.gridResp, m.gridErr
}

func (m *sessionServiceMock) Render(ctx context.Context, sessionID string, req dto.RenderRequest) (*models.RenderResult, error) {
	m.renderReq = req
	return m.renderResp, m.renderErr
}

func (m *sessionServiceMock) Changes(ctx context.Context, sessionID string) (*dto.ChangesResponse, error) {
	return m.changesResp, nil
}

func (m *sessionServiceMock) Discard(ctx context.Context, sessionID string) error {
	m.discardID = sessionID
	return m.discardErr
}

func (m *sessionServiceMock) Save(ctx context.Context, sessionID string) (*models.SaveResult, error) {
	return m.saveResp, m.saveErr
}

func (m *sessionServiceMock) Lock(ctx context.Context, sessionID string, query models.ViewQuery) (*models.SaveResult, error) {
	m.lockQuery = query
	return m.lockResp, m.lockErr
}

type envelopeBody struct {
	Data     json.RawMessage    `json:"data"`
	Error    *appErrors.Error   `json:"error"`
	Warnings []*appErrors.Error `json:"warnings"`
	Meta     map[string]interface{}
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withSession(c *gin.Context) {
	c.Set(middleware.ContextSessionKey, &models.SessionClaims{SessionID: "sess-1", Email: "bp@x.cz", Role: models.RoleBP})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSessionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{createResp: &dto.SessionResponse{SessionID: "sess-1", Token: "tok", Role: models.RoleDev}}
	h := NewSessionHandler(svc, "", "")

	payload, _ := json.Marshal(dto.CreateSessionRequest{ActAs: &models.Impersonation{Role: "MA"}})
	c, w := newGinContext(http.MethodPost, "/sessions", payload)
	c.Request.Header.Set("X-Kbc-User-Roles", "103")
	c.Request.Header.Set("X-Kbc-User-Email", "dev@x.cz")

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "103", svc.createRoles)
	assert.Equal(t, "dev@x.cz", svc.createEmail)
	require.NotNil(t, svc.createReq.ActAs)
	assert.Equal(t, "MA", svc.createReq.ActAs.Role)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestSessionHandlerCreateWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{createErr: appErrors.ErrRoleUnknown}
	h := NewSessionHandler(svc, "X-Roles", "X-Email")

	c, w := newGinContext(http.MethodPost, "/sessions", nil)
	c.Request.Header.Set("X-Roles", "nope")

	h.Create(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, svc.createReq.ActAs)
	assert.Equal(t, "nope", svc.createRoles)
	assert.Equal(t, appErrors.ErrRoleUnknown.Code, decodeEnvelope(t, w).Error.Code)
}

func TestSessionHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(&sessionServiceMock{}, "", "")

	c, w := newGinContext(http.MethodGet, "/grid", nil)
	h.Grid(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionHandlerGridEmptyViewWarns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{gridResp: &models.GridView{GridKey: "k"}, gridErr: appErrors.ErrEmptyView}
	h := NewSessionHandler(svc, "", "")

	c, w := newGinContext(http.MethodGet, "/grid?period=2024-1&filter=mine&team=true", nil)
	withSession(c)

	h.Grid(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ViewQuery{Period: "2024-1", FilterName: "mine", TeamOnly: true}, svc.gridQuery)
	body := decodeEnvelope(t, w)
	require.Len(t, body.Warnings, 1)
	assert.Equal(t, appErrors.ErrEmptyView.Code, body.Warnings[0].Code)
}

func TestSessionHandlerGridScopeError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(&sessionServiceMock{gridErr: appErrors.ErrEmptyScope}, "", "")

	c, w := newGinContext(http.MethodGet, "/grid", nil)
	withSession(c)

	h.Grid(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandlerRender(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{renderResp: &models.RenderResult{PendingRows: 1, Unsaved: true}}
	h := NewSessionHandler(svc, "", "")

	payload := []byte(`{"period":"2024-1","rows":[{"USER_ID":"u1","YEAR":2024,"EVALUATION":1,"VYKON":5}]}`)
	c, w := newGinContext(http.MethodPost, "/grid/render", payload)
	withSession(c)

	h.Render(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.renderReq.Rows, 1)
	assert.Equal(t, "u1", svc.renderReq.Rows[0][models.ColUserID])

	c, w = newGinContext(http.MethodPost, "/grid/render", []byte(`{"rows":`))
	withSession(c)
	h.Render(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerSaveErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{saveErr: appErrors.ErrNoChanges}
	h := NewSessionHandler(svc, "", "")

	c, w := newGinContext(http.MethodPost, "/save", nil)
	withSession(c)
	h.Save(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	svc.saveErr = appErrors.WrapAs(appErrors.ErrPersistence, appErrors.ErrReconciliation, "")
	c, w = newGinContext(http.MethodPost, "/save", nil)
	withSession(c)
	h.Save(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, appErrors.ErrReconciliation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestSessionHandlerLockAndDiscard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &sessionServiceMock{lockResp: &models.SaveResult{RowsWritten: 2, GridKey: "g"}}
	h := NewSessionHandler(svc, "", "")

	c, w := newGinContext(http.MethodPost, "/lock", []byte(`{"period":"2024-1"}`))
	withSession(c)
	h.Lock(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-1", svc.lockQuery.Period)

	c, _ = newGinContext(http.MethodDelete, "/changes", nil)
	withSession(c)
	h.Discard(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "sess-1", svc.discardID)
}

func TestSessionHandlerChanges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	key := models.EvaluationKey{UserID: "u1", Year: 2024, Evaluation: 1}
	svc := &sessionServiceMock{changesResp: &dto.ChangesResponse{
		Rows:    []models.RowPatch{{Key: key, Fields: map[string]interface{}{models.ColVykon: 4}}},
		Unsaved: true,
	}}
	h := NewSessionHandler(svc, "", "")

	c, w := newGinContext(http.MethodGet, "/changes", nil)
	withSession(c)
	h.Changes(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rows":[{"key":"u1|2024|1","fields":{"VYKON":4}}],"unsaved":true}`, string(decodeEnvelope(t, w).Data))
}
