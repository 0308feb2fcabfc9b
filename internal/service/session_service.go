package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type datasetLoader interface {
	Load(ctx context.Context) (*models.EvaluationDataset, error)
	Save(ctx context.Context, sess *models.Session) (*models.SaveResult, error)
}

type rowLocker interface {
	Lock(ctx context.Context, sess *models.Session, view []models.EvaluationRecord) (*models.SaveResult, error)
}

type filterResolver interface {
	Resolve(ctx context.Context, creator, name string) (models.FilterModel, error)
}

type identityResolver interface {
	Resolve(rolesHeader, emailHeader string, actAs *models.Impersonation) (Identity, error)
}

type tokenIssuer interface {
	Issue(sess *models.Session) (string, time.Time, error)
}

// SessionServiceConfig tunes session behaviour.
type SessionServiceConfig struct {
	TTL time.Duration
}

// SessionServiceParams groups constructor dependencies.
type SessionServiceParams struct {
	Store      sessionStore
	Identity   identityResolver
	Tokens     tokenIssuer
	Reconciler datasetLoader
	Locker     rowLocker
	Filters    filterResolver
	Scope      *ScopeService
	Policy     *EditPolicy
	Detector   *EditDetector
	Events     activityEmitter
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     SessionServiceConfig

	// Permissions gates grid edits per role. Optional.
	Permissions permissionChecker
}

// SessionService drives the editing workflow of one user session: loading,
// viewing, render diffing, saving and locking.
type SessionService struct {
	store      sessionStore
	identity   identityResolver
	tokens     tokenIssuer
	reconciler datasetLoader
	locker     rowLocker
	filters    filterResolver
	scope      *ScopeService
	policy     *EditPolicy
	detector   *EditDetector
	events     activityEmitter
	perms      permissionChecker
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SessionServiceConfig
	locks      *sessionLocks
	now        func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(params SessionServiceParams) *SessionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	scope := params.Scope
	if scope == nil {
		scope = NewScopeService(logger)
	}
	policy := params.Policy
	if policy == nil {
		policy = NewEditPolicy(DefaultLockGrace, nil)
	}
	detector := params.Detector
	if detector == nil {
		detector = NewEditDetector()
	}
	cfg := params.Config
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	return &SessionService{
		store:      params.Store,
		identity:   params.Identity,
		tokens:     params.Tokens,
		reconciler: params.Reconciler,
		locker:     params.Locker,
		filters:    params.Filters,
		scope:      scope,
		policy:     policy,
		detector:   detector,
		events:     params.Events,
		perms:      params.Permissions,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		locks:      newSessionLocks(),
		now:        time.Now,
	}
}

// Create resolves the caller's identity, loads the dataset and opens a new
// session addressed by the returned token.
func (s *SessionService) Create(ctx context.Context, rolesHeader, emailHeader string, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if req.ActAs != nil {
		if err := s.validator.Struct(req.ActAs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid impersonation payload")
		}
	}
	identity, err := s.identity.Resolve(rolesHeader, emailHeader, req.ActAs)
	if err != nil {
		return nil, err
	}

	dataset, err := s.reconciler.Load(ctx)
	if err != nil {
		return nil, err
	}
	sess := models.NewSession(uuid.NewString(), identity.Email, identity.Role, dataset, s.now())
	sess.Actor = identity.Actor

	periods := []string{}
	if scoped, err := s.scope.Scope(dataset.Records, sess.Role, sess.Email); err == nil {
		periods = models.NewEvaluationDataset(scoped).Periods()
	} else if !errors.Is(err, appErrors.ErrEmptyScope) {
		return nil, err
	}

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue session token")
	}

	s.metrics.SessionStarted()
	s.emit(sess, models.EventSessionStarted, "Session started", map[string]interface{}{"role": sess.Role, "actor": sess.Actor})
	s.emit(sess, models.EventTableRead, "Evaluation table loaded", map[string]interface{}{"rows": dataset.Len()})
	s.logger.Info("session created", zap.String("session_id", sess.ID), zap.String("role", string(sess.Role)), zap.String("email", sess.Email), zap.Int("rows", dataset.Len()))

	resp := &dto.SessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		Email:     sess.Email,
		Role:      sess.Role,
		Actor:     sess.Actor,
		Periods:   periods,
	}
	if len(periods) > 0 {
		resp.Period = periods[0]
	}
	resp.GridKey = GridKey(sess, models.ViewQuery{Period: resp.Period})
	return resp, nil
}

// Grid returns the display rows of a view with pending edits overlaid. An
// empty view comes back together with ErrEmptyView.
func (s *SessionService) Grid(ctx context.Context, sessionID string, query models.ViewQuery) (*models.GridView, error) {
	var (
		view    *models.GridView
		warning error
	)
	err := s.withSession(ctx, sessionID, false, func(sess *models.Session) error {
		rows, err := s.view(ctx, sess, query, true)
		if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
			return err
		}
		warning = err
		view = s.display(sess, query, rows)
		if scoped, err := s.scope.Scope(sess.Dataset.Records, sess.Role, sess.Email); err == nil {
			view.Periods = models.NewEvaluationDataset(scoped).Periods()
		}
		s.emit(sess, models.EventQuery, "Grid view queried", map[string]interface{}{
			"period": query.Period,
			"filter": query.FilterName,
			"team":   query.TeamOnly,
			"rows":   len(rows),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, warning
}

// Render compares the table as the grid rendered it with the session
// baseline, drops edits the role may not make and folds the rest into the
// pending change set.
func (s *SessionService) Render(ctx context.Context, sessionID string, req dto.RenderRequest) (*models.RenderResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid render payload")
	}
	var result *models.RenderResult
	err := s.withSession(ctx, sessionID, true, func(sess *models.Session) error {
		detection, err := s.detector.Detect(req.Rows, sess.Baseline)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rendered table is malformed")
		}

		accepted, rejected := s.screen(sess, detection.Diff)
		// Rejected cells keep their previous baseline value.
		for _, r := range rejected {
			before := sess.Baseline[r.Key]
			value, _ := models.EvaluationSchema.Get(&before, r.Column)
			rendered := detection.Rendered[r.Key]
			_ = models.EvaluationSchema.Set(&rendered, r.Column, value)
			detection.Rendered[r.Key] = rendered
		}
		for key, rendered := range detection.Rendered {
			sess.Baseline[key] = rendered
		}
		sess.Accumulate(accepted)
		sess.UpdatedAt = s.now()

		s.metrics.RecordEdits(sess.Role, countFields(accepted), len(rejected))
		if len(rejected) > 0 {
			s.logger.Warn("edits rejected by policy", zap.String("session_id", sess.ID), zap.Int("rejected", len(rejected)))
		}
		result = &models.RenderResult{
			Diff:        accepted,
			Rejected:    rejected,
			PendingRows: sess.Changes.Len(),
			Unsaved:     sess.Unsaved,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Changes returns a copy of the pending change set.
func (s *SessionService) Changes(ctx context.Context, sessionID string) (*dto.ChangesResponse, error) {
	var resp *dto.ChangesResponse
	err := s.withSession(ctx, sessionID, false, func(sess *models.Session) error {
		resp = &dto.ChangesResponse{Rows: sess.Changes.Clone().Rows, Unsaved: sess.Unsaved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Discard drops the pending change set and resets the baseline to the
// loaded dataset so the grid can be re-rendered from scratch.
func (s *SessionService) Discard(ctx context.Context, sessionID string) error {
	return s.withSession(ctx, sessionID, true, func(sess *models.Session) error {
		sess.ClearChanges()
		sess.Rebase(sess.Dataset, s.now())
		sess.InvalidateGrid(s.now())
		return nil
	})
}

// Save writes the pending change set through the reconciliation engine.
func (s *SessionService) Save(ctx context.Context, sessionID string) (*models.SaveResult, error) {
	var result *models.SaveResult
	err := s.withSession(ctx, sessionID, true, func(sess *models.Session) error {
		res, err := s.reconciler.Save(ctx, sess)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Lock locks every row of the selected view.
func (s *SessionService) Lock(ctx context.Context, sessionID string, query models.ViewQuery) (*models.SaveResult, error) {
	var result *models.SaveResult
	err := s.withSession(ctx, sessionID, true, func(sess *models.Session) error {
		view, err := s.view(ctx, sess, query, false)
		if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
			return err
		}
		res, err := s.locker.Lock(ctx, sess, view)
		if err != nil {
			return err
		}
		res.GridKey = GridKey(sess, query)
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ViewSnapshot is a read-only picture of a session's current view.
type ViewSnapshot struct {
	Session *models.Session
	// Scoped holds every row the role may see, pending edits applied.
	Scoped []models.EvaluationRecord
	// View narrows Scoped to the query.
	View []models.EvaluationRecord
}

// Snapshot resolves a view for charts and exports. Pending edits are
// included. An empty view is returned together with ErrEmptyView.
func (s *SessionService) Snapshot(ctx context.Context, sessionID string, query models.ViewQuery) (*ViewSnapshot, error) {
	var (
		snap    *ViewSnapshot
		warning error
	)
	err := s.withSession(ctx, sessionID, false, func(sess *models.Session) error {
		scoped, err := s.scope.Scope(s.pendingRecords(sess), sess.Role, sess.Email)
		if err != nil {
			return err
		}
		view, err := s.view(ctx, sess, query, true)
		if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
			return err
		}
		warning = err
		snap = &ViewSnapshot{Session: sess, Scoped: scoped, View: view}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, warning
}

// GridKey identifies the grid instance a client should render. It changes
// with the view selection and whenever the session invalidates the grid.
func GridKey(sess *models.Session, query models.ViewQuery) string {
	var b strings.Builder
	b.WriteString("editable_grid_")
	b.WriteString(query.Period)
	b.WriteString("_")
	b.WriteString(query.FilterName)
	if query.TeamOnly && sess.Role == models.RoleMA {
		b.WriteString("_team_view")
	}
	b.WriteString(sess.GridToken)
	return b.String()
}

func (s *SessionService) view(ctx context.Context, sess *models.Session, query models.ViewQuery, pending bool) ([]models.EvaluationRecord, error) {
	var filter models.FilterModel
	if query.FilterName != "" && s.filters != nil {
		model, err := s.filters.Resolve(ctx, sess.Email, query.FilterName)
		if err != nil {
			return nil, err
		}
		filter = model
	}
	records := sess.Dataset.Records
	if pending {
		records = s.pendingRecords(sess)
	}
	return s.scope.View(records, sess.Role, sess.Email, query, filter)
}

func (s *SessionService) pendingRecords(sess *models.Session) []models.EvaluationRecord {
	out := make([]models.EvaluationRecord, len(sess.Dataset.Records))
	for i, rec := range sess.Dataset.Records {
		out[i] = sess.Pending(rec)
	}
	return out
}

func (s *SessionService) display(sess *models.Session, query models.ViewQuery, rows []models.EvaluationRecord) *models.GridView {
	view := &models.GridView{
		GridKey:         GridKey(sess, query),
		Period:          query.Period,
		Periods:         sess.Dataset.Periods(),
		EditableColumns: append([]string(nil), models.EditableColumns...),
		Rows:            make([]models.DisplayRow, 0, len(rows)),
		Unsaved:         sess.Unsaved,
		PendingRows:     sess.Changes.Len(),
	}
	for _, rec := range rows {
		loaded, ok := sess.Dataset.Get(rec.Key())
		if !ok {
			loaded = rec
		}
		view.Rows = append(view.Rows, models.DisplayRow{
			Key:          rec.Key(),
			Editable:     s.policy.RowEditable(loaded, sess.Role, sess.Email),
			LockEditable: s.policy.LockEditable(loaded, sess.Role),
			Values:       models.GridRow(models.EvaluationSchema.Map(rec)),
		})
	}
	return view
}

// screen splits a detected diff into edits the session's role may make and
// rejected cells. Permissions are judged on the row as loaded.
func (s *SessionService) screen(sess *models.Session, diff []models.RowPatch) ([]models.RowPatch, []models.RejectedEdit) {
	accepted := make([]models.RowPatch, 0, len(diff))
	var rejected []models.RejectedEdit
	if s.perms != nil {
		if err := s.perms.Authorize(sess.Role, ObjectGrid, ActionEdit); err != nil {
			for _, patch := range diff {
				for _, column := range patch.Columns() {
					rejected = append(rejected, models.RejectedEdit{Key: patch.Key, Column: column, Reason: "role may not edit the grid"})
				}
			}
			return accepted, rejected
		}
	}
	for _, patch := range diff {
		rec, ok := sess.Dataset.Get(patch.Key)
		if !ok {
			rec = sess.Baseline[patch.Key]
		}
		fields := make(map[string]interface{}, len(patch.Fields))
		for _, column := range patch.Columns() {
			allowed, reason := s.policy.CellEditable(rec, column, sess.Role, sess.Email)
			if !allowed {
				rejected = append(rejected, models.RejectedEdit{Key: patch.Key, Column: column, Reason: reason})
				continue
			}
			fields[column] = patch.Fields[column]
		}
		if len(fields) > 0 {
			accepted = append(accepted, models.RowPatch{Key: patch.Key, Fields: fields})
		}
	}
	return accepted, rejected
}

func (s *SessionService) withSession(ctx context.Context, sessionID string, write bool, fn func(sess *models.Session) error) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	start := time.Now()
	sess, err := s.store.Get(ctx, sessionID)
	s.metrics.RecordSessionLookup(err == nil, time.Since(start))
	if err != nil {
		return err
	}
	fnErr := fn(sess)
	if !write {
		return fnErr
	}
	// fn may have rebased sess before failing.
	if err := s.persist(ctx, sess); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

func (s *SessionService) persist(ctx context.Context, sess *models.Session) error {
	start := time.Now()
	err := s.store.Save(ctx, sess, s.cfg.TTL)
	s.metrics.ObserveSessionWrite(time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}
	return nil
}

func (s *SessionService) emit(sess *models.Session, eventType models.ActivityEventType, message string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Emit(sess, eventType, message, data)
}

func countFields(patches []models.RowPatch) int {
	total := 0
	for _, p := range patches {
		total += len(p.Fields)
	}
	return total
}

// sessionLocks serialises interactions per session id.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
