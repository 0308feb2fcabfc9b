package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type filterRepository interface {
	ListByCreator(ctx context.Context, creator string) ([]models.SavedFilter, error)
	Upsert(ctx context.Context, filter models.SavedFilter) error
}

type activityRecorder interface {
	Record(sessionID, actor string, eventType models.ActivityEventType, message string, data interface{})
}

// FilterService manages grid filters saved per user.
type FilterService struct {
	repo      filterRepository
	events    activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFilterService constructs a FilterService.
func NewFilterService(repo filterRepository, events activityRecorder, validate *validator.Validate, logger *zap.Logger) *FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FilterService{repo: repo, events: events, validator: validate, logger: logger, now: time.Now}
}

// List returns the filters saved by creator. Entries whose stored model
// cannot be decoded are skipped.
func (s *FilterService) List(ctx context.Context, creator string) ([]dto.FilterResponse, error) {
	saved, err := s.repo.ListByCreator(ctx, models.NormalizeEmail(creator))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load saved filters")
	}
	out := make([]dto.FilterResponse, 0, len(saved))
	for _, f := range saved {
		model, err := f.Model()
		if err != nil {
			s.logger.Warn("skipping unreadable saved filter", zap.String("name", f.Name), zap.String("creator", f.Creator), zap.Error(err))
			continue
		}
		out = append(out, dto.FilterResponse{Name: f.Name, Model: model})
	}
	return out, nil
}

// Resolve returns the model of one saved filter.
func (s *FilterService) Resolve(ctx context.Context, creator, name string) (models.FilterModel, error) {
	filters, err := s.List(ctx, creator)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		if f.Name == name {
			return f.Model, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "saved filter not found")
}

// Save creates or replaces the filter named req.Name for creator.
func (s *FilterService) Save(ctx context.Context, sessionID, creator string, req dto.SaveFilterRequest) (*dto.FilterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter payload")
	}
	encoded, err := json.Marshal(req.Model)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "filter model is not serialisable")
	}
	filter := models.SavedFilter{
		Name:           req.Name,
		Creator:        models.NormalizeEmail(creator),
		FilteredValues: string(encoded),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save filter")
	}
	if s.events != nil {
		s.events.Record(sessionID, filter.Creator, models.EventFilterSaved, "Filter saved", map[string]interface{}{"name": filter.Name})
	}
	return &dto.FilterResponse{Name: filter.Name, Model: req.Model}, nil
}
