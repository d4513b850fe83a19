package settings

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/repository"
)

type SettingsUseCase interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

type Cache interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	SetSettings(ctx context.Context, settings domain.Settings) error
	Invalidate(ctx context.Context) error
}

type SettingsService struct {
	repo   repository.SettingsRepository
	cache  Cache
	logger logrus.FieldLogger
}

func NewSettingsService(repo repository.SettingsRepository, cache Cache, logger logrus.FieldLogger) *SettingsService {
	return &SettingsService{repo: repo, cache: cache, logger: logger}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSettings(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("settings cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	settings, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Settings{}, apperr.NotFound("settings not found")
	}
	if err != nil {
		return domain.Settings{}, apperr.Internal(err)
	}

	if s.cache != nil {
		if err := s.cache.SetSettings(ctx, settings); err != nil {
			s.logger.WithError(err).Warn("settings cache write failed")
		}
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if settings.MaxTimeSlots < 1 {
		return domain.Settings{}, apperr.Validation("max_time_slots must be at least 1", nil)
	}
	if !settings.RoutePlanningDeadline.IsZero() && !settings.FinalDeadline.IsZero() &&
		settings.FinalDeadline.Before(settings.RoutePlanningDeadline) {
		return domain.Settings{}, apperr.Validation("final_deadline must not be before route_planning_deadline", nil)
	}

	if err := s.repo.Update(ctx, settings); err != nil {
		return domain.Settings{}, apperr.Internal(err)
	}
	// Capacities depend on max_time_slots, so cached slots go too.
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("cache invalidation failed")
		}
	}
	return settings, nil
}

var _ SettingsUseCase = (*SettingsService)(nil)
