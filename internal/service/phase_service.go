package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

// ErrCriteriaLocked indicates criteria edits after an evaluation was opened.
var ErrCriteriaLocked = errors.New("criteria are immutable once evaluations exist")

// PhaseService manages phase and criteria definitions.
type PhaseService interface {
	List(ctx context.Context, filter dto.PhaseFilter) ([]dto.PhaseResponse, error)
	Get(ctx context.Context, id uint) (dto.PhaseResponse, error)
	Create(ctx context.Context, payload dto.PhaseCreateRequest) (dto.PhaseResponse, error)
	Delete(ctx context.Context, id uint) error
	ListCriteria(ctx context.Context, phaseID uint) ([]dto.CriterionResponse, error)
}

type phaseService struct {
	phases      repository.PhaseRepository
	evaluations repository.EvaluationRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPhaseService constructs a PhaseService instance.
func NewPhaseService(phases repository.PhaseRepository, evaluations repository.EvaluationRepository, validate *validator.Validate, logger zerolog.Logger) PhaseService {
	return &phaseService{
		phases:      phases,
		evaluations: evaluations,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "phase_service").Logger(),
		now:         time.Now,
	}
}

func (s *phaseService) List(ctx context.Context, filter dto.PhaseFilter) ([]dto.PhaseResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	phases, err := s.phases.List(ctx, repository.PhaseFilter{
		ProjectID: filter.ProjectID,
		Kind:      filter.Kind,
		Sort:      filter.Sort,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPhaseResponseSlice(phases), nil
}

func (s *phaseService) Get(ctx context.Context, id uint) (dto.PhaseResponse, error) {
	phase, err := s.phases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PhaseResponse{}, ErrPhaseNotFound
		}
		return dto.PhaseResponse{}, err
	}

	return dto.NewPhaseResponse(phase), nil
}

func (s *phaseService) Create(ctx context.Context, payload dto.PhaseCreateRequest) (dto.PhaseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PhaseResponse{}, err
	}

	kind := payload.EvaluationKind
	if kind == "" {
		kind = models.PhaseEvaluationScored
	}

	phase := models.Phase{
		ProjectID:      payload.ProjectID,
		Name:           s.clean(payload.Name),
		Description:    s.clean(payload.Description),
		EvaluationKind: kind,
		AvailableFrom:  payload.AvailableFrom,
		DueDate:        payload.DueDate,
		TotalPoints:    payload.TotalPoints,
	}

	for position, criterion := range payload.Criteria {
		phase.Criteria = append(phase.Criteria, models.Criterion{
			Name:        s.clean(criterion.Name),
			Description: s.clean(criterion.Description),
			MaxPoints:   criterion.MaxPoints,
			Position:    position,
		})
	}

	if err := s.phases.Create(ctx, &phase); err != nil {
		return dto.PhaseResponse{}, err
	}

	s.logger.Info().Uint("phase_id", phase.ID).Int("criteria", len(phase.Criteria)).Msg("phase created")

	return dto.NewPhaseResponse(phase), nil
}

func (s *phaseService) Delete(ctx context.Context, id uint) error {
	count, err := s.evaluations.CountForPhase(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCriteriaLocked
	}

	if err := s.phases.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhaseNotFound
		}
		return err
	}

	return nil
}

func (s *phaseService) ListCriteria(ctx context.Context, phaseID uint) ([]dto.CriterionResponse, error) {
	if _, err := s.phases.GetByID(ctx, phaseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}

	criteria, err := s.phases.ListCriteria(ctx, phaseID)
	if err != nil {
		return nil, err
	}

	return dto.NewCriterionResponseSlice(criteria), nil
}

func (s *phaseService) clean(input string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(input))
}
