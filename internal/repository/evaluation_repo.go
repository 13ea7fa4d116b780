package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// EvaluationFilter narrows submission queries.
type EvaluationFilter struct {
	PhaseID     *uint
	GroupID     *uint
	EvaluatorID *uint
	Status      *string
}

// EvaluationRepository defines persistence operations for evaluation
// submissions.
type EvaluationRepository interface {
	List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationSubmission, error)
	GetByID(ctx context.Context, id uint) (models.EvaluationSubmission, error)
	GetByAssignment(ctx context.Context, phaseID, groupID, evaluatorID uint) (models.EvaluationSubmission, error)
	Create(ctx context.Context, submission *models.EvaluationSubmission) error
	Update(ctx context.Context, submission *models.EvaluationSubmission) error
	CountForPhase(ctx context.Context, phaseID uint) (int64, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates a GORM-backed repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EvaluationSubmission{}).
		Preload("Phase").
		Preload("Phase.Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationSubmission, error) {
	query := r.baseQuery(ctx)

	if filter.PhaseID != nil {
		query = query.Where("phase_id = ?", *filter.PhaseID)
	}

	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}

	if filter.EvaluatorID != nil {
		query = query.Where("evaluator_id = ?", *filter.EvaluatorID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.EvaluationSubmission
	if err := query.Order("updated_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.EvaluationSubmission, error) {
	var submission models.EvaluationSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.EvaluationSubmission{}, err
	}

	return submission, nil
}

func (r *evaluationRepository) GetByAssignment(ctx context.Context, phaseID, groupID, evaluatorID uint) (models.EvaluationSubmission, error) {
	var submission models.EvaluationSubmission
	if err := r.baseQuery(ctx).
		Where("phase_id = ?", phaseID).
		Where("group_id = ?", groupID).
		Where("evaluator_id = ?", evaluatorID).
		First(&submission).Error; err != nil {
		return models.EvaluationSubmission{}, err
	}

	return submission, nil
}

func (r *evaluationRepository) Create(ctx context.Context, submission *models.EvaluationSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *evaluationRepository) Update(ctx context.Context, submission *models.EvaluationSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *evaluationRepository) CountForPhase(ctx context.Context, phaseID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EvaluationSubmission{}).
		Where("phase_id = ?", phaseID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
