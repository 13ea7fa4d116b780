package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// PhaseFilter narrows phase listings.
type PhaseFilter struct {
	ProjectID *uint
	Kind      *string
	Sort      string
}

// PhaseRepository defines persistence operations for phases and criteria.
type PhaseRepository interface {
	List(ctx context.Context, filter PhaseFilter) ([]models.Phase, error)
	GetByID(ctx context.Context, id uint) (models.Phase, error)
	Create(ctx context.Context, phase *models.Phase) error
	Update(ctx context.Context, phase *models.Phase) error
	Delete(ctx context.Context, id uint) error
	ListCriteria(ctx context.Context, phaseID uint) ([]models.Criterion, error)
}

type phaseRepository struct {
	db *gorm.DB
}

// NewPhaseRepository instantiates a GORM-backed repository.
func NewPhaseRepository(db *gorm.DB) PhaseRepository {
	return &phaseRepository{db: db}
}

func (r *phaseRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Phase{}).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

func (r *phaseRepository) List(ctx context.Context, filter PhaseFilter) ([]models.Phase, error) {
	query := r.baseQuery(ctx)

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}

	if filter.Kind != nil {
		query = query.Where("evaluation_kind = ?", *filter.Kind)
	}

	var phases []models.Phase
	if err := query.Order(normalizePhaseSort(filter.Sort)).Find(&phases).Error; err != nil {
		return nil, err
	}

	return phases, nil
}

func (r *phaseRepository) GetByID(ctx context.Context, id uint) (models.Phase, error) {
	var phase models.Phase
	if err := r.baseQuery(ctx).First(&phase, id).Error; err != nil {
		return models.Phase{}, err
	}

	return phase, nil
}

func (r *phaseRepository) Create(ctx context.Context, phase *models.Phase) error {
	return r.db.WithContext(ctx).Create(phase).Error
}

func (r *phaseRepository) Update(ctx context.Context, phase *models.Phase) error {
	return r.db.WithContext(ctx).Save(phase).Error
}

func (r *phaseRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Phase{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *phaseRepository) ListCriteria(ctx context.Context, phaseID uint) ([]models.Criterion, error) {
	var criteria []models.Criterion
	if err := r.db.WithContext(ctx).
		Where("phase_id = ?", phaseID).
		Order("position ASC, id ASC").
		Find(&criteria).Error; err != nil {
		return nil, err
	}

	return criteria, nil
}

func normalizePhaseSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "-due_date", "due_date:desc", "due_date.desc":
		return "due_date DESC"
	case "name", "name:asc", "name.asc":
		return "name ASC"
	case "-name", "name:desc", "name.desc":
		return "name DESC"
	default:
		return "due_date ASC"
	}
}
