package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// GroupRepository defines persistence operations for project groups.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (models.Group, error)
	GetByJoinCode(ctx context.Context, code string) (models.Group, error)
	ListByProject(ctx context.Context, projectID uint) ([]models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	AddMember(ctx context.Context, member *models.GroupMember) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository instantiates a GORM-backed repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Group{}).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Preload("Members.Student")
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.baseQuery(ctx).First(&group, id).Error; err != nil {
		return models.Group{}, err
	}

	return group, nil
}

func (r *groupRepository) GetByJoinCode(ctx context.Context, code string) (models.Group, error) {
	var group models.Group
	if err := r.baseQuery(ctx).Where("join_code = ?", code).First(&group).Error; err != nil {
		return models.Group{}, err
	}

	return group, nil
}

func (r *groupRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := r.baseQuery(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) AddMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}
