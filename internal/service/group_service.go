package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

// ErrAlreadyMember indicates a join attempt by an existing member.
var ErrAlreadyMember = errors.New("student already belongs to the group")

// GroupService manages project groups and membership.
type GroupService interface {
	Get(ctx context.Context, id uint) (dto.GroupResponse, error)
	ListByProject(ctx context.Context, projectID uint) ([]dto.GroupResponse, error)
	Create(ctx context.Context, payload dto.GroupCreateRequest, leaderID uint) (dto.GroupResponse, error)
	Join(ctx context.Context, payload dto.GroupJoinRequest, studentID uint) (dto.GroupResponse, error)
}

type groupService struct {
	groups    repository.GroupRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGroupService constructs a GroupService instance.
func NewGroupService(groups repository.GroupRepository, validate *validator.Validate, logger zerolog.Logger) GroupService {
	return &groupService{
		groups:    groups,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "group_service").Logger(),
		now:       time.Now,
	}
}

func (s *groupService) Get(ctx context.Context, id uint) (dto.GroupResponse, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, ErrGroupNotFound
		}
		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(group), nil
}

func (s *groupService) ListByProject(ctx context.Context, projectID uint) ([]dto.GroupResponse, error) {
	groups, err := s.groups.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return dto.NewGroupResponseSlice(groups), nil
}

func (s *groupService) Create(ctx context.Context, payload dto.GroupCreateRequest, leaderID uint) (dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, err
	}

	group := models.Group{
		ProjectID: payload.ProjectID,
		Name:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Name)),
		JoinCode:  newJoinCode(),
	}

	if err := s.groups.Create(ctx, &group); err != nil {
		return dto.GroupResponse{}, err
	}

	member := models.GroupMember{
		GroupID:   group.ID,
		StudentID: leaderID,
		IsLeader:  true,
		JoinedAt:  s.now(),
	}
	if err := s.groups.AddMember(ctx, &member); err != nil {
		return dto.GroupResponse{}, err
	}

	created, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	s.logger.Info().Uint("group_id", group.ID).Msg("group created")

	return dto.NewGroupResponse(created), nil
}

func (s *groupService) Join(ctx context.Context, payload dto.GroupJoinRequest, studentID uint) (dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, err
	}

	group, err := s.groups.GetByJoinCode(ctx, strings.ToLower(strings.TrimSpace(payload.JoinCode)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, ErrGroupNotFound
		}
		return dto.GroupResponse{}, err
	}

	if group.HasMember(studentID) {
		return dto.GroupResponse{}, ErrAlreadyMember
	}

	member := models.GroupMember{
		GroupID:   group.ID,
		StudentID: studentID,
		JoinedAt:  s.now(),
	}
	if err := s.groups.AddMember(ctx, &member); err != nil {
		return dto.GroupResponse{}, err
	}

	joined, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	s.logger.Info().Uint("group_id", group.ID).Uint("student_id", studentID).Msg("student joined group")

	return dto.NewGroupResponse(joined), nil
}

// newJoinCode derives a short shareable code from a fresh UUID.
func newJoinCode() string {
	id := uuid.NewString()
	return strings.ToLower(strings.ReplaceAll(id, "-", "")[:8])
}
