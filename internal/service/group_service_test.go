package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

func newGroupService(t *testing.T) (GroupService, *models.Student) {
	t.Helper()

	db := openTestDB(t)
	leader := models.Student{ID: 1, FirstName: "Lia", LastName: "Martins", Email: "lia@example.com"}
	require.NoError(t, db.Create(&leader).Error)
	joiner := models.Student{ID: 2, FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"}
	require.NoError(t, db.Create(&joiner).Error)

	svc := NewGroupService(
		repository.NewGroupRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	return svc, &leader
}

func TestGroupCreateAddsLeaderAndJoinCode(t *testing.T) {
	svc, leader := newGroupService(t)

	group, err := svc.Create(context.Background(), dto.GroupCreateRequest{
		ProjectID: 1,
		Name:      "Team Rocket",
	}, leader.ID)
	require.NoError(t, err)
	require.Len(t, group.JoinCode, 8)
	require.Len(t, group.Members, 1)
	require.True(t, group.Members[0].IsLeader)
	require.Equal(t, leader.ID, group.Members[0].StudentID)
}

func TestGroupJoinByCode(t *testing.T) {
	svc, leader := newGroupService(t)

	group, err := svc.Create(context.Background(), dto.GroupCreateRequest{
		ProjectID: 1,
		Name:      "Team Rocket",
	}, leader.ID)
	require.NoError(t, err)

	joined, err := svc.Join(context.Background(), dto.GroupJoinRequest{JoinCode: group.JoinCode}, 2)
	require.NoError(t, err)
	require.Len(t, joined.Members, 2)

	// Joining twice is rejected.
	_, err = svc.Join(context.Background(), dto.GroupJoinRequest{JoinCode: group.JoinCode}, 2)
	require.ErrorIs(t, err, ErrAlreadyMember)

	// An unknown code surfaces as group not found.
	_, err = svc.Join(context.Background(), dto.GroupJoinRequest{JoinCode: "nope1234"}, 2)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
