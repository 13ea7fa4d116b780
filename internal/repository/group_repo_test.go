package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/models"
)

func TestGroupRepoPreloadsMembersInJoinOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	students := []models.Student{
		{ID: 1, FirstName: "Lia", LastName: "Martins", Email: "lia@example.com"},
		{ID: 2, FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

	group := models.Group{ProjectID: 1, Name: "Team Rocket", JoinCode: "abcd1234"}
	require.NoError(t, repo.Create(ctx, &group))

	base := time.Now()
	require.NoError(t, repo.AddMember(ctx, &models.GroupMember{GroupID: group.ID, StudentID: 2, JoinedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.AddMember(ctx, &models.GroupMember{GroupID: group.ID, StudentID: 1, IsLeader: true, JoinedAt: base}))

	loaded, err := repo.GetByID(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 2)
	require.Equal(t, uint(1), loaded.Members[0].StudentID, "ordered by joined_at")
	require.Equal(t, "Ana", loaded.Members[1].Student.FirstName)
}

func TestGroupRepoGetByJoinCode(t *testing.T) {
	db := openTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	group := models.Group{ProjectID: 1, Name: "Team Rocket", JoinCode: "abcd1234"}
	require.NoError(t, repo.Create(ctx, &group))

	found, err := repo.GetByJoinCode(ctx, "abcd1234")
	require.NoError(t, err)
	require.Equal(t, group.ID, found.ID)

	_, err = repo.GetByJoinCode(ctx, "missing1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGroupRepoDuplicateMemberRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Student{ID: 1, FirstName: "Lia", LastName: "Martins", Email: "lia@example.com"}).Error)

	group := models.Group{ProjectID: 1, Name: "Team Rocket", JoinCode: "abcd1234"}
	require.NoError(t, repo.Create(ctx, &group))

	require.NoError(t, repo.AddMember(ctx, &models.GroupMember{GroupID: group.ID, StudentID: 1, JoinedAt: time.Now()}))
	require.Error(t, repo.AddMember(ctx, &models.GroupMember{GroupID: group.ID, StudentID: 1, JoinedAt: time.Now()}))
}
