package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Group{},
		&models.GroupMember{},
		&models.Phase{},
		&models.Criterion{},
		&models.EvaluationSubmission{},
		&models.Notification{},
	))

	return db
}

func seedPhaseAndGroup(t *testing.T, db *gorm.DB) (models.Phase, models.Group) {
	t.Helper()

	phase := models.Phase{
		ProjectID:      1,
		Name:           "Sprint Review",
		EvaluationKind: models.PhaseEvaluationScored,
		Criteria: []models.Criterion{
			{Name: "Contribution", MaxPoints: 5, Position: 1},
			{Name: "Communication", MaxPoints: 10, Position: 0},
		},
	}
	require.NoError(t, db.Create(&phase).Error)

	group := models.Group{ProjectID: 1, Name: "Team Rocket", JoinCode: "abcd1234"}
	require.NoError(t, db.Create(&group).Error)

	return phase, group
}

func TestEvaluationRepoGetByAssignment(t *testing.T) {
	db := openTestDB(t)
	phase, group := seedPhaseAndGroup(t, db)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	row := models.EvaluationSubmission{
		PhaseID:     phase.ID,
		GroupID:     group.ID,
		ProjectID:   1,
		EvaluatorID: 7,
		Status:      models.EvaluationStatusInProgress,
	}
	require.NoError(t, repo.Create(ctx, &row))

	found, err := repo.GetByAssignment(ctx, phase.ID, group.ID, 7)
	require.NoError(t, err)
	require.Equal(t, row.ID, found.ID)

	// The phase and its criteria come preloaded, ordered by position.
	require.Equal(t, phase.ID, found.Phase.ID)
	require.Len(t, found.Phase.Criteria, 2)
	require.Equal(t, "Communication", found.Phase.Criteria[0].Name)

	_, err = repo.GetByAssignment(ctx, phase.ID, group.ID, 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEvaluationRepoUniquePerAssignment(t *testing.T) {
	db := openTestDB(t)
	phase, group := seedPhaseAndGroup(t, db)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	first := models.EvaluationSubmission{PhaseID: phase.ID, GroupID: group.ID, ProjectID: 1, EvaluatorID: 7, Status: models.EvaluationStatusInProgress}
	require.NoError(t, repo.Create(ctx, &first))

	duplicate := models.EvaluationSubmission{PhaseID: phase.ID, GroupID: group.ID, ProjectID: 1, EvaluatorID: 7, Status: models.EvaluationStatusInProgress}
	require.Error(t, repo.Create(ctx, &duplicate))

	// Same evaluator in a different group is fine.
	other := models.Group{ProjectID: 1, Name: "Team Plasma", JoinCode: "efgh5678"}
	require.NoError(t, db.Create(&other).Error)
	second := models.EvaluationSubmission{PhaseID: phase.ID, GroupID: other.ID, ProjectID: 1, EvaluatorID: 7, Status: models.EvaluationStatusInProgress}
	require.NoError(t, repo.Create(ctx, &second))
}

func TestEvaluationRepoListFilters(t *testing.T) {
	db := openTestDB(t)
	phase, group := seedPhaseAndGroup(t, db)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	submitted := models.EvaluationStatusSubmitted
	now := time.Now()
	rows := []models.EvaluationSubmission{
		{PhaseID: phase.ID, GroupID: group.ID, ProjectID: 1, EvaluatorID: 1, Status: models.EvaluationStatusInProgress},
		{PhaseID: phase.ID, GroupID: group.ID, ProjectID: 1, EvaluatorID: 2, Status: submitted, SubmittedAt: &now},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	all, err := repo.List(ctx, EvaluationFilter{PhaseID: &phase.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)

	onlySubmitted, err := repo.List(ctx, EvaluationFilter{Status: &submitted})
	require.NoError(t, err)
	require.Len(t, onlySubmitted, 1)
	require.Equal(t, uint(2), onlySubmitted[0].EvaluatorID)

	count, err := repo.CountForPhase(ctx, phase.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestEvaluationRepoPersistsDocument(t *testing.T) {
	db := openTestDB(t)
	phase, group := seedPhaseAndGroup(t, db)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	doc := models.NewEvaluationData()
	doc.SetScore(2, phase.Criteria[0], "4", time.Now())

	row := models.EvaluationSubmission{PhaseID: phase.ID, GroupID: group.ID, ProjectID: 1, EvaluatorID: 7, Status: models.EvaluationStatusInProgress}
	require.NoError(t, row.SetData(doc))
	require.NoError(t, repo.Create(ctx, &row))

	loaded, err := repo.GetByID(ctx, row.ID)
	require.NoError(t, err)

	restored, err := loaded.Document()
	require.NoError(t, err)
	require.Equal(t, doc.AggregateTotal, restored.AggregateTotal)
	require.Equal(t, 4, restored.EvaluatedMembers[2].Criteria[phase.Criteria[0].ID])
}
