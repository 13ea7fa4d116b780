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

func TestPhaseCreateSanitizesAndOrdersCriteria(t *testing.T) {
	db := openTestDB(t)
	svc := NewPhaseService(
		repository.NewPhaseRepository(db),
		repository.NewEvaluationRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	created, err := svc.Create(context.Background(), dto.PhaseCreateRequest{
		ProjectID:   1,
		Name:        "<script>alert(1)</script>Sprint Review",
		Description: "Peer scoring",
		TotalPoints: 15,
		Criteria: []dto.CriterionCreateRequest{
			{Name: "Contribution", MaxPoints: 5},
			{Name: "Communication", MaxPoints: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Sprint Review", created.Name)
	require.Equal(t, models.PhaseEvaluationScored, created.EvaluationKind)
	require.Len(t, created.Criteria, 2)
	require.Equal(t, 0, created.Criteria[0].Position)
	require.Equal(t, 1, created.Criteria[1].Position)

	fetched, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)

	criteria, err := svc.ListCriteria(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, criteria, 2)
}

func TestPhaseDeleteBlockedByExistingEvaluations(t *testing.T) {
	db := openTestDB(t)
	phase, group := seedAssignment(t, db)
	svc := NewPhaseService(
		repository.NewPhaseRepository(db),
		repository.NewEvaluationRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	row := models.EvaluationSubmission{
		PhaseID:     phase.ID,
		GroupID:     group.ID,
		ProjectID:   phase.ProjectID,
		EvaluatorID: 1,
		Status:      models.EvaluationStatusInProgress,
	}
	require.NoError(t, db.Create(&row).Error)

	err := svc.Delete(context.Background(), phase.ID)
	require.ErrorIs(t, err, ErrCriteriaLocked)

	// Without evaluations the phase deletes cleanly.
	empty := models.Phase{ProjectID: 1, Name: "Draft", EvaluationKind: models.PhaseEvaluationScored}
	require.NoError(t, db.Create(&empty).Error)
	require.NoError(t, svc.Delete(context.Background(), empty.ID))

	_, err = svc.Get(context.Background(), empty.ID)
	require.ErrorIs(t, err, ErrPhaseNotFound)
}

func TestPhaseGetUnknownID(t *testing.T) {
	db := openTestDB(t)
	svc := NewPhaseService(
		repository.NewPhaseRepository(db),
		repository.NewEvaluationRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	_, err := svc.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrPhaseNotFound)
}
