package handler_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/config"
	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/handler"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
	"github.com/noah-isme/sman-go-api/internal/router"
	"github.com/noah-isme/sman-go-api/internal/service"
)

func setupPhaseApp(t *testing.T, role string) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openHandlerDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	phaseService := service.NewPhaseService(
		repository.NewPhaseRepository(db),
		repository.NewEvaluationRepository(db),
		validate,
		logger,
	)

	app := fiber.New()
	phaseHandler := handler.NewPhaseHandler(phaseService, validate, logger)

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		PhaseHandler:  phaseHandler,
		JWTMiddleware: stubAuth(1, role),
	})

	return app, db
}

func TestPhaseCreateRequiresProfessorRole(t *testing.T) {
	payload := dto.PhaseCreateRequest{
		ProjectID:   1,
		Name:        "Sprint Review",
		TotalPoints: 15,
		Criteria: []dto.CriterionCreateRequest{
			{Name: "Contribution", MaxPoints: 5},
		},
	}

	studentApp, _ := setupPhaseApp(t, "student")
	response, _ := doJSON(t, studentApp, fiber.MethodPost, "/api/v2/phases", payload)
	require.Equal(t, fiber.StatusForbidden, response.StatusCode)

	professorApp, _ := setupPhaseApp(t, "professor")
	response, envelope := doJSON(t, professorApp, fiber.MethodPost, "/api/v2/phases", payload)
	require.Equal(t, fiber.StatusCreated, response.StatusCode)
	require.True(t, envelope.Success)
}

func TestPhaseListAndGet(t *testing.T) {
	app, db := setupPhaseApp(t, "student")

	phase := models.Phase{
		ProjectID:      1,
		Name:           "Sprint Review",
		EvaluationKind: models.PhaseEvaluationScored,
		Criteria:       []models.Criterion{{Name: "Contribution", MaxPoints: 5}},
	}
	require.NoError(t, db.Create(&phase).Error)

	response, envelope := doJSON(t, app, fiber.MethodGet, "/api/v2/phases?project_id=1", nil)
	require.Equal(t, fiber.StatusOK, response.StatusCode)
	require.True(t, envelope.Success)

	response, _ = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v2/phases/%d", phase.ID), nil)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	response, _ = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v2/phases/%d/criteria", phase.ID), nil)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	response, _ = doJSON(t, app, fiber.MethodGet, "/api/v2/phases/999", nil)
	require.Equal(t, fiber.StatusNotFound, response.StatusCode)
}

func TestPhaseDeleteConflictsWithEvaluations(t *testing.T) {
	app, db := setupPhaseApp(t, "professor")

	phase := models.Phase{ProjectID: 1, Name: "Sprint Review", EvaluationKind: models.PhaseEvaluationScored}
	require.NoError(t, db.Create(&phase).Error)
	require.NoError(t, db.Create(&models.EvaluationSubmission{
		PhaseID:     phase.ID,
		GroupID:     1,
		ProjectID:   1,
		EvaluatorID: 1,
		Status:      models.EvaluationStatusInProgress,
	}).Error)

	response, _ := doJSON(t, app, fiber.MethodDelete, fmt.Sprintf("/api/v2/phases/%d", phase.ID), nil)
	require.Equal(t, fiber.StatusConflict, response.StatusCode)
}
