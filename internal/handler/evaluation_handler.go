package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/service"
	"github.com/noah-isme/sman-go-api/internal/utils"
)

// EvaluationHandler exposes the peer-evaluation aggregator endpoints.
type EvaluationHandler struct {
	service   service.EvaluationService
	custom    service.CustomSubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(svc service.EvaluationService, custom service.CustomSubmissionService, validate *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:   svc,
		custom:    custom,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/open", h.open)
	router.Get("/status", h.status)
	router.Patch("/:id/score", h.setScore)
	router.Patch("/:id/save", h.save)
	router.Post("/:id/submit", h.submit)
	router.Post("/custom/submit", h.submitFile)
}

func (h *EvaluationHandler) open(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.EvaluationOpenRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.Open(c.Context(), payload, evaluatorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation opened", state)
}

func (h *EvaluationHandler) status(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	query := dto.EvaluationStatusQuery{}
	if phaseID, err := parseQueryUint(c, "phase_id"); err == nil && phaseID != nil {
		query.PhaseID = *phaseID
	}
	if groupID, err := parseQueryUint(c, "group_id"); err == nil && groupID != nil {
		query.GroupID = *groupID
	}

	status, err := h.service.Status(c.Context(), query, evaluatorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation status", status)
}

func (h *EvaluationHandler) setScore(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.SetScore(c.Context(), id, evaluatorID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score recorded", state)
}

func (h *EvaluationHandler) save(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.Save(c.Context(), id, evaluatorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation saved", state)
}

func (h *EvaluationHandler) submit(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.Submit(c.Context(), id, evaluatorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation submitted", state)
}

func (h *EvaluationHandler) submitFile(c *fiber.Ctx) error {
	evaluatorID := userIDFromContext(c)
	if evaluatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.CustomSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.custom.SubmitFile(c.Context(), payload, evaluatorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "file submitted", result)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrPhaseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "phase not found")
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "group not found")
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrNotGroupMember):
		return utils.SendError(c, fiber.StatusForbidden, "not a member of this group")
	case errors.Is(err, service.ErrEvaluationReadOnly):
		return utils.SendError(c, fiber.StatusConflict, "evaluation is read-only")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, "evaluation already submitted")
	case errors.Is(err, service.ErrNothingToSubmit):
		return utils.SendError(c, fiber.StatusBadRequest, "no scores entered yet")
	case errors.Is(err, service.ErrUnknownMember):
		return utils.SendError(c, fiber.StatusBadRequest, "member is not in the evaluable roster")
	case errors.Is(err, service.ErrUnknownCriterion):
		return utils.SendError(c, fiber.StatusBadRequest, "unknown criterion")
	case errors.Is(err, service.ErrCustomPhase):
		return utils.SendError(c, fiber.StatusBadRequest, "phase takes a file submission")
	case errors.Is(err, service.ErrNotCustomPhase):
		return utils.SendError(c, fiber.StatusBadRequest, "phase takes per-criterion scores")
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds the size limit")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
