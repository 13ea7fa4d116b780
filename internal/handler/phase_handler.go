package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/middleware"
	"github.com/noah-isme/sman-go-api/internal/service"
	"github.com/noah-isme/sman-go-api/internal/utils"
)

// PhaseHandler manages phase and criteria endpoints.
type PhaseHandler struct {
	service   service.PhaseService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPhaseHandler builds a phase handler instance.
func NewPhaseHandler(svc service.PhaseService, validate *validator.Validate, logger zerolog.Logger) *PhaseHandler {
	return &PhaseHandler{
		service:   svc,
		validator: validate,
		logger:    logger.With().Str("component", "phase_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *PhaseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/criteria", h.listCriteria)
	router.Post("", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleProfessor}))
	router.Delete("/:id", middleware.WithAuth(h.delete, middleware.AuthOptions{Role: middleware.AuthRoleProfessor}))
}

func (h *PhaseHandler) list(c *fiber.Ctx) error {
	filter := dto.PhaseFilter{Sort: c.Query("sort")}
	if projectID, err := parseQueryUint(c, "project_id"); err == nil && projectID != nil {
		filter.ProjectID = projectID
	}
	if kind := c.Query("kind"); kind != "" {
		filter.Kind = &kind
	}

	phases, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "phases retrieved", phases)
}

func (h *PhaseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	phase, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "phase retrieved", phase)
}

func (h *PhaseHandler) listCriteria(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	criteria, err := h.service.ListCriteria(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria retrieved", criteria)
}

func (h *PhaseHandler) create(c *fiber.Ctx) error {
	var payload dto.PhaseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	phase, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "phase created", phase)
}

func (h *PhaseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "phase deleted", nil)
}

func (h *PhaseHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrPhaseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "phase not found")
	case errors.Is(err, service.ErrCriteriaLocked):
		return utils.SendError(c, fiber.StatusConflict, "evaluations exist for this phase")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
