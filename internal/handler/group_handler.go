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

// GroupHandler manages project group endpoints.
type GroupHandler struct {
	service   service.GroupService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGroupHandler builds a group handler instance.
func NewGroupHandler(svc service.GroupService, validate *validator.Validate, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		service:   svc,
		validator: validate,
		logger:    logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Get("", h.listByProject)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Post("/join", h.join)
}

func (h *GroupHandler) listByProject(c *fiber.Ctx) error {
	projectID, err := parseQueryUint(c, "project_id")
	if err != nil || projectID == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "project_id query parameter is required")
	}

	groups, err := h.service.ListByProject(c.Context(), *projectID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	group, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "group retrieved", group)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.GroupCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.service.Create(c.Context(), payload, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *GroupHandler) join(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.GroupJoinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.service.Join(c.Context(), payload, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "joined group", group)
}

func (h *GroupHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "group not found")
	case errors.Is(err, service.ErrAlreadyMember):
		return utils.SendError(c, fiber.StatusConflict, "student already belongs to the group")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
