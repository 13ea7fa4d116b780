package dto

import (
	"time"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// PhaseCreateRequest describes the payload for defining a phase.
type PhaseCreateRequest struct {
	ProjectID      uint                     `json:"project_id" validate:"required,gt=0"`
	Name           string                   `json:"name" validate:"required,min=3,max=255"`
	Description    string                   `json:"description" validate:"omitempty,max=4000"`
	EvaluationKind string                   `json:"evaluation_kind" validate:"omitempty,oneof=scored custom"`
	AvailableFrom  *time.Time               `json:"available_from"`
	DueDate        *time.Time               `json:"due_date"`
	TotalPoints    int                      `json:"total_points" validate:"gte=0"`
	Criteria       []CriterionCreateRequest `json:"criteria" validate:"omitempty,dive"`
}

// CriterionCreateRequest describes one criterion within a phase definition.
type CriterionCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	MaxPoints   int    `json:"max_points" validate:"required,gt=0"`
}

// PhaseFilter describes query string filters for listing phases.
type PhaseFilter struct {
	ProjectID *uint   `query:"project_id"`
	Kind      *string `query:"kind" validate:"omitempty,oneof=scored custom"`
	Sort      string  `query:"sort"`
}

// CriterionResponse serializes a criterion definition.
type CriterionResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPoints   int    `json:"max_points"`
	Position    int    `json:"position"`
}

// PhaseResponse is returned to API clients when viewing phases.
type PhaseResponse struct {
	ID             uint                `json:"id"`
	ProjectID      uint                `json:"project_id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	EvaluationKind string              `json:"evaluation_kind"`
	AvailableFrom  *time.Time          `json:"available_from"`
	DueDate        *time.Time          `json:"due_date"`
	TotalPoints    int                 `json:"total_points"`
	Criteria       []CriterionResponse `json:"criteria"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewCriterionResponse converts a Criterion model into a DTO.
func NewCriterionResponse(model models.Criterion) CriterionResponse {
	return CriterionResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		MaxPoints:   model.MaxPoints,
		Position:    model.Position,
	}
}

// NewCriterionResponseSlice converts criterion models into DTOs.
func NewCriterionResponseSlice(criteria []models.Criterion) []CriterionResponse {
	responses := make([]CriterionResponse, 0, len(criteria))
	for _, criterion := range criteria {
		responses = append(responses, NewCriterionResponse(criterion))
	}

	return responses
}

// NewPhaseResponse converts a Phase model into a DTO.
func NewPhaseResponse(model models.Phase) PhaseResponse {
	return PhaseResponse{
		ID:             model.ID,
		ProjectID:      model.ProjectID,
		Name:           model.Name,
		Description:    model.Description,
		EvaluationKind: model.EvaluationKind,
		AvailableFrom:  model.AvailableFrom,
		DueDate:        model.DueDate,
		TotalPoints:    model.TotalPoints,
		Criteria:       NewCriterionResponseSlice(model.Criteria),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewPhaseResponseSlice converts phase models into DTOs.
func NewPhaseResponseSlice(phases []models.Phase) []PhaseResponse {
	responses := make([]PhaseResponse, 0, len(phases))
	for _, phase := range phases {
		responses = append(responses, NewPhaseResponse(phase))
	}

	return responses
}
