package dto

import (
	"time"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// EvaluationOpenRequest identifies the evaluation assignment to open.
type EvaluationOpenRequest struct {
	PhaseID uint `json:"phase_id" validate:"required,gt=0"`
	GroupID uint `json:"group_id" validate:"required,gt=0"`
}

// ScoreRequest carries a single score entry. Value is kept raw: non-numeric
// input is stored as 0, everything else is clamped into the criterion range.
type ScoreRequest struct {
	MemberID    uint   `json:"member_id" validate:"required,gt=0"`
	CriterionID uint   `json:"criterion_id" validate:"required,gt=0"`
	Value       string `json:"value"`
}

// EvaluationStatusQuery identifies a submission-status lookup.
type EvaluationStatusQuery struct {
	PhaseID uint `query:"phase_id" validate:"required,gt=0"`
	GroupID uint `query:"group_id" validate:"required,gt=0"`
}

// CustomSubmissionRequest carries the file-based evaluation payload.
type CustomSubmissionRequest struct {
	PhaseID  uint   `json:"phase_id" validate:"required,gt=0"`
	GroupID  uint   `json:"group_id" validate:"required,gt=0"`
	FileName string `json:"file_name" validate:"required,min=1,max=255"`
	FileData string `json:"file_data" validate:"required"`
}

// MemberEvaluationResponse serializes one member's scoring state.
type MemberEvaluationResponse struct {
	StudentID uint                 `json:"student_id"`
	Criteria  map[uint]int         `json:"criteria"`
	Total     int                  `json:"total"`
	SavedAt   *time.Time           `json:"saved_at"`
	Progress  models.ProgressState `json:"progress"`
	Complete  bool                 `json:"complete"`
}

// EvaluationStateResponse is the full aggregator state returned on open,
// score changes and status reads. Navigation gates are server-derived so the
// client renders them instead of recomputing its own rules.
type EvaluationStateResponse struct {
	SubmissionID       uint                       `json:"submission_id"`
	PhaseID            uint                       `json:"phase_id"`
	GroupID            uint                       `json:"group_id"`
	ProjectID          uint                       `json:"project_id"`
	Status             models.LifecycleStatus     `json:"status"`
	ReadOnly           bool                       `json:"read_only"`
	AggregateTotal     int                        `json:"aggregate_total"`
	TotalPoints        int                        `json:"total_points"`
	LastUpdated        time.Time                  `json:"last_updated"`
	SubmittedAt        *time.Time                 `json:"submitted_at"`
	Criteria           []CriterionResponse        `json:"criteria"`
	Roster             []MemberResponse           `json:"roster"`
	Members            []MemberEvaluationResponse `json:"members"`
	CanReachSubmission bool                       `json:"can_reach_submission"`
	SaveError          bool                       `json:"save_error"`
}

// EvaluationStatusResponse summarizes the lifecycle of one assignment for an
// evaluator, without the full document.
type EvaluationStatusResponse struct {
	SubmissionID uint                   `json:"submission_id"`
	PhaseID      uint                   `json:"phase_id"`
	GroupID      uint                   `json:"group_id"`
	Status       models.LifecycleStatus `json:"status"`
	ReadOnly     bool                   `json:"read_only"`
	SubmittedAt  *time.Time             `json:"submitted_at"`
}

// CustomSubmissionResponse is returned after a file-based submission.
type CustomSubmissionResponse struct {
	SubmissionID uint       `json:"submission_id"`
	PhaseID      uint       `json:"phase_id"`
	GroupID      uint       `json:"group_id"`
	FileURL      string     `json:"file_url"`
	FileName     string     `json:"file_name"`
	Status       string     `json:"status"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}
