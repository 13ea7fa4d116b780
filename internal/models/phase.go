package models

import "time"

// Evaluation kinds supported per phase. Scored phases carry criteria and the
// peer-scoring document; custom phases accept a single uploaded file instead.
const (
	PhaseEvaluationScored = "scored"
	PhaseEvaluationCustom = "custom"
)

// Phase represents one evaluation assignment within a project: a scoring
// window, a point budget, and the ordered criteria evaluators grade against.
type Phase struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ProjectID      uint        `gorm:"not null;index" json:"project_id"`
	Name           string      `gorm:"size:255;not null" json:"name"`
	Description    string      `gorm:"type:text" json:"description"`
	EvaluationKind string      `gorm:"size:32;not null;default:scored" json:"evaluation_kind"`
	AvailableFrom  *time.Time  `json:"available_from"`
	DueDate        *time.Time  `json:"due_date"`
	TotalPoints    int         `gorm:"not null;default:0" json:"total_points"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Criteria       []Criterion `gorm:"foreignKey:PhaseID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
}

// Criterion is one scoring dimension of a phase. Criteria are immutable once
// an evaluation has been opened against the phase.
type Criterion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PhaseID     uint      `gorm:"not null;index" json:"phase_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	MaxPoints   int       `gorm:"not null" json:"max_points"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsCustom reports whether the phase takes a file submission instead of
// per-criterion scores.
func (p Phase) IsCustom() bool {
	return p.EvaluationKind == PhaseEvaluationCustom
}

// NotYetOpen returns true while the evaluation window has not started.
func (p Phase) NotYetOpen(reference time.Time) bool {
	return p.AvailableFrom != nil && reference.Before(*p.AvailableFrom)
}

// IsPastDue returns true when the phase deadline has already passed.
func (p Phase) IsPastDue(reference time.Time) bool {
	return p.DueDate != nil && reference.After(*p.DueDate)
}
