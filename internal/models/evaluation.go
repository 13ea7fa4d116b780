package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	// EvaluationStatusInProgress marks a submission row holding a partial save.
	EvaluationStatusInProgress = "in_progress"
	// EvaluationStatusSubmitted marks a finalized, immutable submission.
	EvaluationStatusSubmitted = "submitted"
)

// ProgressState tracks how far an evaluator has come with one group member.
type ProgressState string

const (
	ProgressNotStarted ProgressState = "not_started"
	ProgressInProgress ProgressState = "in_progress"
	ProgressSubmitted  ProgressState = "submitted"
)

// LifecycleStatus is the derived state of an evaluation against the clock.
type LifecycleStatus string

const (
	LifecycleUpcoming  LifecycleStatus = "upcoming"
	LifecycleOngoing   LifecycleStatus = "ongoing"
	LifecycleSubmitted LifecycleStatus = "submitted"
	LifecycleMissed    LifecycleStatus = "missed"
)

// EvaluationSubmission is the persisted row for one evaluator's evaluation of
// one phase. The scoring document lives in the Data JSON column; file-based
// phases use FileURL/FileName instead.
type EvaluationSubmission struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PhaseID     uint           `gorm:"not null;index:idx_phase_group_evaluator,unique" json:"phase_id"`
	GroupID     uint           `gorm:"not null;index:idx_phase_group_evaluator,unique" json:"group_id"`
	ProjectID   uint           `gorm:"not null;index" json:"project_id"`
	EvaluatorID uint           `gorm:"not null;index:idx_phase_group_evaluator,unique" json:"evaluator_id"`
	Status      string         `gorm:"size:32;not null" json:"status"`
	Data        datatypes.JSON `gorm:"type:json" json:"-"`
	FileURL     string         `gorm:"size:512" json:"file_url"`
	FileName    string         `gorm:"size:255" json:"file_name"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Phase       Phase          `gorm:"foreignKey:PhaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"phase"`
	Group       Group          `gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"group"`
}

// MemberEvaluation holds one evaluator's scores for one group member.
// Total is derived from Criteria and recomputed on every mutation; it is
// never written independently.
type MemberEvaluation struct {
	Criteria map[uint]int `json:"criteria"`
	Total    int          `json:"total"`
	SavedAt  *time.Time   `json:"saved_at"`
}

// EvaluationData is the root scoring document persisted per evaluator and
// phase. All mutation goes through SetScore so the derived totals and
// progress map never drift from the per-criterion scores.
type EvaluationData struct {
	EvaluatedMembers map[uint]*MemberEvaluation `json:"evaluated_members"`
	Progress         map[uint]ProgressState     `json:"progress"`
	AggregateTotal   int                        `json:"aggregate_total"`
	LastUpdated      time.Time                  `json:"last_updated"`
	SubmittedAt      *time.Time                 `json:"submitted_at"`
}

// NewEvaluationData returns an empty, mutable document.
func NewEvaluationData() EvaluationData {
	return EvaluationData{
		EvaluatedMembers: make(map[uint]*MemberEvaluation),
		Progress:         make(map[uint]ProgressState),
	}
}

// Seed initializes zero-filled score maps and not_started progress for every
// roster member that is not already present. Members hydrated from a prior
// save keep their scores and progress untouched.
func (d *EvaluationData) Seed(roster []GroupMember, criteria []Criterion) {
	if d.EvaluatedMembers == nil {
		d.EvaluatedMembers = make(map[uint]*MemberEvaluation)
	}
	if d.Progress == nil {
		d.Progress = make(map[uint]ProgressState)
	}

	for _, member := range roster {
		if _, ok := d.EvaluatedMembers[member.StudentID]; !ok {
			scores := make(map[uint]int, len(criteria))
			for _, criterion := range criteria {
				scores[criterion.ID] = 0
			}
			d.EvaluatedMembers[member.StudentID] = &MemberEvaluation{Criteria: scores}
		}
		if _, ok := d.Progress[member.StudentID]; !ok {
			d.Progress[member.StudentID] = ProgressNotStarted
		}
	}

	d.recompute()
}

// Locked reports whether the document has been finalized.
func (d EvaluationData) Locked() bool {
	return d.SubmittedAt != nil
}

// ClampScore parses a raw score entry and clamps it into the criterion's
// valid range. Non-numeric input counts as 0.
func ClampScore(raw string, criterion Criterion) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		value = 0
	}
	if value < 0 {
		value = 0
	}
	if value > criterion.MaxPoints {
		value = criterion.MaxPoints
	}
	return value
}

// SetScore applies one clamped score and recomputes both total levels. The
// member entry is created lazily when it was never seeded. Progress moves
// not_started -> in_progress on the first touch and never backward.
// Returns the stored value.
func (d *EvaluationData) SetScore(memberID uint, criterion Criterion, raw string, now time.Time) int {
	value := ClampScore(raw, criterion)

	entry, ok := d.EvaluatedMembers[memberID]
	if !ok {
		entry = &MemberEvaluation{Criteria: make(map[uint]int)}
		if d.EvaluatedMembers == nil {
			d.EvaluatedMembers = make(map[uint]*MemberEvaluation)
		}
		d.EvaluatedMembers[memberID] = entry
	}
	if entry.Criteria == nil {
		entry.Criteria = make(map[uint]int)
	}
	entry.Criteria[criterion.ID] = value

	d.recompute()

	if d.Progress == nil {
		d.Progress = make(map[uint]ProgressState)
	}
	if state, ok := d.Progress[memberID]; !ok || state == ProgressNotStarted {
		d.Progress[memberID] = ProgressInProgress
	}

	d.LastUpdated = now
	return value
}

// recompute is the single reducer keeping Total and AggregateTotal consistent
// with the per-criterion scores.
func (d *EvaluationData) recompute() {
	aggregate := 0
	for _, entry := range d.EvaluatedMembers {
		total := 0
		for _, score := range entry.Criteria {
			total += score
		}
		entry.Total = total
		aggregate += total
	}
	d.AggregateTotal = aggregate
}

// MemberComplete reports whether every criterion for the member carries a
// defined, non-zero score. An empty criteria list never completes: a phase
// without criteria cannot reach submission. A stored 0 is indistinguishable
// from "not yet entered"; that overload is inherited from the product and
// kept as is.
func (d EvaluationData) MemberComplete(memberID uint, criteria []Criterion) bool {
	if len(criteria) == 0 {
		return false
	}
	entry, ok := d.EvaluatedMembers[memberID]
	if !ok {
		return false
	}
	for _, criterion := range criteria {
		score, ok := entry.Criteria[criterion.ID]
		if !ok || score == 0 {
			return false
		}
	}
	return true
}

// HasAnyScore reports whether at least one member received points.
func (d EvaluationData) HasAnyScore() bool {
	return d.AggregateTotal > 0
}

// MarkSubmitted finalizes the document. Only members that actually received
// points move to submitted progress; never-scored members keep their prior
// value.
func (d *EvaluationData) MarkSubmitted(now time.Time) {
	for memberID, entry := range d.EvaluatedMembers {
		if entry.Total > 0 {
			d.Progress[memberID] = ProgressSubmitted
		}
	}
	d.SubmittedAt = &now
	d.LastUpdated = now
}

// Clone deep-copies the document so speculative mutations never leak into
// the live state through shared maps.
func (d EvaluationData) Clone() EvaluationData {
	clone := EvaluationData{
		EvaluatedMembers: make(map[uint]*MemberEvaluation, len(d.EvaluatedMembers)),
		Progress:         make(map[uint]ProgressState, len(d.Progress)),
		AggregateTotal:   d.AggregateTotal,
		LastUpdated:      d.LastUpdated,
	}
	if d.SubmittedAt != nil {
		submittedAt := *d.SubmittedAt
		clone.SubmittedAt = &submittedAt
	}
	for memberID, entry := range d.EvaluatedMembers {
		scores := make(map[uint]int, len(entry.Criteria))
		for criterionID, score := range entry.Criteria {
			scores[criterionID] = score
		}
		copied := &MemberEvaluation{Criteria: scores, Total: entry.Total}
		if entry.SavedAt != nil {
			savedAt := *entry.SavedAt
			copied.SavedAt = &savedAt
		}
		clone.EvaluatedMembers[memberID] = copied
	}
	for memberID, state := range d.Progress {
		clone.Progress[memberID] = state
	}
	return clone
}

// SetData serializes the document into the JSON storage column.
func (s *EvaluationSubmission) SetData(doc EvaluationData) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.Data = datatypes.JSON(payload)
	return nil
}

// Document deserializes the stored scoring document. An empty column yields
// a fresh document.
func (s EvaluationSubmission) Document() (EvaluationData, error) {
	if len(s.Data) == 0 {
		return NewEvaluationData(), nil
	}

	var doc EvaluationData
	if err := json.Unmarshal(s.Data, &doc); err != nil {
		return EvaluationData{}, err
	}
	if doc.EvaluatedMembers == nil {
		doc.EvaluatedMembers = make(map[uint]*MemberEvaluation)
	}
	if doc.Progress == nil {
		doc.Progress = make(map[uint]ProgressState)
	}
	return doc, nil
}

// HasSubmitted reports whether the evaluation is finalized. The persisted
// row is the source of truth; the document's submitted_at acts as an
// optimistic cache for hydrated state.
func (s EvaluationSubmission) HasSubmitted() bool {
	if s.Status == EvaluationStatusSubmitted || s.SubmittedAt != nil {
		return true
	}
	if s.ID == 0 {
		return false
	}
	doc, err := s.Document()
	if err != nil {
		return false
	}
	return doc.SubmittedAt != nil && doc.AggregateTotal > 0
}

// Lifecycle derives the submission status from the clock and the phase
// window. Submitted is sticky and wins over any clock state.
func (s EvaluationSubmission) Lifecycle(phase Phase, now time.Time) LifecycleStatus {
	if s.HasSubmitted() {
		return LifecycleSubmitted
	}
	if phase.NotYetOpen(now) {
		return LifecycleUpcoming
	}
	if phase.IsPastDue(now) {
		return LifecycleMissed
	}
	return LifecycleOngoing
}

// IsReadOnly reports whether mutation must be rejected: missed or submitted
// evaluations are immutable.
func (s EvaluationSubmission) IsReadOnly(phase Phase, now time.Time) bool {
	status := s.Lifecycle(phase, now)
	return status == LifecycleSubmitted || status == LifecycleMissed
}
