package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/observability"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

// ErrPhaseNotFound indicates the phase could not be located.
var ErrPhaseNotFound = errors.New("phase not found")

// ErrGroupNotFound indicates the group could not be located.
var ErrGroupNotFound = errors.New("group not found")

// ErrEvaluationNotFound indicates no evaluation exists for the caller.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// ErrNotGroupMember indicates the caller does not belong to the group.
var ErrNotGroupMember = errors.New("student is not a member of the group")

// ErrCustomPhase indicates a scored operation was attempted on a file-based phase.
var ErrCustomPhase = errors.New("phase takes a file submission, not scores")

// ErrEvaluationReadOnly indicates the evaluation window is closed or finalized.
var ErrEvaluationReadOnly = errors.New("evaluation is read-only")

// ErrAlreadySubmitted indicates a repeated submit on a finalized evaluation.
var ErrAlreadySubmitted = errors.New("evaluation already submitted")

// ErrNothingToSubmit indicates a submit attempt with every member at zero points.
var ErrNothingToSubmit = errors.New("no scores entered yet")

// ErrUnknownMember indicates a score for a student outside the roster.
var ErrUnknownMember = errors.New("member is not part of the evaluable roster")

// ErrUnknownCriterion indicates a score against a criterion the phase does not define.
var ErrUnknownCriterion = errors.New("criterion does not belong to the phase")

// EvaluationNotifier is invoked after a successful submit so dependent views
// can refresh.
type EvaluationNotifier interface {
	EvaluationSubmitted(ctx context.Context, group models.Group, phase models.Phase, evaluatorID uint)
}

// EvaluationService owns the peer-evaluation documents: hydration, score
// entry, debounced autosave and the submission lifecycle.
type EvaluationService interface {
	Open(ctx context.Context, payload dto.EvaluationOpenRequest, evaluatorID uint) (dto.EvaluationStateResponse, error)
	SetScore(ctx context.Context, submissionID, evaluatorID uint, payload dto.ScoreRequest) (dto.EvaluationStateResponse, error)
	Save(ctx context.Context, submissionID, evaluatorID uint) (dto.EvaluationStateResponse, error)
	Submit(ctx context.Context, submissionID, evaluatorID uint) (dto.EvaluationStateResponse, error)
	Status(ctx context.Context, query dto.EvaluationStatusQuery, evaluatorID uint) (dto.EvaluationStatusResponse, error)
	Close()
}

// evaluationSession is the live, single-writer state of one open document.
// The mutex makes every read-modify-write of the document atomic in-process.
type evaluationSession struct {
	mu          sync.Mutex
	row         models.EvaluationSubmission
	doc         models.EvaluationData
	group       models.Group
	saveErrorAt time.Time
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	phases      repository.PhaseRepository
	groups      repository.GroupRepository
	validator   *validator.Validate
	cache       *redis.Client
	cacheTTL    time.Duration
	autosave    *AutosaveScheduler
	saveWindow  time.Duration
	notifier    EvaluationNotifier
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	sessionsMu sync.Mutex
	sessions   map[uint]*evaluationSession
}

// NewEvaluationService constructs the aggregator service.
func NewEvaluationService(
	evaluations repository.EvaluationRepository,
	phases repository.PhaseRepository,
	groups repository.GroupRepository,
	validate *validator.Validate,
	cache *redis.Client,
	cacheTTL time.Duration,
	autosaveDebounce time.Duration,
	saveErrorWindow time.Duration,
	notifier EvaluationNotifier,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		phases:      phases,
		groups:      groups,
		validator:   validate,
		cache:       cache,
		cacheTTL:    cacheTTL,
		autosave:    NewAutosaveScheduler(autosaveDebounce),
		saveWindow:  saveErrorWindow,
		notifier:    notifier,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sman-go-api/internal/service/evaluation"),
		now:         time.Now,
		sessions:    make(map[uint]*evaluationSession),
	}
}

func (s *evaluationService) Close() {
	s.autosave.Stop()
}

func (s *evaluationService) Open(ctx context.Context, payload dto.EvaluationOpenRequest, evaluatorID uint) (dto.EvaluationStateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationStateResponse{}, err
	}

	phase, err := s.phases.GetByID(ctx, payload.PhaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationStateResponse{}, ErrPhaseNotFound
		}
		return dto.EvaluationStateResponse{}, err
	}

	if phase.IsCustom() {
		return dto.EvaluationStateResponse{}, ErrCustomPhase
	}

	group, err := s.groups.GetByID(ctx, payload.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationStateResponse{}, ErrGroupNotFound
		}
		return dto.EvaluationStateResponse{}, err
	}

	if !group.HasMember(evaluatorID) {
		return dto.EvaluationStateResponse{}, ErrNotGroupMember
	}

	row, err := s.evaluations.GetByAssignment(ctx, phase.ID, group.ID, evaluatorID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.EvaluationSubmission{
			PhaseID:     phase.ID,
			GroupID:     group.ID,
			ProjectID:   phase.ProjectID,
			EvaluatorID: evaluatorID,
			Status:      models.EvaluationStatusInProgress,
		}
		doc := models.NewEvaluationData()
		doc.Seed(group.Roster(evaluatorID), phase.Criteria)
		if setErr := row.SetData(doc); setErr != nil {
			return dto.EvaluationStateResponse{}, setErr
		}
		if createErr := s.evaluations.Create(ctx, &row); createErr != nil {
			return dto.EvaluationStateResponse{}, createErr
		}
		row.Phase = phase
	case err != nil:
		return dto.EvaluationStateResponse{}, err
	}

	session, err := s.attachSession(row, phase, group, evaluatorID)
	if err != nil {
		return dto.EvaluationStateResponse{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	s.logger.Info().
		Uint("submission_id", session.row.ID).
		Uint("phase_id", phase.ID).
		Uint("group_id", group.ID).
		Msg("evaluation opened")

	return s.buildState(session, evaluatorID), nil
}

// attachSession hydrates or reuses the in-memory session for the row. Members
// already present in a hydrated document keep their scores; roster members
// touched for the first time are zero-seeded.
func (s *evaluationService) attachSession(row models.EvaluationSubmission, phase models.Phase, group models.Group, evaluatorID uint) (*evaluationSession, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if session, ok := s.sessions[row.ID]; ok {
		return session, nil
	}

	doc, err := row.Document()
	if err != nil {
		return nil, err
	}
	doc.Seed(group.Roster(evaluatorID), phase.Criteria)

	row.Phase = phase
	session := &evaluationSession{row: row, doc: doc, group: group}
	s.sessions[row.ID] = session
	return session, nil
}

// loadSession returns the live session, rebuilding it from storage when the
// process was restarted since the document was opened.
func (s *evaluationService) loadSession(ctx context.Context, submissionID, evaluatorID uint) (*evaluationSession, error) {
	s.sessionsMu.Lock()
	if session, ok := s.sessions[submissionID]; ok {
		s.sessionsMu.Unlock()
		if session.row.EvaluatorID != evaluatorID {
			return nil, ErrEvaluationNotFound
		}
		return session, nil
	}
	s.sessionsMu.Unlock()

	row, err := s.evaluations.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, err
	}

	if row.EvaluatorID != evaluatorID {
		return nil, ErrEvaluationNotFound
	}

	group, err := s.groups.GetByID(ctx, row.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	return s.attachSession(row, row.Phase, group, evaluatorID)
}

func (s *evaluationService) SetScore(ctx context.Context, submissionID, evaluatorID uint, payload dto.ScoreRequest) (dto.EvaluationStateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationStateResponse{}, err
	}

	session, err := s.loadSession(ctx, submissionID, evaluatorID)
	if err != nil {
		return dto.EvaluationStateResponse{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	now := s.now()
	if session.row.IsReadOnly(session.row.Phase, now) || session.doc.Locked() {
		return dto.EvaluationStateResponse{}, ErrEvaluationReadOnly
	}

	if session.row.Phase.IsCustom() {
		return dto.EvaluationStateResponse{}, ErrCustomPhase
	}

	criterion, ok := findCriterion(session.row.Phase.Criteria, payload.CriterionID)
	if !ok {
		return dto.EvaluationStateResponse{}, ErrUnknownCriterion
	}

	if !rosterContains(session.group.Roster(evaluatorID), payload.MemberID) {
		return dto.EvaluationStateResponse{}, ErrUnknownMember
	}

	session.doc.SetScore(payload.MemberID, criterion, payload.Value, now)

	// One debounce window per document; a pending save is replaced, never
	// stacked. Rows without a persisted id never autosave.
	if session.row.ID != 0 {
		id := session.row.ID
		s.autosave.Arm(id, func() { s.flush(id) })
	}

	return s.buildState(session, evaluatorID), nil
}

// flush persists the current document with in_progress status. Failures are
// transient: the save-error flag is raised and auto-clears after the display
// window, local state is untouched and stays editable.
func (s *evaluationService) flush(submissionID uint) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[submissionID]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.doc.Locked() || session.row.Status == models.EvaluationStatusSubmitted {
		return
	}

	// The window may have closed between arming and firing. A missed
	// evaluation must not regain an in_progress row.
	if session.row.IsReadOnly(session.row.Phase, s.now()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.persistInProgress(ctx, session); err != nil {
		session.saveErrorAt = s.now()
		observability.AutosavesTotal().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("autosave failed")
		return
	}

	session.saveErrorAt = time.Time{}
	observability.AutosavesTotal().WithLabelValues("ok").Inc()
}

func (s *evaluationService) dropSession(submissionID uint) {
	s.sessionsMu.Lock()
	delete(s.sessions, submissionID)
	s.sessionsMu.Unlock()
}

func (s *evaluationService) persistInProgress(ctx context.Context, session *evaluationSession) error {
	now := s.now()
	for memberID, state := range session.doc.Progress {
		if state == models.ProgressInProgress {
			if entry, ok := session.doc.EvaluatedMembers[memberID]; ok {
				savedAt := now
				entry.SavedAt = &savedAt
			}
		}
	}

	if err := session.row.SetData(session.doc); err != nil {
		return err
	}
	session.row.Status = models.EvaluationStatusInProgress

	return s.evaluations.Update(ctx, &session.row)
}

func (s *evaluationService) Save(ctx context.Context, submissionID, evaluatorID uint) (dto.EvaluationStateResponse, error) {
	session, err := s.loadSession(ctx, submissionID, evaluatorID)
	if err != nil {
		return dto.EvaluationStateResponse{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.row.IsReadOnly(session.row.Phase, s.now()) || session.doc.Locked() {
		return dto.EvaluationStateResponse{}, ErrEvaluationReadOnly
	}

	s.autosave.Cancel(submissionID)
	if err := s.persistInProgress(ctx, session); err != nil {
		session.saveErrorAt = s.now()
		return dto.EvaluationStateResponse{}, err
	}

	session.saveErrorAt = time.Time{}
	return s.buildState(session, evaluatorID), nil
}

func (s *evaluationService) Submit(ctx context.Context, submissionID, evaluatorID uint) (dto.EvaluationStateResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "evaluation.submit", trace.WithAttributes(
		attribute.Int64("evaluation.submission_id", int64(submissionID)),
		attribute.Int64("evaluation.evaluator_id", int64(evaluatorID)),
	))
	defer span.End()

	session, err := s.loadSession(spanCtx, submissionID, evaluatorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_load_failed")
		return dto.EvaluationStateResponse{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	now := s.now()
	if session.row.HasSubmitted() || session.doc.Locked() {
		span.SetStatus(codes.Error, "already_submitted")
		return dto.EvaluationStateResponse{}, ErrAlreadySubmitted
	}
	if session.row.IsReadOnly(session.row.Phase, now) {
		span.SetStatus(codes.Error, "read_only")
		return dto.EvaluationStateResponse{}, ErrEvaluationReadOnly
	}

	// Guard before touching persistence: an all-zero document never submits.
	if !session.doc.HasAnyScore() {
		span.SetStatus(codes.Error, "nothing_to_submit")
		return dto.EvaluationStateResponse{}, ErrNothingToSubmit
	}

	// A submit supersedes any pending autosave.
	s.autosave.Cancel(submissionID)

	// Mutate a copy so a persistence failure leaves the session untouched
	// and editable.
	doc := session.doc.Clone()
	doc.MarkSubmitted(now)

	row := session.row
	if err := row.SetData(doc); err != nil {
		span.RecordError(err)
		return dto.EvaluationStateResponse{}, err
	}
	row.Status = models.EvaluationStatusSubmitted
	submittedAt := now
	row.SubmittedAt = &submittedAt

	if err := s.evaluations.Update(spanCtx, &row); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return dto.EvaluationStateResponse{}, err
	}

	session.row = row
	session.doc = doc
	session.saveErrorAt = time.Time{}

	// Submitted documents are immutable; later reads rehydrate the row
	// from storage, keeping the live map bounded by open evaluations.
	s.dropSession(submissionID)

	s.invalidateStatus(spanCtx, row.PhaseID, row.GroupID, evaluatorID)
	observability.EvaluationSubmitsTotal().Inc()

	if s.notifier != nil {
		s.notifier.EvaluationSubmitted(spanCtx, session.group, row.Phase, evaluatorID)
	}

	s.logger.Info().
		Uint("submission_id", row.ID).
		Int("aggregate_total", doc.AggregateTotal).
		Msg("evaluation submitted")

	return s.buildState(session, evaluatorID), nil
}

func (s *evaluationService) Status(ctx context.Context, query dto.EvaluationStatusQuery, evaluatorID uint) (dto.EvaluationStatusResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.EvaluationStatusResponse{}, err
	}

	cacheKey := statusCacheKey(query.PhaseID, query.GroupID, evaluatorID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.EvaluationStatusResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				return response, nil
			}
		}
	}

	phase, err := s.phases.GetByID(ctx, query.PhaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationStatusResponse{}, ErrPhaseNotFound
		}
		return dto.EvaluationStatusResponse{}, err
	}

	row, err := s.evaluations.GetByAssignment(ctx, query.PhaseID, query.GroupID, evaluatorID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EvaluationStatusResponse{}, err
	}

	now := s.now()
	response := dto.EvaluationStatusResponse{
		SubmissionID: row.ID,
		PhaseID:      query.PhaseID,
		GroupID:      query.GroupID,
		Status:       row.Lifecycle(phase, now),
		ReadOnly:     row.IsReadOnly(phase, now),
		SubmittedAt:  row.SubmittedAt,
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(response); marshalErr == nil {
			if cacheErr := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); cacheErr != nil {
				s.logger.Debug().Err(cacheErr).Msg("failed to cache evaluation status")
			}
		}
	}

	return response, nil
}

func (s *evaluationService) invalidateStatus(ctx context.Context, phaseID, groupID, evaluatorID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusCacheKey(phaseID, groupID, evaluatorID)).Err(); err != nil {
		s.logger.Debug().Err(err).Msg("failed to invalidate evaluation status cache")
	}
}

func statusCacheKey(phaseID, groupID, evaluatorID uint) string {
	return fmt.Sprintf("evaluation:status:%d:%d:%d", phaseID, groupID, evaluatorID)
}

// buildState assembles the full aggregator state. Callers hold the session
// lock.
func (s *evaluationService) buildState(session *evaluationSession, evaluatorID uint) dto.EvaluationStateResponse {
	now := s.now()
	roster := session.group.Roster(evaluatorID)
	criteria := session.row.Phase.Criteria

	wizard := models.Wizard{Document: &session.doc, Roster: roster, Criteria: criteria}

	members := make([]dto.MemberEvaluationResponse, 0, len(roster))
	for _, member := range roster {
		entry := session.doc.EvaluatedMembers[member.StudentID]
		response := dto.MemberEvaluationResponse{
			StudentID: member.StudentID,
			Progress:  session.doc.Progress[member.StudentID],
			Complete:  session.doc.MemberComplete(member.StudentID, criteria),
		}
		if entry != nil {
			response.Criteria = entry.Criteria
			response.Total = entry.Total
			response.SavedAt = entry.SavedAt
		}
		members = append(members, response)
	}

	saveError := !session.saveErrorAt.IsZero() && now.Sub(session.saveErrorAt) < s.saveWindow
	if !saveError {
		session.saveErrorAt = time.Time{}
	}

	return dto.EvaluationStateResponse{
		SubmissionID:       session.row.ID,
		PhaseID:            session.row.PhaseID,
		GroupID:            session.row.GroupID,
		ProjectID:          session.row.ProjectID,
		Status:             session.row.Lifecycle(session.row.Phase, now),
		ReadOnly:           session.row.IsReadOnly(session.row.Phase, now) || session.doc.Locked(),
		AggregateTotal:     session.doc.AggregateTotal,
		TotalPoints:        session.row.Phase.TotalPoints,
		LastUpdated:        session.doc.LastUpdated,
		SubmittedAt:        session.doc.SubmittedAt,
		Criteria:           dto.NewCriterionResponseSlice(criteria),
		Roster:             dto.NewMemberResponseSlice(roster),
		Members:            members,
		CanReachSubmission: wizard.CanReachSubmission(),
		SaveError:          saveError,
	}
}

func findCriterion(criteria []models.Criterion, id uint) (models.Criterion, bool) {
	for _, criterion := range criteria {
		if criterion.ID == id {
			return criterion, true
		}
	}
	return models.Criterion{}, false
}

func rosterContains(roster []models.GroupMember, studentID uint) bool {
	for _, member := range roster {
		if member.StudentID == studentID {
			return true
		}
	}
	return false
}
