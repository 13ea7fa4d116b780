package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

// ErrNotCustomPhase indicates a file submission against a scored phase.
var ErrNotCustomPhase = errors.New("phase takes per-criterion scores, not a file")

// ErrFileTooLarge indicates the decoded payload exceeds the size limit.
var ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// CustomSubmissionService handles the file-based evaluation variant: one
// document per evaluator per phase, submitted exactly once. No criteria, no
// per-member scoring, no autosave.
type CustomSubmissionService interface {
	SubmitFile(ctx context.Context, payload dto.CustomSubmissionRequest, evaluatorID uint) (dto.CustomSubmissionResponse, error)
}

type customSubmissionService struct {
	evaluations repository.EvaluationRepository
	phases      repository.PhaseRepository
	groups      repository.GroupRepository
	validator   *validator.Validate
	uploader    FileUploader
	maxBytes    int64
	notifier    EvaluationNotifier
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCustomSubmissionService constructs the file-variant service.
func NewCustomSubmissionService(
	evaluations repository.EvaluationRepository,
	phases repository.PhaseRepository,
	groups repository.GroupRepository,
	validate *validator.Validate,
	uploader FileUploader,
	maxBytes int64,
	notifier EvaluationNotifier,
	logger zerolog.Logger,
) CustomSubmissionService {
	return &customSubmissionService{
		evaluations: evaluations,
		phases:      phases,
		groups:      groups,
		validator:   validate,
		uploader:    uploader,
		maxBytes:    maxBytes,
		notifier:    notifier,
		logger:      logger.With().Str("component", "custom_submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *customSubmissionService) SubmitFile(ctx context.Context, payload dto.CustomSubmissionRequest, evaluatorID uint) (dto.CustomSubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CustomSubmissionResponse{}, err
	}

	phase, err := s.phases.GetByID(ctx, payload.PhaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CustomSubmissionResponse{}, ErrPhaseNotFound
		}
		return dto.CustomSubmissionResponse{}, err
	}

	if !phase.IsCustom() {
		return dto.CustomSubmissionResponse{}, ErrNotCustomPhase
	}

	group, err := s.groups.GetByID(ctx, payload.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CustomSubmissionResponse{}, ErrGroupNotFound
		}
		return dto.CustomSubmissionResponse{}, err
	}

	if !group.HasMember(evaluatorID) {
		return dto.CustomSubmissionResponse{}, ErrNotGroupMember
	}

	now := s.now()
	row, err := s.evaluations.GetByAssignment(ctx, phase.ID, group.ID, evaluatorID)
	switch {
	case err == nil:
		if row.HasSubmitted() {
			return dto.CustomSubmissionResponse{}, ErrAlreadySubmitted
		}
		if row.IsReadOnly(phase, now) {
			return dto.CustomSubmissionResponse{}, ErrEvaluationReadOnly
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if (models.EvaluationSubmission{}).IsReadOnly(phase, now) {
			return dto.CustomSubmissionResponse{}, ErrEvaluationReadOnly
		}
		row = models.EvaluationSubmission{
			PhaseID:     phase.ID,
			GroupID:     group.ID,
			ProjectID:   phase.ProjectID,
			EvaluatorID: evaluatorID,
			Status:      models.EvaluationStatusInProgress,
		}
	default:
		return dto.CustomSubmissionResponse{}, err
	}

	data, err := decodeFilePayload(payload.FileData)
	if err != nil {
		return dto.CustomSubmissionResponse{}, err
	}

	if int64(len(data)) > s.maxBytes {
		return dto.CustomSubmissionResponse{}, ErrFileTooLarge
	}

	if err := validateDocumentType(data); err != nil {
		return dto.CustomSubmissionResponse{}, err
	}

	url, err := s.uploader.Upload(ctx, payload.FileName, bytes.NewReader(data))
	if err != nil {
		return dto.CustomSubmissionResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	row.FileURL = url
	row.FileName = payload.FileName
	row.Status = models.EvaluationStatusSubmitted
	submittedAt := now
	row.SubmittedAt = &submittedAt

	if row.ID == 0 {
		err = s.evaluations.Create(ctx, &row)
	} else {
		err = s.evaluations.Update(ctx, &row)
	}
	if err != nil {
		return dto.CustomSubmissionResponse{}, err
	}

	if s.notifier != nil {
		s.notifier.EvaluationSubmitted(ctx, group, phase, evaluatorID)
	}

	s.logger.Info().
		Uint("submission_id", row.ID).
		Str("file_name", row.FileName).
		Msg("custom evaluation submitted")

	return dto.CustomSubmissionResponse{
		SubmissionID: row.ID,
		PhaseID:      row.PhaseID,
		GroupID:      row.GroupID,
		FileURL:      row.FileURL,
		FileName:     row.FileName,
		Status:       row.Status,
		SubmittedAt:  row.SubmittedAt,
	}, nil
}

// decodeFilePayload accepts a raw or data-URL prefixed base64 string.
func decodeFilePayload(encoded string) ([]byte, error) {
	payload := strings.TrimSpace(encoded)
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	return data, nil
}

func validateDocumentType(data []byte) error {
	mime := mimetype.Detect(data)

	allowed := []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported file type: %s", mime.String())
}
