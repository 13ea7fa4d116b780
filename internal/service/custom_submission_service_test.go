package service

import (
	"context"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

type fakeUploader struct {
	uploads  int
	lastName string
	err      error
}

func (u *fakeUploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads++
	u.lastName = name
	return "https://cdn.example.com/" + name, nil
}

// pdfPayload is a minimal PDF header, enough for content-type detection.
func pdfPayload() string {
	return base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n%fake document body\n"))
}

func newCustomFixture(t *testing.T, maxBytes int64) (*fakeUploader, CustomSubmissionService, *gorm.DB, models.Phase, models.Group) {
	t.Helper()

	db := openTestDB(t)
	_, group := seedAssignment(t, db)

	phase := models.Phase{ProjectID: 1, Name: "Final Report", EvaluationKind: models.PhaseEvaluationCustom}
	require.NoError(t, db.Create(&phase).Error)

	uploader := &fakeUploader{}
	svc := NewCustomSubmissionService(
		repository.NewEvaluationRepository(db),
		repository.NewPhaseRepository(db),
		repository.NewGroupRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		uploader,
		maxBytes,
		&recordingNotifier{},
		testLogger(),
	)

	return uploader, svc, db, phase, group
}

func TestSubmitFileHappyPath(t *testing.T) {
	uploader, svc, db, phase, group := newCustomFixture(t, 1024*1024)

	response, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}, 1)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusSubmitted, response.Status)
	require.Equal(t, "report.pdf", response.FileName)
	require.NotEmpty(t, response.FileURL)
	require.NotNil(t, response.SubmittedAt)
	require.Equal(t, 1, uploader.uploads)

	var row models.EvaluationSubmission
	require.NoError(t, db.First(&row, response.SubmissionID).Error)
	require.Equal(t, models.EvaluationStatusSubmitted, row.Status)
	require.Equal(t, response.FileURL, row.FileURL)
}

func TestSubmitFileAcceptsDataURLPrefix(t *testing.T) {
	_, svc, _, phase, group := newCustomFixture(t, 1024*1024)

	response, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: "data:application/pdf;base64," + pdfPayload(),
	}, 1)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusSubmitted, response.Status)
}

func TestSubmitFileRejectsSecondSubmission(t *testing.T) {
	uploader, svc, _, phase, group := newCustomFixture(t, 1024*1024)

	payload := dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}

	_, err := svc.SubmitFile(context.Background(), payload, 1)
	require.NoError(t, err)

	_, err = svc.SubmitFile(context.Background(), payload, 1)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, 1, uploader.uploads)
}

func TestSubmitFileRejectsOversizedPayload(t *testing.T) {
	uploader, svc, _, phase, group := newCustomFixture(t, 8)

	_, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}, 1)
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Zero(t, uploader.uploads)
}

func TestSubmitFileRejectsUnsupportedType(t *testing.T) {
	uploader, svc, _, phase, group := newCustomFixture(t, 1024*1024)

	_, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "malware.exe",
		FileData: base64.StdEncoding.EncodeToString([]byte("MZ\x90\x00\x03")),
	}, 1)
	require.Error(t, err)
	require.Zero(t, uploader.uploads)
}

func TestSubmitFileRejectsScoredPhase(t *testing.T) {
	_, svc, db, _, group := newCustomFixture(t, 1024*1024)

	scored := models.Phase{ProjectID: 1, Name: "Scored", EvaluationKind: models.PhaseEvaluationScored}
	require.NoError(t, db.Create(&scored).Error)

	_, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  scored.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}, 1)
	require.ErrorIs(t, err, ErrNotCustomPhase)
}

func TestSubmitFileRejectsNonMembers(t *testing.T) {
	_, svc, _, phase, group := newCustomFixture(t, 1024*1024)

	_, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}, 77)
	require.ErrorIs(t, err, ErrNotGroupMember)
}

func TestSubmitFileRejectsPastDuePhase(t *testing.T) {
	_, svc, db, phase, group := newCustomFixture(t, 1024*1024)

	due := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Phase{}).Where("id = ?", phase.ID).Update("due_date", due).Error)

	_, err := svc.SubmitFile(context.Background(), dto.CustomSubmissionRequest{
		PhaseID:  phase.ID,
		GroupID:  group.ID,
		FileName: "report.pdf",
		FileData: pdfPayload(),
	}, 1)
	require.ErrorIs(t, err, ErrEvaluationReadOnly)
}
