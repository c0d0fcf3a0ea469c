package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/platform/logger"
	"agt_platform/internal/platform/storage"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

// GradingEnqueuer hands an assignment id to whatever grades it.
type GradingEnqueuer interface {
	Enqueue(ctx context.Context, assignmentID string) error
}

const DefaultAssignmentListLimit = 100

type AssignmentService struct {
	repo      repository.AssignmentRepository
	store     storage.Storage
	queue     GradingEnqueuer
	audit     *AuditService
	listLimit int
	log       zerolog.Logger
}

func NewAssignmentService(
	repo repository.AssignmentRepository,
	store storage.Storage,
	queue GradingEnqueuer,
	audit *AuditService,
	listLimit int,
) *AssignmentService {
	if listLimit <= 0 {
		listLimit = DefaultAssignmentListLimit
	}
	return &AssignmentService{
		repo:      repo,
		store:     store,
		queue:     queue,
		audit:     audit,
		listLimit: listLimit,
		log:       logger.Component("assignments"),
	}
}

type CreateAssignmentRequest struct {
	Filename    string
	ContentType string
	Content     io.Reader
	UploadedBy  *string
}

func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*model.Assignment, error) {
	if req.Content == nil {
		return nil, common.NewValidationError("file", "missing file field 'file' in form-data")
	}
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, common.NewValidationError("file", "empty file upload")
	}
	if _, ok := model.ModalityOf(filename); !ok {
		return nil, common.NewValidationError("file", fmt.Sprintf("file type %q is not allowed", filepath.Ext(filename)))
	}

	content, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, common.Errorf("failed to read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, common.NewValidationError("file", "empty file upload")
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	a := &model.Assignment{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(content)),
		UploadedBy:  req.UploadedBy,
		Status:      model.StatusUploaded,
	}
	a.StorageKey = storageKey(a.ID, filename)

	if err := s.store.Upload(ctx, a.StorageKey, bytes.NewReader(content)); err != nil {
		return nil, common.Errorf("failed to store upload for assignment %s: %w", a.ID, err)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(ctx, a.StorageKey); delErr != nil {
			s.log.Error().Err(delErr).Str("key", a.StorageKey).Msg("Failed to remove orphaned upload")
		}
		return nil, common.Errorf("failed to create assignment: %w", err)
	}

	s.log.Info().Str("assignment_id", a.ID).Str("filename", filename).Int64("size", a.SizeBytes).Msg("Assignment uploaded")
	return a, nil
}

// storageKey keeps the original extension and slugifies the stem.
func storageKey(id, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	stem := slug.Make(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if stem == "" {
		stem = "upload"
	}
	return path.Join("assignments", id, stem+ext)
}

func (s *AssignmentService) Get(ctx context.Context, id string) (*model.Assignment, error) {
	if err := requireID("assignment", id); err != nil {
		return nil, err
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("assignment %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

// List returns the most recent assignments first. limit is clamped to (0, listLimit].
func (s *AssignmentService) List(ctx context.Context, limit int) ([]model.Assignment, error) {
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}
	return s.repo.List(ctx, limit)
}

// StartGrading moves an uploaded assignment to grading and hands it to the queue.
// Exactly one of several concurrent callers succeeds; the rest get common.ErrStateConflict.
func (s *AssignmentService) StartGrading(ctx context.Context, id string, actorID *string) (*model.Assignment, error) {
	if err := requireID("assignment", id); err != nil {
		return nil, err
	}
	moved, err := s.repo.StartGrading(ctx, id)
	if err != nil {
		return nil, common.Errorf("failed to start grading %s: %w", id, err)
	}
	if !moved {
		return nil, s.transitionError(ctx, id, model.StatusGrading)
	}

	// A job that never reached the queue leaves the assignment retriggerable.
	if err := s.queue.Enqueue(ctx, id); err != nil {
		s.log.Error().Err(err).Str("assignment_id", id).Msg("Grading enqueue failed, reverting to uploaded")
		if _, rErr := s.repo.RevertGrading(context.WithoutCancel(ctx), id); rErr != nil {
			s.log.Error().Err(rErr).Str("assignment_id", id).Msg("Failed to revert assignment after enqueue error")
		}
		return nil, common.Errorf("grading queue unavailable: %w", common.ErrServiceUnavailable)
	}

	s.audit.Record(ctx, actorID, model.AuditGradingStarted, model.AuditTargetAssignment, id, nil)
	s.log.Info().Str("assignment_id", id).Msg("Grading started")
	return s.repo.FindByID(ctx, id)
}

// RecordResult applies a grading backend's report. Only the first report for an
// assignment in grading is applied; later ones get common.ErrStateConflict.
func (s *AssignmentService) RecordResult(ctx context.Context, id string, outcome model.GradingOutcome) (*model.Assignment, error) {
	if err := requireID("assignment", id); err != nil {
		return nil, err
	}
	res := outcome.Resolve()
	applied, err := s.repo.Resolve(ctx, id, res)
	if err != nil {
		return nil, common.Errorf("failed to record result for %s: %w", id, err)
	}
	if !applied {
		return nil, s.transitionError(ctx, id, res.Status)
	}

	meta := map[string]interface{}{"status": res.Status}
	if res.Grade != nil {
		meta["suggested_grade"] = *res.Grade
	}
	if res.Error != nil {
		meta["error"] = *res.Error
	}
	s.audit.Record(ctx, nil, model.AuditGradingRecorded, model.AuditTargetAssignment, id, meta)

	ev := s.log.Info()
	if res.Status == model.StatusFailed {
		ev = s.log.Warn().Str("reason", *res.Error)
	}
	ev.Str("assignment_id", id).Str("status", string(res.Status)).Msg("Grading result recorded")
	return s.repo.FindByID(ctx, id)
}

// FailStale fails assignments stuck in grading for longer than timeout.
func (s *AssignmentService) FailStale(ctx context.Context, timeout time.Duration) ([]string, error) {
	ids, err := s.repo.FailStale(ctx, time.Now().Add(-timeout), "Grading failed: timed out after "+timeout.String())
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.audit.Record(ctx, nil, model.AuditGradingTimedOut, model.AuditTargetAssignment, id, map[string]interface{}{"timeout": timeout.String()})
		s.log.Warn().Str("assignment_id", id).Dur("timeout", timeout).Msg("Grading timed out")
	}
	return ids, nil
}

// OpenSubmission streams the stored file of an assignment.
func (s *AssignmentService) OpenSubmission(ctx context.Context, a *model.Assignment) (io.ReadCloser, error) {
	rc, err := s.store.Download(ctx, a.StorageKey)
	if err != nil {
		return nil, common.Errorf("failed to open submission for %s: %w", a.ID, err)
	}
	return rc, nil
}

// transitionError explains why a conditional update matched nothing.
func (s *AssignmentService) transitionError(ctx context.Context, id string, to model.AssignmentStatus) error {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf("assignment %s: %w", id, common.ErrNotFound)
		}
		return err
	}
	return common.Errorf("assignment %s is %s, cannot move to %s: %w", id, a.Status, to, common.ErrStateConflict)
}
