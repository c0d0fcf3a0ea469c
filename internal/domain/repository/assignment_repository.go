package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"gorm.io/gorm"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	FindByID(ctx context.Context, id string) (*model.Assignment, error)
	List(ctx context.Context, limit int) ([]model.Assignment, error)
	// StartGrading moves uploaded -> grading. It returns false when the row was not in uploaded.
	StartGrading(ctx context.Context, id string) (bool, error)
	// RevertGrading undoes StartGrading: grading -> uploaded with the start time cleared.
	// It returns false when the row has already left grading.
	RevertGrading(ctx context.Context, id string) (bool, error)
	// Resolve moves grading -> graded|failed. It returns false when the row was not in grading.
	Resolve(ctx context.Context, id string, res model.Resolution) (bool, error)
	// FailStale fails every grading row started before cutoff and returns their ids.
	FailStale(ctx context.Context, cutoff time.Time, reason string) ([]string, error)
}

type pgAssignmentRepository struct {
	db *sql.DB
}

func NewPgAssignmentRepository(db *sql.DB) AssignmentRepository {
	return &pgAssignmentRepository{db: db}
}

const assignmentColumns = `id, filename, storage_key, content_type, size_bytes, uploaded_by, status,
	suggested_grade, feedback, error, grading_started_at, created_at, updated_at`

// notFound reports a lookup that names no row: none matched, or postgres rejected the id literal.
func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound) || common.IsInvalidTextRepresentation(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := row.Scan(
		&a.ID, &a.Filename, &a.StorageKey, &a.ContentType, &a.SizeBytes, &a.UploadedBy, &a.Status,
		&a.SuggestedGrade, &a.Feedback, &a.Error, &a.GradingStarted, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *pgAssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	query := `INSERT INTO assignments (id, filename, storage_key, content_type, size_bytes, uploaded_by, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, a.ID, a.Filename, a.StorageKey, a.ContentType, a.SizeBytes, a.UploadedBy, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("assignment %s already exists: %w", a.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgAssignmentRepository.Create: %w", err)
	}
	return nil
}

func (r *pgAssignmentRepository) FindByID(ctx context.Context, id string) (*model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if notFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgAssignmentRepository.FindByID: %w", err)
	}
	return a, nil
}

func (r *pgAssignmentRepository) List(ctx context.Context, limit int) ([]model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments ORDER BY created_at DESC, id LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgAssignmentRepository.List: %w", err)
	}
	defer rows.Close()

	assignments := make([]model.Assignment, 0, limit)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("pgAssignmentRepository.List scan: %w", err)
		}
		assignments = append(assignments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAssignmentRepository.List rows: %w", err)
	}
	return assignments, nil
}

func (r *pgAssignmentRepository) StartGrading(ctx context.Context, id string) (bool, error) {
	query := `UPDATE assignments
	          SET status = $1, grading_started_at = now(), updated_at = now()
	          WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, model.StatusGrading, id, model.StatusUploaded)
	if err != nil {
		if notFound(err) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("pgAssignmentRepository.StartGrading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgAssignmentRepository.StartGrading rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgAssignmentRepository) RevertGrading(ctx context.Context, id string) (bool, error) {
	query := `UPDATE assignments
	          SET status = $1, grading_started_at = NULL, updated_at = now()
	          WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, model.StatusUploaded, id, model.StatusGrading)
	if err != nil {
		if notFound(err) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("pgAssignmentRepository.RevertGrading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgAssignmentRepository.RevertGrading rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgAssignmentRepository) Resolve(ctx context.Context, id string, out model.Resolution) (bool, error) {
	query := `UPDATE assignments
	          SET status = $1, suggested_grade = $2, feedback = $3, error = $4, updated_at = now()
	          WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, out.Status, out.Grade, out.Feedback, out.Error, id, model.StatusGrading)
	if err != nil {
		if notFound(err) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("pgAssignmentRepository.Resolve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgAssignmentRepository.Resolve rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgAssignmentRepository) FailStale(ctx context.Context, cutoff time.Time, reason string) ([]string, error) {
	query := `UPDATE assignments
	          SET status = $1, error = $2, updated_at = now()
	          WHERE status = $3 AND grading_started_at < $4
	          RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, model.StatusFailed, reason, model.StatusGrading, cutoff)
	if err != nil {
		return nil, fmt.Errorf("pgAssignmentRepository.FailStale: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgAssignmentRepository.FailStale scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
