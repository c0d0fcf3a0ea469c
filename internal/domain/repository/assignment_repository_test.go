package repository

import (
	"context"
	"database/sql"
	"net/http"
	"regexp"
	"testing"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (AssignmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPgAssignmentRepository(db), mock
}

func TestPgAssignmentRepositoryStartGrading(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "uploaded row moves", affected: 1, want: true},
		{name: "row in another state is untouched", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE assignments`)).
				WithArgs("grading", "a1", "uploaded").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.StartGrading(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgAssignmentRepositoryResolve(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := model.GradingOutcome{Success: true, Score: 87, Feedback: "Solid structure"}.Resolve()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assignments`)).
		WithArgs("graded", 87.0, "Solid structure", nil, "a1", "grading").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Resolve(context.Background(), "a1", res)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssignmentRepositoryFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	cols := []string{"id", "filename", "storage_key", "content_type", "size_bytes", "uploaded_by", "status",
		"suggested_grade", "feedback", "error", "grading_started_at", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM assignments WHERE id = $1`)).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "essay.docx", "assignments/a1/essay.docx", "application/octet-stream", 5, nil, "graded",
				87.0, "Solid structure", nil, now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM assignments WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	a, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusGraded, a.Status)
	require.NotNil(t, a.SuggestedGrade)
	assert.Equal(t, 87.0, *a.SuggestedGrade)
	assert.Nil(t, a.Error)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssignmentRepositoryRevertGrading(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`grading_started_at = NULL`)).
		WithArgs("uploaded", "a1", "grading").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assignments`)).
		WithArgs("uploaded", "a1", "grading").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.RevertGrading(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RevertGrading(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAssignmentRepositoryMalformedID(t *testing.T) {
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "a1"`}
	ctx := context.Background()

	tests := []struct {
		name   string
		expect func(sqlmock.Sqlmock)
		call   func(AssignmentRepository) error
	}{
		{
			name: "find",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(`FROM assignments WHERE id = $1`)).WithArgs("a1").WillReturnError(badUUID)
			},
			call: func(r AssignmentRepository) error { _, err := r.FindByID(ctx, "a1"); return err },
		},
		{
			name: "start grading",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`UPDATE assignments`)).WillReturnError(badUUID)
			},
			call: func(r AssignmentRepository) error { _, err := r.StartGrading(ctx, "a1"); return err },
		},
		{
			name: "resolve",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`UPDATE assignments`)).WillReturnError(badUUID)
			},
			call: func(r AssignmentRepository) error {
				_, err := r.Resolve(ctx, "a1", model.GradingOutcome{Success: true, Score: 1}.Resolve())
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.expect(mock)

			err := tt.call(repo)
			assert.ErrorIs(t, err, common.ErrNotFound)
			assert.Equal(t, http.StatusNotFound, common.HTTPStatusFromError(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgAssignmentRepositoryFailStale(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Now().Add(-15 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`RETURNING id`)).
		WithArgs("failed", "grading timed out", "grading", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := repo.FailStale(context.Background(), cutoff, "grading timed out")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
