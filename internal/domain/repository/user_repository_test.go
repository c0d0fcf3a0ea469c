package repository

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// statementLog keeps every statement gorm sent, whitespace collapsed.
type statementLog struct {
	mutex sync.Mutex
	stmts []string
}

func (l *statementLog) match(expected, actual string) error {
	if err := sqlmock.QueryMatcherRegexp.Match(expected, actual); err != nil {
		return err
	}
	l.mutex.Lock()
	l.stmts = append(l.stmts, strings.Join(strings.Fields(actual), " "))
	l.mutex.Unlock()
	return nil
}

// find returns the first logged statement starting with prefix.
func (l *statementLog) find(t *testing.T, prefix string) string {
	t.Helper()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, s := range l.stmts {
		if strings.HasPrefix(s, prefix) {
			return s
		}
	}
	t.Fatalf("no statement starting with %q in %v", prefix, l.stmts)
	return ""
}

func newGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *statementLog) {
	t.Helper()
	log := &statementLog{}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(log.match)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock, log
}

var userColumns = []string{"id", "external_id", "email", "name", "image_url", "role", "created_at", "updated_at", "deleted_at"}

func TestGormUserRepositoryUpsertKeepsRole(t *testing.T) {
	db, mock, log := newGormMock(t)
	repo := NewGormUserRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs("user_1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "user_1", "new@example.com", "New Name", nil, "admin", now, now, nil))

	got, err := repo.Upsert(context.Background(), &model.User{
		ID: "u1", ExternalID: "user_1", Email: "new@example.com", Name: "New Name", Role: model.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role, "stored role wins over the incoming one")

	insert := log.find(t, `INSERT INTO "users"`)
	assert.Contains(t, insert, `ON CONFLICT ("external_id") WHERE deleted_at IS NULL DO UPDATE SET `+
		`"email"="excluded"."email","name"="excluded"."name","image_url"="excluded"."image_url","updated_at"="excluded"."updated_at"`)
	assert.NotContains(t, insert, `"role"="excluded"`)

	lookup := log.find(t, `SELECT * FROM "users"`)
	assert.Contains(t, lookup, `"users"."deleted_at" IS NULL`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUserRepositoryUpdateProfile(t *testing.T) {
	t.Run("only live rows are touched", func(t *testing.T) {
		db, mock, log := newGormMock(t)
		repo := NewGormUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users"`)).
			WithArgs("a@example.com", nil, "Ada", sqlmock.AnyArg(), "user_1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		_, err := repo.UpdateProfile(context.Background(), "user_1", "a@example.com", "Ada", nil)
		assert.ErrorIs(t, err, common.ErrNotFound)

		update := log.find(t, `UPDATE "users"`)
		assert.Contains(t, update, `WHERE external_id = $5 AND "users"."deleted_at" IS NULL`)
		assert.NotContains(t, update, `"role"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormUserRepositorySoftDeleteScrubs(t *testing.T) {
	db, mock, log := newGormMock(t)
	repo := NewGormUserRepository(db)
	now := time.Now()
	image := "https://img.example.com/u1.png"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs("user_1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "user_1", "ada@example.com", "Ada", image, "user", now, now, nil))
	// Map updates are written in sorted column order.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users"`)).
		WithArgs(sqlmock.AnyArg(), model.DeletedEmail, model.DeletedExternalID, nil, model.DeletedName, sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.SoftDelete(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, model.DeletedEmail, got.Email)
	assert.Equal(t, model.DeletedName, got.Name)
	assert.Equal(t, model.DeletedExternalID, got.ExternalID)
	assert.Nil(t, got.ImageURL)
	assert.True(t, got.DeletedAt.Valid)

	update := log.find(t, `UPDATE "users"`)
	assert.Contains(t, update, `SET "deleted_at"=$1,"email"=$2,"external_id"=$3,"image_url"=$4,"name"=$5,"updated_at"=$6`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUserRepositorySoftDeleteUnknown(t *testing.T) {
	db, mock, _ := newGormMock(t)
	repo := NewGormUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs("user_gone", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectRollback()

	_, err := repo.SoftDelete(context.Background(), "user_gone")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUserRepositoryFindByIDMalformed(t *testing.T) {
	db, mock, _ := newGormMock(t)
	repo := NewGormUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUserRepositoryUpdateRole(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "live user", affected: 1},
		{name: "no such user", affected: 0, wantErr: common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, log := newGormMock(t)
			repo := NewGormUserRepository(db)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users"`)).
				WithArgs(model.RoleInstructor, sqlmock.AnyArg(), "u1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			err := repo.UpdateRole(context.Background(), "u1", model.RoleInstructor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, log.find(t, `UPDATE "users"`), `"users"."deleted_at" IS NULL`)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
