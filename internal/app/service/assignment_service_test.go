package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository/inmem"
	"agt_platform/internal/platform/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mutex sync.Mutex
	ids   []string
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *fakeQueue) Enqueued() []string {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]string(nil), q.ids...)
}

type assignmentFixture struct {
	svc   *AssignmentService
	repo  *inmem.AssignmentRepository
	audit *inmem.AuditRepository
	store *storage.LocalStorage
	queue *fakeQueue
}

func newAssignmentFixture(t *testing.T) assignmentFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := assignmentFixture{
		repo:  inmem.NewAssignmentRepository(),
		audit: inmem.NewAuditRepository(),
		store: store,
		queue: &fakeQueue{},
	}
	f.svc = NewAssignmentService(f.repo, f.store, f.queue, NewAuditService(f.audit), 100)
	return f
}

func (f assignmentFixture) upload(t *testing.T, filename, content string) *model.Assignment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), CreateAssignmentRequest{
		Filename: filename,
		Content:  strings.NewReader(content),
	})
	require.NoError(t, err)
	return a
}

func TestAssignmentServiceCreate(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	a := f.upload(t, "My Essay.docx", "hello")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "My Essay.docx", a.Filename)
	assert.Equal(t, model.StatusUploaded, a.Status)
	assert.Equal(t, int64(5), a.SizeBytes)
	assert.Equal(t, "assignments/"+a.ID+"/my-essay.docx", a.StorageKey)

	ok, err := f.store.Exists(ctx, a.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := f.svc.OpenSubmission(ctx, a)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestAssignmentServiceCreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  io.Reader
	}{
		{"missing file", "essay.pdf", nil},
		{"empty content", "essay.pdf", strings.NewReader("")},
		{"empty filename", "", strings.NewReader("x")},
		{"disallowed extension", "virus.exe", strings.NewReader("x")},
	}
	f := newAssignmentFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), CreateAssignmentRequest{Filename: tt.filename, Content: tt.content})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)

			var verr *common.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "file", verr.Field)
		})
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	a := f.upload(t, "essay.docx", "draft")
	assert.Equal(t, model.StatusUploaded, a.Status)

	started, err := f.svc.StartGrading(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, started.Status)
	assert.NotNil(t, started.GradingStarted)
	assert.Equal(t, []string{a.ID}, f.queue.Enqueued())

	graded, err := f.svc.RecordResult(ctx, a.ID, model.GradingOutcome{Success: true, Score: 87, Feedback: "Good structure"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusGraded, graded.Status)
	require.NotNil(t, graded.SuggestedGrade)
	assert.Equal(t, 87.0, *graded.SuggestedGrade)
	require.NotNil(t, graded.Feedback)
	assert.Equal(t, "Good structure", *graded.Feedback)

	_, err = f.svc.StartGrading(ctx, a.ID, nil)
	assert.ErrorIs(t, err, common.ErrStateConflict)

	after, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGraded, after.Status)
	assert.Len(t, f.queue.Enqueued(), 1)

	assert.Equal(t, []string{model.AuditGradingStarted, model.AuditGradingRecorded}, f.audit.Actions())
}

func TestStartGradingRejectsNonUploaded(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	a := f.upload(t, "solution.py", "print(1)")
	_, err := f.svc.StartGrading(ctx, a.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.StartGrading(ctx, a.ID, nil)
	assert.ErrorIs(t, err, common.ErrStateConflict)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, got.Status)

	_, err = f.svc.StartGrading(ctx, "missing", nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStartGradingConcurrentCallers(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.upload(t, "notebook.ipynb", "{}")

	const callers = 16
	var (
		wg        sync.WaitGroup
		mutex     sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartGrading(context.Background(), a.ID, nil)
			mutex.Lock()
			defer mutex.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, common.ErrStateConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, f.queue.Enqueued(), 1)
}

func TestStartGradingEnqueueFailure(t *testing.T) {
	f := newAssignmentFixture(t)
	f.queue.err = errors.New("redis down")
	ctx := context.Background()

	a := f.upload(t, "essay.pdf", "x")
	_, err := f.svc.StartGrading(ctx, a.ID, nil)
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, got.Status)
	assert.Nil(t, got.GradingStarted)
	assert.Nil(t, got.Error)

	f.queue.err = nil
	got, err = f.svc.StartGrading(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, got.Status)
	assert.Equal(t, []string{a.ID}, f.queue.Enqueued())
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "", "../etc/passwd"} {
		_, err := f.svc.Get(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound, "get %q", id)
		_, err = f.svc.StartGrading(ctx, id, nil)
		assert.ErrorIs(t, err, common.ErrNotFound, "start %q", id)
		_, err = f.svc.RecordResult(ctx, id, model.GradingOutcome{Success: true, Score: 50})
		assert.ErrorIs(t, err, common.ErrNotFound, "record %q", id)
	}
}

func TestRecordResult(t *testing.T) {
	tests := []struct {
		name       string
		outcome    model.GradingOutcome
		wantStatus model.AssignmentStatus
		wantGrade  *float64
	}{
		{"success in range", model.GradingOutcome{Success: true, Score: 100, Feedback: "ok"}, model.StatusGraded, ptrFloat(100)},
		{"score above range", model.GradingOutcome{Success: true, Score: 101}, model.StatusFailed, nil},
		{"negative score", model.GradingOutcome{Success: true, Score: -1}, model.StatusFailed, nil},
		{"backend error", model.GradingOutcome{Success: false, Error: "model timeout"}, model.StatusFailed, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			ctx := context.Background()
			a := f.upload(t, "essay.pdf", "x")
			_, err := f.svc.StartGrading(ctx, a.ID, nil)
			require.NoError(t, err)

			got, err := f.svc.RecordResult(ctx, a.ID, tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantGrade, got.SuggestedGrade)
			if tt.wantStatus == model.StatusFailed {
				require.NotNil(t, got.Error)
				assert.True(t, strings.HasPrefix(*got.Error, "Grading failed"))
				assert.Nil(t, got.Feedback)
			}

			_, err = f.svc.RecordResult(ctx, a.ID, tt.outcome)
			assert.ErrorIs(t, err, common.ErrStateConflict)
		})
	}
}

func TestRecordResultBeforeGrading(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.upload(t, "essay.pdf", "x")

	_, err := f.svc.RecordResult(context.Background(), a.ID, model.GradingOutcome{Success: true, Score: 50})
	assert.ErrorIs(t, err, common.ErrStateConflict)

	_, err = f.svc.RecordResult(context.Background(), "missing", model.GradingOutcome{Success: true, Score: 50})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetIsIdempotent(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.upload(t, "essay.pdf", "x")

	first, err := f.svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	second, err := f.svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListClampsLimit(t *testing.T) {
	f := newAssignmentFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.repo.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	f.svc.listLimit = 3

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.upload(t, "a.txt", "x").ID)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, 3},
		{-1, 3},
		{2, 2},
		{50, 3},
	}
	for _, tt := range tests {
		got, err := f.svc.List(context.Background(), tt.limit)
		require.NoError(t, err)
		assert.Len(t, got, tt.want)
		assert.Equal(t, ids[4], got[0].ID, "most recent first")
	}
}

func TestFailStale(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.repo.SetClock(func() time.Time { return now.Add(-time.Hour) })

	old := f.upload(t, "old.py", "x")
	_, err := f.svc.StartGrading(ctx, old.ID, nil)
	require.NoError(t, err)

	f.repo.SetClock(time.Now)
	fresh := f.upload(t, "fresh.py", "x")
	_, err = f.svc.StartGrading(ctx, fresh.ID, nil)
	require.NoError(t, err)

	ids, err := f.svc.FailStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)

	got, err := f.svc.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	got, err = f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, got.Status)
}

func ptrFloat(f float64) *float64 { return &f }
