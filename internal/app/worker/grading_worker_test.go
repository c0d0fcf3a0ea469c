package worker

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"agt_platform/internal/app/grader"
	"agt_platform/internal/app/service"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository/inmem"
	"agt_platform/internal/platform/queue"
	"agt_platform/internal/platform/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	mr          *miniredis.Miniredis
	repo        *inmem.AssignmentRepository
	jobs        *service.GradingJobService
	locker      *queue.Locker
	assignments *service.AssignmentService
}

func newWorkerFixture(t *testing.T) workerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repo := inmem.NewAssignmentRepository()
	jobs := service.NewGradingJobService(rdb, "grading_jobs_queue")
	return workerFixture{
		mr:          mr,
		repo:        repo,
		jobs:        jobs,
		locker:      queue.NewLocker(rdb, "grading_lock:", time.Minute),
		assignments: service.NewAssignmentService(repo, store, jobs, nil, 100),
	}
}

func (f workerFixture) startGrading(t *testing.T, filename, content string) string {
	t.Helper()
	ctx := context.Background()
	a, err := f.assignments.Create(ctx, service.CreateAssignmentRequest{Filename: filename, Content: strings.NewReader(content)})
	require.NoError(t, err)
	_, err = f.assignments.StartGrading(ctx, a.ID, nil)
	require.NoError(t, err)
	return a.ID
}

type errGrader struct{ err error }

func (g errGrader) Grade(context.Context, string, io.Reader) (model.GradingOutcome, error) {
	return model.GradingOutcome{}, g.err
}

func TestWorkerGradesQueuedAssignment(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	id := f.startGrading(t, "essay.docx", "An essay.")

	w := NewGradingWorker("w1", f.jobs, f.locker, f.assignments, grader.NewHeuristicGrader(), time.Minute)
	next, err := f.jobs.Next(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, id, next)
	w.ProcessWithLock(ctx, next)

	a, err := f.assignments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGraded, a.Status)
	require.NotNil(t, a.SuggestedGrade)
	assert.Equal(t, 85.0, *a.SuggestedGrade)
	assert.False(t, f.mr.Exists("grading_lock:"+id), "lock released")
}

func TestWorkerRecordsGraderError(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	id := f.startGrading(t, "solution.py", "print(1)")

	w := NewGradingWorker("w1", f.jobs, f.locker, f.assignments, errGrader{err: assert.AnError}, time.Minute)
	w.ProcessWithLock(ctx, id)

	a, err := f.assignments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, a.Status)
	require.NotNil(t, a.Error)
	assert.Contains(t, *a.Error, assert.AnError.Error())
}

func TestWorkerSkipsLockedAssignment(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	id := f.startGrading(t, "solution.py", "print(1)")

	held, err := f.locker.Acquire(ctx, id)
	require.NoError(t, err)
	defer held.Release(ctx)

	w := NewGradingWorker("w2", f.jobs, f.locker, f.assignments, grader.NewHeuristicGrader(), time.Minute)
	w.ProcessWithLock(ctx, id)

	a, err := f.assignments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, a.Status)
}

func TestWorkerIgnoresResolvedAndUnknown(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	id := f.startGrading(t, "solution.py", "print(1)")
	_, err := f.assignments.RecordResult(ctx, id, model.GradingOutcome{Success: true, Score: 70})
	require.NoError(t, err)

	w := NewGradingWorker("w1", f.jobs, f.locker, f.assignments, errGrader{err: assert.AnError}, time.Minute)
	w.ProcessWithLock(ctx, id)
	w.ProcessWithLock(ctx, "missing")

	a, err := f.assignments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGraded, a.Status)
	assert.Equal(t, 70.0, *a.SuggestedGrade)
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	f := newWorkerFixture(t)
	id := f.startGrading(t, "notebook.ipynb", "{}")

	w := NewGradingWorker("w1", f.jobs, f.locker, f.assignments, grader.NewHeuristicGrader(), time.Minute)
	w.pollTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		a, err := f.assignments.Get(context.Background(), id)
		return err == nil && a.Status == model.StatusGraded
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSweeperFailsStaleGradings(t *testing.T) {
	f := newWorkerFixture(t)
	f.repo.SetClock(func() time.Time { return time.Now().Add(-time.Hour) })
	id := f.startGrading(t, "solution.py", "print(1)")
	f.repo.SetClock(time.Now)

	s := NewSweeper(f.assignments, 15*time.Minute, time.Minute)
	ids, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	a, err := f.assignments.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, a.Status)
	assert.Contains(t, *a.Error, "timed out")
}
