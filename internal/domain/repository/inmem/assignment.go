// Package inmem holds map-backed repositories used by service and handler tests.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
)

type AssignmentRepository struct {
	mutex sync.RWMutex
	table map[string]*model.Assignment
	clock func() time.Time
}

var _ repository.AssignmentRepository = (*AssignmentRepository)(nil)

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{table: map[string]*model.Assignment{}, clock: time.Now}
}

// SetClock replaces the time source used for created_at/updated_at.
func (r *AssignmentRepository) SetClock(clock func() time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clock = clock
}

func (r *AssignmentRepository) Create(_ context.Context, a *model.Assignment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.table[a.ID]; ok {
		return common.ErrConflict
	}
	now := r.clock()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.table[a.ID] = &cp
	return nil
}

func (r *AssignmentRepository) FindByID(_ context.Context, id string) (*model.Assignment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	a, ok := r.table[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AssignmentRepository) List(_ context.Context, limit int) ([]model.Assignment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]model.Assignment, 0, len(r.table))
	for _, a := range r.table {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AssignmentRepository) StartGrading(_ context.Context, id string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.table[id]
	if !ok || a.Status != model.StatusUploaded {
		return false, nil
	}
	now := r.clock()
	a.Status = model.StatusGrading
	a.GradingStarted = &now
	a.UpdatedAt = now
	return true, nil
}

func (r *AssignmentRepository) RevertGrading(_ context.Context, id string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.table[id]
	if !ok || a.Status != model.StatusGrading {
		return false, nil
	}
	a.Status = model.StatusUploaded
	a.GradingStarted = nil
	a.UpdatedAt = r.clock()
	return true, nil
}

func (r *AssignmentRepository) Resolve(_ context.Context, id string, res model.Resolution) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.table[id]
	if !ok || a.Status != model.StatusGrading {
		return false, nil
	}
	a.Status = res.Status
	a.SuggestedGrade = res.Grade
	a.Feedback = res.Feedback
	a.Error = res.Error
	a.UpdatedAt = r.clock()
	return true, nil
}

func (r *AssignmentRepository) FailStale(_ context.Context, cutoff time.Time, reason string) ([]string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var ids []string
	for id, a := range r.table {
		if a.Status == model.StatusGrading && a.GradingStarted != nil && a.GradingStarted.Before(cutoff) {
			msg := reason
			a.Status = model.StatusFailed
			a.Error = &msg
			a.UpdatedAt = r.clock()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
