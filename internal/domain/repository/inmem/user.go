package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"

	"gorm.io/gorm"
)

type UserRepository struct {
	mutex sync.RWMutex
	table map[string]*model.User // by internal id, soft-deleted rows included
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{table: map[string]*model.User{}}
}

func (r *UserRepository) live(externalID string) *model.User {
	for _, u := range r.table {
		if u.ExternalID == externalID && !u.DeletedAt.Valid {
			return u
		}
	}
	return nil
}

func (r *UserRepository) Upsert(_ context.Context, u *model.User) (*model.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	if existing := r.live(u.ExternalID); existing != nil {
		existing.Email, existing.Name, existing.ImageURL = u.Email, u.Name, u.ImageURL
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	cp := *u
	cp.CreatedAt, cp.UpdatedAt = now, now
	if cp.Role == "" {
		cp.Role = model.RoleUser
	}
	r.table[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, externalID, email, name string, imageURL *string) (*model.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u := r.live(externalID)
	if u == nil {
		return nil, common.ErrNotFound
	}
	u.Email, u.Name, u.ImageURL = email, name, imageURL
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *UserRepository) SoftDelete(_ context.Context, externalID string) (*model.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u := r.live(externalID)
	if u == nil {
		return nil, common.ErrNotFound
	}
	now := time.Now()
	u.Email, u.Name, u.ExternalID, u.ImageURL = model.DeletedEmail, model.DeletedName, model.DeletedExternalID, nil
	u.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (r *UserRepository) FindByExternalID(_ context.Context, externalID string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u := r.live(externalID)
	if u == nil {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.table[id]
	if !ok || u.DeletedAt.Valid {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) List(_ context.Context, limit, offset int) ([]model.User, int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	users := make([]model.User, 0, len(r.table))
	for _, u := range r.table {
		if !u.DeletedAt.Valid {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := int64(len(users))
	if offset >= len(users) {
		return []model.User{}, total, nil
	}
	users = users[offset:]
	if len(users) > limit {
		users = users[:limit]
	}
	return users, total, nil
}

func (r *UserRepository) UpdateRole(_ context.Context, id, role string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.table[id]
	if !ok || u.DeletedAt.Valid {
		return common.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	return nil
}

// All returns every row, deleted ones included.
func (r *UserRepository) All() []model.User {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]model.User, 0, len(r.table))
	for _, u := range r.table {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
