package inmem

import (
	"context"
	"sync"
	"time"

	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"

	"github.com/google/uuid"
)

type AuditRepository struct {
	mutex   sync.RWMutex
	entries []model.AuditLog
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(_ context.Context, entry *model.AuditLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *AuditRepository) ListByTarget(_ context.Context, targetType, targetID string) ([]model.AuditLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []model.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Actions lists recorded actions in insertion order.
func (r *AuditRepository) Actions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}
