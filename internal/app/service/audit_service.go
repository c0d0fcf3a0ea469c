package service

import (
	"context"
	"encoding/json"

	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/platform/logger"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// AuditService appends to the audit trail. Recording is best effort and never fails the caller.
type AuditService struct {
	repo repository.AuditRepository
	log  zerolog.Logger
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo, log: logger.Component("audit")}
}

func (s *AuditService) Record(ctx context.Context, actorID *string, action, targetType, targetID string, metadata map[string]interface{}) {
	if s == nil {
		return
	}
	raw := []byte("{}")
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			s.log.Warn().Err(err).Str("action", action).Msg("Dropping unserialisable audit metadata")
		} else {
			raw = b
		}
	}

	entry := &model.AuditLog{
		ActorUserID:   actorID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		EventMetadata: datatypes.JSON(raw),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("action", action).Str("target_id", targetID).Msg("Failed to write audit log")
	}
}

func (s *AuditService) History(ctx context.Context, targetType, targetID string) ([]model.AuditLog, error) {
	return s.repo.ListByTarget(ctx, targetType, targetID)
}
