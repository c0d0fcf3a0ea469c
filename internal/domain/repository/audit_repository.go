package repository

import (
	"context"
	"fmt"

	"agt_platform/internal/domain/model"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]model.AuditLog, error)
}

type gormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) AuditRepository {
	return &gormAuditRepository{db: db}
}

func (r *gormAuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("gormAuditRepository.Create: %w", err)
	}
	return nil
}

func (r *gormAuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("gormAuditRepository.ListByTarget: %w", err)
	}
	return entries, nil
}
