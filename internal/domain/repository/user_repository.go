package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	// Upsert inserts u or, when a live row with the same external id exists, refreshes its
	// profile fields. Role is never touched on conflict. Returns the stored row.
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	// UpdateProfile returns common.ErrNotFound when no live row matches.
	UpdateProfile(ctx context.Context, externalID, email, name string, imageURL *string) (*model.User, error)
	// SoftDelete scrubs and marks the live row. It returns common.ErrNotFound when none matched.
	SoftDelete(ctx context.Context, externalID string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	UpdateRole(ctx context.Context, id, role string) error
}

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Upsert(ctx context.Context, u *model.User) (*model.User, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "deleted_at IS NULL"},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "image_url", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("gormUserRepository.Upsert: %w", err)
	}
	return r.FindByExternalID(ctx, u.ExternalID)
}

func (r *gormUserRepository) UpdateProfile(ctx context.Context, externalID, email, name string, imageURL *string) (*model.User, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"email":      email,
			"name":       name,
			"image_url":  imageURL,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("gormUserRepository.UpdateProfile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, common.ErrNotFound
	}
	return r.FindByExternalID(ctx, externalID)
}

func (r *gormUserRepository) SoftDelete(ctx context.Context, externalID string) (*model.User, error) {
	var deleted *model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Where("external_id = ?", externalID).First(&u).Error; err != nil {
			return err
		}
		now := time.Now()
		err := tx.Model(&u).Updates(map[string]interface{}{
			"email":       model.DeletedEmail,
			"name":        model.DeletedName,
			"external_id": model.DeletedExternalID,
			"image_url":   nil,
			"deleted_at":  now,
			"updated_at":  now,
		}).Error
		if err != nil {
			return err
		}
		u.Email, u.Name, u.ExternalID, u.ImageURL = model.DeletedEmail, model.DeletedName, model.DeletedExternalID, nil
		u.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
		deleted = &u
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("gormUserRepository.SoftDelete: %w", err)
	}
	return deleted, nil
}

func (r *gormUserRepository) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("gormUserRepository.FindByExternalID: %w", err)
	}
	return &u, nil
}

func (r *gormUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if notFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("gormUserRepository.FindByID: %w", err)
	}
	return &u, nil
}

func (r *gormUserRepository) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	var (
		users []model.User
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.User{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gormUserRepository.List count: %w", err)
	}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("gormUserRepository.List: %w", err)
	}
	return users, total, nil
}

func (r *gormUserRepository) UpdateRole(ctx context.Context, id, role string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"role": role, "updated_at": time.Now()})
	if res.Error != nil {
		if notFound(res.Error) {
			return common.ErrNotFound
		}
		return fmt.Errorf("gormUserRepository.UpdateRole: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}
