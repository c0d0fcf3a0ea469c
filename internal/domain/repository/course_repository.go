package repository

import (
	"context"
	"errors"
	"fmt"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository interface {
	CreateCourse(ctx context.Context, c *model.Course) error
	ListCourses(ctx context.Context) ([]model.Course, error)
	FindCourseByID(ctx context.Context, id string) (*model.Course, error)
	// FindCourseBySlug loads sections and lessons ordered by their order column.
	FindCourseBySlug(ctx context.Context, slug string) (*model.Course, error)

	// CreateSection and CreateLesson append at the end when Order is zero.
	CreateSection(ctx context.Context, s *model.CourseSection) error
	CreateLesson(ctx context.Context, l *model.Lesson) error
	FindLesson(ctx context.Context, lessonID string) (*model.Lesson, string, error) // lesson, course id

	GrantAccess(ctx context.Context, a *model.UserCourseAccess) error
	RevokeAccess(ctx context.Context, userID, courseID string) error
	HasAccess(ctx context.Context, userID, courseID string) (bool, error)

	CompleteLesson(ctx context.Context, userID, lessonID string) error
	CountLessons(ctx context.Context, courseID string) (int, error)
	CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error)
}

type gormCourseRepository struct {
	db *gorm.DB
}

func NewGormCourseRepository(db *gorm.DB) CourseRepository {
	return &gormCourseRepository{db: db}
}

func (r *gormCourseRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("course with slug %q already exists: %w", c.Slug, common.ErrConflict)
		}
		return fmt.Errorf("gormCourseRepository.CreateCourse: %w", err)
	}
	return nil
}

func (r *gormCourseRepository) ListCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if err := r.db.WithContext(ctx).Order("name").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("gormCourseRepository.ListCourses: %w", err)
	}
	return courses, nil
}

func (r *gormCourseRepository) FindCourseByID(ctx context.Context, id string) (*model.Course, error) {
	var c model.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if notFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("gormCourseRepository.FindCourseByID: %w", err)
	}
	return &c, nil
}

func (r *gormCourseRepository) FindCourseBySlug(ctx context.Context, slug string) (*model.Course, error) {
	var c model.Course
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order(`"order"`) }).
		Preload("Sections.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order(`"order"`) }).
		Where("slug = ?", slug).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("gormCourseRepository.FindCourseBySlug: %w", err)
	}
	return &c, nil
}

func (r *gormCourseRepository) CreateSection(ctx context.Context, s *model.CourseSection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.Order == 0 {
			var maxOrder int
			if err := tx.Model(&model.CourseSection{}).Where("course_id = ?", s.CourseID).
				Select(`COALESCE(MAX("order"), 0)`).Scan(&maxOrder).Error; err != nil {
				return fmt.Errorf("gormCourseRepository.CreateSection order: %w", err)
			}
			s.Order = maxOrder + 1
		}
		if err := tx.Create(s).Error; err != nil {
			if common.IsForeignKeyViolation(err) {
				return fmt.Errorf("course %s: %w", s.CourseID, common.ErrNotFound)
			}
			return fmt.Errorf("gormCourseRepository.CreateSection: %w", err)
		}
		return nil
	})
}

func (r *gormCourseRepository) CreateLesson(ctx context.Context, l *model.Lesson) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if l.Order == 0 {
			var maxOrder int
			if err := tx.Model(&model.Lesson{}).Where("section_id = ?", l.SectionID).
				Select(`COALESCE(MAX("order"), 0)`).Scan(&maxOrder).Error; err != nil {
				return fmt.Errorf("gormCourseRepository.CreateLesson order: %w", err)
			}
			l.Order = maxOrder + 1
		}
		if err := tx.Create(l).Error; err != nil {
			if common.IsForeignKeyViolation(err) {
				return fmt.Errorf("section %s: %w", l.SectionID, common.ErrNotFound)
			}
			return fmt.Errorf("gormCourseRepository.CreateLesson: %w", err)
		}
		return nil
	})
}

func (r *gormCourseRepository) FindLesson(ctx context.Context, lessonID string) (*model.Lesson, string, error) {
	var row struct {
		model.Lesson
		CourseID string
	}
	err := r.db.WithContext(ctx).Table("lessons").
		Select("lessons.*, course_sections.course_id AS course_id").
		Joins("JOIN course_sections ON course_sections.id = lessons.section_id").
		Where("lessons.id = ?", lessonID).
		Take(&row).Error
	if err != nil {
		if notFound(err) {
			return nil, "", common.ErrNotFound
		}
		return nil, "", fmt.Errorf("gormCourseRepository.FindLesson: %w", err)
	}
	return &row.Lesson, row.CourseID, nil
}

func (r *gormCourseRepository) GrantAccess(ctx context.Context, a *model.UserCourseAccess) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("gormCourseRepository.GrantAccess: %w", err)
	}
	return nil
}

func (r *gormCourseRepository) RevokeAccess(ctx context.Context, userID, courseID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&model.UserCourseAccess{})
	if res.Error != nil {
		return fmt.Errorf("gormCourseRepository.RevokeAccess: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *gormCourseRepository) HasAccess(ctx context.Context, userID, courseID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.UserCourseAccess{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("gormCourseRepository.HasAccess: %w", err)
	}
	return n > 0, nil
}

func (r *gormCourseRepository) CompleteLesson(ctx context.Context, userID, lessonID string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserLessonComplete{UserID: userID, LessonID: lessonID}).Error
	if err != nil {
		return fmt.Errorf("gormCourseRepository.CompleteLesson: %w", err)
	}
	return nil
}

func (r *gormCourseRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Lesson{}).
		Joins("JOIN course_sections ON course_sections.id = lessons.section_id").
		Where("course_sections.course_id = ?", courseID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("gormCourseRepository.CountLessons: %w", err)
	}
	return int(n), nil
}

func (r *gormCourseRepository) CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.UserLessonComplete{}).
		Joins("JOIN lessons ON lessons.id = user_lesson_complete.lesson_id").
		Joins("JOIN course_sections ON course_sections.id = lessons.section_id").
		Where("user_lesson_complete.user_id = ? AND course_sections.course_id = ?", userID, courseID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("gormCourseRepository.CountCompletedLessons: %w", err)
	}
	return int(n), nil
}
