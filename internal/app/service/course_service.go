package service

import (
	"context"
	"errors"
	"fmt"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/platform/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

type CourseService struct {
	repo     repository.CourseRepository
	audit    *AuditService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewCourseService(repo repository.CourseRepository, audit *AuditService) *CourseService {
	return &CourseService{
		repo:     repo,
		audit:    audit,
		validate: validator.New(),
		log:      logger.Component("courses"),
	}
}

type CreateCourseRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type CreateSectionRequest struct {
	Name   string              `json:"name" validate:"required,max=200"`
	Status model.SectionStatus `json:"status" validate:"omitempty,oneof=private public"`
	Order  int                 `json:"order" validate:"gte=0"`
}

type CreateLessonRequest struct {
	SectionID   string             `json:"section_id" validate:"required,uuid"`
	Name        string             `json:"name" validate:"required,max=200"`
	Description *string            `json:"description"`
	VideoID     *string            `json:"video_id"`
	Status      model.LessonStatus `json:"status" validate:"omitempty,oneof=private public preview"`
	Order       int                `json:"order" validate:"gte=0"`
}

type GrantAccessRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role"`
}

func (s *CourseService) CreateCourse(ctx context.Context, actorID string, req CreateCourseRequest) (*model.Course, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFromValidator(err)
	}
	c := &model.Course{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Description: req.Description,
	}
	if c.Slug == "" {
		return nil, common.NewValidationError("name", "must contain letters or digits")
	}
	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	s.audit.Record(ctx, &actorID, model.AuditCourseCreated, model.AuditTargetCourse, c.ID, map[string]interface{}{"slug": c.Slug})
	s.log.Info().Str("course_id", c.ID).Str("slug", c.Slug).Msg("Course created")
	return c, nil
}

func (s *CourseService) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.repo.ListCourses(ctx)
}

// GetCourse returns the course tree as the given user may see it. Staff see everything;
// others see public sections, preview lessons, and public lessons of courses they hold access to.
func (s *CourseService) GetCourse(ctx context.Context, courseSlug, userID, role string) (*model.Course, error) {
	c, err := s.repo.FindCourseBySlug(ctx, courseSlug)
	if err != nil {
		return nil, err
	}
	if model.CanAccessAdminPage(role) {
		return c, nil
	}

	hasAccess := false
	if userID != "" {
		hasAccess, err = s.repo.HasAccess(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
	}

	sections := make([]model.CourseSection, 0, len(c.Sections))
	for _, sec := range c.Sections {
		if sec.Status != model.SectionPublic {
			continue
		}
		lessons := make([]model.Lesson, 0, len(sec.Lessons))
		for _, l := range sec.Lessons {
			if l.Status == model.LessonPreview || (hasAccess && l.Status == model.LessonPublic) {
				lessons = append(lessons, l)
			}
		}
		sec.Lessons = lessons
		sections = append(sections, sec)
	}
	c.Sections = sections
	return c, nil
}

func (s *CourseService) AddSection(ctx context.Context, courseID string, req CreateSectionRequest) (*model.CourseSection, error) {
	if err := requireID("course", courseID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFromValidator(err)
	}
	if req.Status == "" {
		req.Status = model.SectionPrivate
	}
	sec := &model.CourseSection{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Name:     req.Name,
		Status:   req.Status,
		Order:    req.Order,
	}
	if err := s.repo.CreateSection(ctx, sec); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("course %s: %w", courseID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	return sec, nil
}

func (s *CourseService) AddLesson(ctx context.Context, req CreateLessonRequest) (*model.Lesson, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFromValidator(err)
	}
	if req.Status == "" {
		req.Status = model.LessonPrivate
	}
	l := &model.Lesson{
		ID:          uuid.NewString(),
		SectionID:   req.SectionID,
		Name:        req.Name,
		Description: req.Description,
		VideoID:     req.VideoID,
		Status:      req.Status,
		Order:       req.Order,
	}
	if err := s.repo.CreateLesson(ctx, l); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("section %s: %w", req.SectionID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}
	return l, nil
}

func (s *CourseService) GrantAccess(ctx context.Context, actorID, courseID string, req GrantAccessRequest) error {
	if err := requireID("course", courseID); err != nil {
		return err
	}
	if err := s.validate.Struct(req); err != nil {
		return validationFromValidator(err)
	}
	role := model.RoleUser
	if req.Role != "" {
		r, ok := model.NormalizeRole(req.Role)
		if !ok {
			return common.NewValidationError("role", fmt.Sprintf("unknown role %q", req.Role))
		}
		role = r
	}
	if _, err := s.repo.FindCourseByID(ctx, courseID); err != nil {
		return err
	}
	if err := s.repo.GrantAccess(ctx, &model.UserCourseAccess{UserID: req.UserID, CourseID: courseID, Role: role}); err != nil {
		if common.IsForeignKeyViolation(err) {
			return common.Errorf("user %s: %w", req.UserID, common.ErrNotFound)
		}
		return err
	}
	s.audit.Record(ctx, &actorID, model.AuditAccessGranted, model.AuditTargetCourse, courseID,
		map[string]interface{}{"user_id": req.UserID, "role": role})
	return nil
}

func (s *CourseService) RevokeAccess(ctx context.Context, courseID, userID string) error {
	if err := requireID("course", courseID); err != nil {
		return err
	}
	if err := requireID("user", userID); err != nil {
		return err
	}
	return s.repo.RevokeAccess(ctx, userID, courseID)
}

// CompleteLesson is idempotent. Preview lessons can be completed without course access.
func (s *CourseService) CompleteLesson(ctx context.Context, userID, lessonID string) error {
	if err := requireID("lesson", lessonID); err != nil {
		return err
	}
	lesson, courseID, err := s.repo.FindLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if lesson.Status != model.LessonPreview {
		ok, err := s.repo.HasAccess(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return common.Errorf("no access to course %s: %w", courseID, common.ErrForbidden)
		}
	}
	return s.repo.CompleteLesson(ctx, userID, lessonID)
}

func (s *CourseService) Progress(ctx context.Context, userID, courseID string) (model.CourseProgress, error) {
	if err := requireID("course", courseID); err != nil {
		return model.CourseProgress{}, err
	}
	if _, err := s.repo.FindCourseByID(ctx, courseID); err != nil {
		return model.CourseProgress{}, err
	}
	total, err := s.repo.CountLessons(ctx, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}
	done, err := s.repo.CountCompletedLessons(ctx, userID, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}
	return model.NewCourseProgress(courseID, userID, done, total), nil
}
