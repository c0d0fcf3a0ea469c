package inmem

import (
	"context"
	"sort"
	"sync"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
)

type accessKey struct{ userID, courseID string }

type completionKey struct{ userID, lessonID string }

type CourseRepository struct {
	mutex     sync.RWMutex
	courses   map[string]*model.Course
	sections  map[string]*model.CourseSection
	lessons   map[string]*model.Lesson
	access    map[accessKey]model.UserCourseAccess
	completed map[completionKey]bool
}

var _ repository.CourseRepository = (*CourseRepository)(nil)

func NewCourseRepository() *CourseRepository {
	return &CourseRepository{
		courses:   map[string]*model.Course{},
		sections:  map[string]*model.CourseSection{},
		lessons:   map[string]*model.Lesson{},
		access:    map[accessKey]model.UserCourseAccess{},
		completed: map[completionKey]bool{},
	}
}

func (r *CourseRepository) CreateCourse(_ context.Context, c *model.Course) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.courses {
		if existing.Slug == c.Slug {
			return common.ErrConflict
		}
	}
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *CourseRepository) ListCourses(_ context.Context) ([]model.Course, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]model.Course, 0, len(r.courses))
	for _, c := range r.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CourseRepository) FindCourseByID(_ context.Context, id string) (*model.Course, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.courses[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CourseRepository) FindCourseBySlug(_ context.Context, slug string) (*model.Course, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, c := range r.courses {
		if c.Slug != slug {
			continue
		}
		cp := *c
		cp.Sections = nil
		for _, s := range r.sections {
			if s.CourseID != c.ID {
				continue
			}
			sec := *s
			sec.Lessons = nil
			for _, l := range r.lessons {
				if l.SectionID == s.ID {
					sec.Lessons = append(sec.Lessons, *l)
				}
			}
			sort.Slice(sec.Lessons, func(i, j int) bool { return sec.Lessons[i].Order < sec.Lessons[j].Order })
			cp.Sections = append(cp.Sections, sec)
		}
		sort.Slice(cp.Sections, func(i, j int) bool { return cp.Sections[i].Order < cp.Sections[j].Order })
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (r *CourseRepository) CreateSection(_ context.Context, s *model.CourseSection) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.courses[s.CourseID]; !ok {
		return common.ErrNotFound
	}
	if s.Order == 0 {
		for _, existing := range r.sections {
			if existing.CourseID == s.CourseID && existing.Order > s.Order {
				s.Order = existing.Order
			}
		}
		s.Order++
	}
	cp := *s
	r.sections[s.ID] = &cp
	return nil
}

func (r *CourseRepository) CreateLesson(_ context.Context, l *model.Lesson) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.sections[l.SectionID]; !ok {
		return common.ErrNotFound
	}
	if l.Order == 0 {
		for _, existing := range r.lessons {
			if existing.SectionID == l.SectionID && existing.Order > l.Order {
				l.Order = existing.Order
			}
		}
		l.Order++
	}
	cp := *l
	r.lessons[l.ID] = &cp
	return nil
}

func (r *CourseRepository) FindLesson(_ context.Context, lessonID string) (*model.Lesson, string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	l, ok := r.lessons[lessonID]
	if !ok {
		return nil, "", common.ErrNotFound
	}
	s, ok := r.sections[l.SectionID]
	if !ok {
		return nil, "", common.ErrNotFound
	}
	cp := *l
	return &cp, s.CourseID, nil
}

func (r *CourseRepository) GrantAccess(_ context.Context, a *model.UserCourseAccess) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.access[accessKey{a.UserID, a.CourseID}] = *a
	return nil
}

func (r *CourseRepository) RevokeAccess(_ context.Context, userID, courseID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	k := accessKey{userID, courseID}
	if _, ok := r.access[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.access, k)
	return nil
}

func (r *CourseRepository) HasAccess(_ context.Context, userID, courseID string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.access[accessKey{userID, courseID}]
	return ok, nil
}

func (r *CourseRepository) CompleteLesson(_ context.Context, userID, lessonID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.completed[completionKey{userID, lessonID}] = true
	return nil
}

func (r *CourseRepository) CountLessons(_ context.Context, courseID string) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for _, l := range r.lessons {
		if s, ok := r.sections[l.SectionID]; ok && s.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (r *CourseRepository) CountCompletedLessons(_ context.Context, userID, courseID string) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for k := range r.completed {
		if k.userID != userID {
			continue
		}
		l, ok := r.lessons[k.lessonID]
		if !ok {
			continue
		}
		if s, ok := r.sections[l.SectionID]; ok && s.CourseID == courseID {
			n++
		}
	}
	return n, nil
}
