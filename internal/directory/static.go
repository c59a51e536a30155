package directory

import (
	"context"
	"sync"
)

// Static is an in-memory directory for offline mode and tests.
type Static struct {
	mu       sync.RWMutex
	enrolled map[string]map[string]bool // courseID -> studentID
	teachers map[string]map[string]bool // courseID -> teacherID
}

func NewStatic() *Static {
	return &Static{
		enrolled: map[string]map[string]bool{},
		teachers: map[string]map[string]bool{},
	}
}

func (s *Static) Enroll(courseID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enrolled[courseID] == nil {
		s.enrolled[courseID] = map[string]bool{}
	}
	s.enrolled[courseID][studentID] = true
}

func (s *Static) AddTeacher(courseID, teacherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.teachers[courseID] == nil {
		s.teachers[courseID] = map[string]bool{}
	}
	s.teachers[courseID][teacherID] = true
}

func (s *Static) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enrolled[courseID][studentID], nil
}

func (s *Static) IsTeacherOfCourse(_ context.Context, courseID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teachers[courseID][userID], nil
}
