package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"class-enroll/internal/model"
	"class-enroll/internal/repository"
)

// Class schedule business rules.
const (
	minClassDuration = 30 * time.Minute
	maxClassDuration = 8 * time.Hour
	maxClassCapacity = 100_000
)

// ClassService orchestrates class lifecycle operations.
type ClassService struct {
	classes repository.ClassRegistry
	now     func() time.Time
}

// NewClassService constructs a ClassService.
func NewClassService(classes repository.ClassRegistry) *ClassService {
	return &ClassService{classes: classes, now: time.Now}
}

// Create validates the request and creates a class hosted by the caller.
// Only admins create classes.
func (s *ClassService) Create(ctx context.Context, caller model.Identity, req model.CreateClassRequest) (*model.Class, error) {
	if !caller.IsAdmin {
		return nil, ErrForbidden
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("class title is required")
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if req.Capacity > maxClassCapacity {
		return nil, fmt.Errorf("capacity cannot exceed %d", maxClassCapacity)
	}

	now := s.now()
	if !req.StartAt.Before(req.EndAt) {
		return nil, fmt.Errorf("start time must be before end time")
	}
	if !req.StartAt.After(now) {
		return nil, fmt.Errorf("start time must be in the future")
	}
	duration := req.EndAt.Sub(req.StartAt)
	if duration < minClassDuration {
		return nil, fmt.Errorf("class must run at least %s", minClassDuration)
	}
	if duration > maxClassDuration {
		return nil, fmt.Errorf("class cannot run longer than %s", maxClassDuration)
	}

	class := model.Class{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Capacity:    req.Capacity,
		StartAt:     req.StartAt.UTC(),
		EndAt:       req.EndAt.UTC(),
		HostID:      caller.UserID,
		CreatedAt:   now.UTC(),
	}
	if err := s.classes.CreateClass(ctx, class); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return &class, nil
}

// Get returns a single class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (model.Class, error) {
	if id == "" {
		return model.Class{}, fmt.Errorf("class id is required")
	}
	return s.classes.GetClass(ctx, id)
}

// List returns a page of classes, excluding already-ended ones unless asked.
func (s *ClassService) List(ctx context.Context, page, pageSize int, includeExpired bool) (model.Page[model.Class], error) {
	return s.classes.ListClasses(ctx, page, pageSize, includeExpired, s.now())
}

// Delete removes a class and, atomically with it, every application for it.
// Only the class host or an admin may delete.
func (s *ClassService) Delete(ctx context.Context, caller model.Identity, id string) error {
	class, err := s.classes.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if class.HostID != caller.UserID && !caller.IsAdmin {
		return ErrForbidden
	}
	return s.classes.DeleteClass(ctx, id)
}
