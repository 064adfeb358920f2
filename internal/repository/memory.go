package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"class-enroll/internal/model"
)

// MemoryStore is an embedded implementation of ClassRegistry,
// ApplicationLedger and UserRepository backed by process memory.
//
// Concurrency control mirrors the Postgres row-lock discipline: each class
// carries its own mutex, held across the whole check-then-write sequence of
// an admission or cancellation. The store-level RWMutex guards only the maps
// themselves, so operations on different classes never serialize against
// each other.
type MemoryStore struct {
	mu      sync.RWMutex
	classes map[string]*memClass
	users   map[string]model.User
	emails  map[string]string
}

type memClass struct {
	mu      sync.Mutex
	deleted bool
	class   model.Class
	apps    []model.Application
	byUser  map[string]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		classes: make(map[string]*memClass),
		users:   make(map[string]model.User),
		emails:  make(map[string]string),
	}
}

func (s *MemoryStore) getClass(id string) (*memClass, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mc, ok := s.classes[id]
	return mc, ok
}

// ─── ClassRegistry ────────────────────────────────────────────────────────────

// CreateClass implements ClassRegistry.
func (s *MemoryStore) CreateClass(ctx context.Context, class model.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class.ID] = &memClass{
		class:  class,
		byUser: make(map[string]struct{}),
	}
	return nil
}

// GetClass implements ClassRegistry.
func (s *MemoryStore) GetClass(ctx context.Context, id string) (model.Class, error) {
	mc, ok := s.getClass(id)
	if !ok {
		return model.Class{}, ErrClassNotFound
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.deleted {
		return model.Class{}, ErrClassNotFound
	}
	return mc.class, nil
}

// ListClasses implements ClassRegistry.
func (s *MemoryStore) ListClasses(ctx context.Context, page, pageSize int, includeExpired bool, now time.Time) (model.Page[model.Class], error) {
	page, pageSize = Normalize(page, pageSize)

	s.mu.RLock()
	all := make([]model.Class, 0, len(s.classes))
	for _, mc := range s.classes {
		all = append(all, mc.class)
	}
	s.mu.RUnlock()

	filtered := all[:0]
	for _, c := range all {
		if includeExpired || !c.Expired(now) {
			filtered = append(filtered, c)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].StartAt.Equal(filtered[j].StartAt) {
			return filtered[i].StartAt.Before(filtered[j].StartAt)
		}
		return filtered[i].ID < filtered[j].ID
	})

	return paginate(filtered, page, pageSize), nil
}

// DeleteClass implements ClassRegistry. Marking the entry deleted under its
// own mutex fences out any admission that already holds a pointer to it, so
// the cascade removes the class and its applications as one atomic step.
func (s *MemoryStore) DeleteClass(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.classes[id]
	if !ok {
		return ErrClassNotFound
	}
	mc.mu.Lock()
	mc.deleted = true
	mc.apps = nil
	mc.byUser = nil
	mc.mu.Unlock()
	delete(s.classes, id)
	return nil
}

// ─── ApplicationLedger ────────────────────────────────────────────────────────

// AdmitApplicant implements ApplicationLedger.
func (s *MemoryStore) AdmitApplicant(ctx context.Context, classID, userID string, at time.Time) (model.Application, error) {
	mc, ok := s.getClass(classID)
	if !ok {
		return model.Application{}, ErrClassNotFound
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.deleted {
		return model.Application{}, ErrClassNotFound
	}
	if mc.class.Started(at) {
		return model.Application{}, ErrClassStarted
	}
	if _, dup := mc.byUser[userID]; dup {
		return model.Application{}, ErrAlreadyApplied
	}
	if len(mc.apps) >= mc.class.Capacity {
		return model.Application{}, ErrClassFull
	}

	app := model.Application{
		ID:        uuid.New().String(),
		ClassID:   classID,
		UserID:    userID,
		AppliedAt: at.UTC(),
	}
	mc.apps = append(mc.apps, app)
	mc.byUser[userID] = struct{}{}
	return app, nil
}

// RemoveApplicant implements ApplicationLedger.
func (s *MemoryStore) RemoveApplicant(ctx context.Context, classID, userID string, at time.Time) error {
	mc, ok := s.getClass(classID)
	if !ok {
		return ErrClassNotFound
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.deleted {
		return ErrClassNotFound
	}
	if mc.class.Started(at) {
		return ErrClassStarted
	}
	if _, exists := mc.byUser[userID]; !exists {
		return ErrApplicationNotFound
	}

	delete(mc.byUser, userID)
	for i, app := range mc.apps {
		if app.UserID == userID {
			mc.apps = append(mc.apps[:i], mc.apps[i+1:]...)
			break
		}
	}
	return nil
}

// CountForClass implements ApplicationLedger.
func (s *MemoryStore) CountForClass(ctx context.Context, classID string) (model.Occupancy, error) {
	mc, ok := s.getClass(classID)
	if !ok {
		return model.Occupancy{}, ErrClassNotFound
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.deleted {
		return model.Occupancy{}, ErrClassNotFound
	}
	return model.Occupancy{Current: len(mc.apps), Max: mc.class.Capacity}, nil
}

// ListForClass implements ApplicationLedger. Admission order, oldest first.
func (s *MemoryStore) ListForClass(ctx context.Context, classID string, page, pageSize int) (model.Page[model.Application], error) {
	page, pageSize = Normalize(page, pageSize)

	mc, ok := s.getClass(classID)
	if !ok {
		return model.Page[model.Application]{}, ErrClassNotFound
	}
	mc.mu.Lock()
	apps := make([]model.Application, len(mc.apps))
	copy(apps, mc.apps)
	mc.mu.Unlock()

	return paginate(apps, page, pageSize), nil
}

// ListForUser implements ApplicationLedger. Most recent first.
func (s *MemoryStore) ListForUser(ctx context.Context, userID string, page, pageSize int) (model.Page[model.Application], error) {
	page, pageSize = Normalize(page, pageSize)

	s.mu.RLock()
	classes := make([]*memClass, 0, len(s.classes))
	for _, mc := range s.classes {
		classes = append(classes, mc)
	}
	s.mu.RUnlock()

	var apps []model.Application
	for _, mc := range classes {
		mc.mu.Lock()
		if !mc.deleted {
			if _, ok := mc.byUser[userID]; ok {
				for _, app := range mc.apps {
					if app.UserID == userID {
						apps = append(apps, app)
					}
				}
			}
		}
		mc.mu.Unlock()
	}

	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].AppliedAt.Equal(apps[j].AppliedAt) {
			return apps[i].AppliedAt.After(apps[j].AppliedAt)
		}
		return apps[i].ID > apps[j].ID
	})

	return paginate(apps, page, pageSize), nil
}

// ─── UserRepository ───────────────────────────────────────────────────────────

// CreateUser implements UserRepository.
func (s *MemoryStore) CreateUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[user.Email]; taken {
		return ErrEmailTaken
	}
	s.users[user.ID] = user
	s.emails[user.Email] = user.ID
	return nil
}

// GetUser implements UserRepository.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return user, nil
}

// GetUserByEmail implements UserRepository.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func paginate[T any](items []T, page, pageSize int) model.Page[T] {
	result := model.Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: int64(len(items)),
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return result
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	result.Items = append(result.Items, items[start:end]...)
	return result
}
