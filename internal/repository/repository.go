// Package repository defines the persistence contracts for the enrollment
// system and its sentinel errors. Implementations: PostgreSQL (production)
// and an embedded in-memory store (tests, single-process deployments).
package repository

import (
	"context"
	"errors"
	"time"

	"class-enroll/internal/model"
)

var (
	// ErrClassNotFound is returned when the requested class does not exist.
	ErrClassNotFound = errors.New("class not found")

	// ErrClassStarted is returned when the class has already begun.
	ErrClassStarted = errors.New("class has already started")

	// ErrClassFull is returned when a class has no remaining capacity.
	ErrClassFull = errors.New("class is fully booked")

	// ErrAlreadyApplied is returned when the user holds an application for
	// the class, whether detected by the in-transaction check or by the
	// (class_id, user_id) uniqueness constraint.
	ErrAlreadyApplied = errors.New("user already applied to this class")

	// ErrApplicationNotFound is returned when no application exists for the
	// (user, class) pair.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering with an email already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrSerialization marks a transient concurrency conflict. The service
	// layer retries these a bounded number of times; it never reaches callers.
	ErrSerialization = errors.New("serialization conflict")
)

// ClassRegistry owns class records.
type ClassRegistry interface {
	CreateClass(ctx context.Context, class model.Class) error
	GetClass(ctx context.Context, id string) (model.Class, error)
	ListClasses(ctx context.Context, page, pageSize int, includeExpired bool, now time.Time) (model.Page[model.Class], error)
	// DeleteClass removes the class and every application for it as one
	// atomic operation, using the same per-class lock scope as admissions.
	DeleteClass(ctx context.Context, id string) error
}

// ApplicationLedger owns application records and the per-class admission
// critical section.
type ApplicationLedger interface {
	// AdmitApplicant atomically verifies, in order, that the class exists,
	// has not started as of `at`, has no application for the user, and has
	// occupancy below capacity, then inserts the application. The check and
	// the insert are indivisible with respect to concurrent AdmitApplicant
	// and RemoveApplicant calls for the same class.
	AdmitApplicant(ctx context.Context, classID, userID string, at time.Time) (model.Application, error)

	// RemoveApplicant atomically deletes the user's application, under the
	// same per-class lock scope as AdmitApplicant.
	RemoveApplicant(ctx context.Context, classID, userID string, at time.Time) error

	CountForClass(ctx context.Context, classID string) (model.Occupancy, error)
	ListForClass(ctx context.Context, classID string, page, pageSize int) (model.Page[model.Application], error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) (model.Page[model.Application], error)
}

// UserRepository owns user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// Normalize clamps pagination parameters to sane bounds.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
