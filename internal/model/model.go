// Package model defines the core domain types for the class enrollment system.
package model

import "time"

// User is an account that can host classes and apply to them.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Class represents a scheduled, capacity-limited class.
type Class struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	StartAt     time.Time `json:"start_at" db:"start_at"`
	EndAt       time.Time `json:"end_at" db:"end_at"`
	HostID      string    `json:"host_id" db:"host_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Started reports whether the class has begun as of the given instant.
func (c *Class) Started(at time.Time) bool {
	return !at.Before(c.StartAt)
}

// Expired reports whether the class has ended as of the given instant.
func (c *Class) Expired(at time.Time) bool {
	return !at.Before(c.EndAt)
}

// Application records one user's admitted seat in one class.
// At most one application exists per (UserID, ClassID) pair.
type Application struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id" db:"class_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	AppliedAt time.Time `json:"applied_at" db:"applied_at"`
}

// Occupancy is the derived seat count for a class.
type Occupancy struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Remaining returns the number of free seats.
func (o Occupancy) Remaining() int {
	return o.Max - o.Current
}

// Full returns true when no seats remain.
func (o Occupancy) Full() bool {
	return o.Current >= o.Max
}

// Page is a single page of a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
}

// ApplicationSummary is the listing projection of an Application.
type ApplicationSummary struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	UserID    string    `json:"user_id"`
	AppliedAt time.Time `json:"applied_at"`
}

// Identity is the authenticated caller resolved by the auth middleware.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// CreateClassRequest is the payload for creating a new class.
type CreateClassRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

// RegisterUserRequest is the payload for creating an account.
type RegisterUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest is the payload for obtaining a bearer token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
