package service

import "errors"

var (
	// ErrBusy is returned when an operation kept hitting transient conflicts
	// and exhausted its internal retries. Callers may retry at their level.
	ErrBusy = errors.New("temporarily busy, retry later")

	// ErrForbidden is returned when the caller is not allowed to perform the
	// operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials is returned for unknown emails or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
