// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"class-enroll/internal/model"
	"class-enroll/internal/monitoring"
	"class-enroll/internal/notify"
	"class-enroll/internal/repository"
)

// maxAdmitAttempts bounds internal retries of the atomic admission and
// cancellation transactions on transient conflicts. Beyond this the caller
// gets ErrBusy and decides whether to retry.
const maxAdmitAttempts = 4

// Notifier accepts fire-and-forget notification events.
type Notifier interface {
	Enqueue(event notify.Event)
}

// AdmissionService is the transactional boundary for applying to and
// cancelling from classes. The atomicity of check+insert lives in the
// ledger; this layer adds the retry bound, the error taxonomy, metrics, and
// the post-commit notification side effect.
type AdmissionService struct {
	classes  repository.ClassRegistry
	ledger   repository.ApplicationLedger
	notifier Notifier
	now      func() time.Time
}

// NewAdmissionService constructs an AdmissionService. notifier may be nil.
func NewAdmissionService(
	classes repository.ClassRegistry,
	ledger repository.ApplicationLedger,
	notifier Notifier,
) *AdmissionService {
	return &AdmissionService{
		classes:  classes,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// Apply admits the user to the class if it exists, has not started, the user
// has not already applied, and a seat remains. Exactly one concurrent caller
// can take the last seat; the rest are rejected with repository.ErrClassFull.
//
// Apply is not idempotent at the network layer: a caller whose request timed
// out after commit holds a seat and will see ErrAlreadyApplied on retry.
func (s *AdmissionService) Apply(ctx context.Context, classID, userID string) (model.Application, error) {
	if classID == "" || userID == "" {
		return model.Application{}, fmt.Errorf("class id and user id are required")
	}

	start := time.Now()
	var app model.Application
	var err error
	for attempt := 1; attempt <= maxAdmitAttempts; attempt++ {
		app, err = s.ledger.AdmitApplicant(ctx, classID, userID, s.now())
		if !errors.Is(err, repository.ErrSerialization) {
			break
		}
		if attempt < maxAdmitAttempts {
			monitoring.RecordAdmissionRetry()
		}
	}
	if errors.Is(err, repository.ErrSerialization) {
		err = ErrBusy
	}
	monitoring.RecordAdmission(admissionResult(err), time.Since(start))
	if err != nil {
		return model.Application{}, err
	}

	// The admission is committed; notification is best-effort from here and
	// never awaited or rolled back.
	if s.notifier != nil {
		title := ""
		if class, classErr := s.classes.GetClass(ctx, classID); classErr == nil {
			title = class.Title
		}
		s.notifier.Enqueue(notify.Event{
			Type:       notify.EventAdmitted,
			UserID:     userID,
			ClassID:    classID,
			ClassTitle: title,
			At:         app.AppliedAt,
		})
	}
	return app, nil
}

// Cancel removes the user's application, freeing a seat. It uses the same
// per-class lock discipline as Apply, so a cancellation never lets a
// concurrent admission read stale occupancy.
func (s *AdmissionService) Cancel(ctx context.Context, classID, userID string) error {
	if classID == "" || userID == "" {
		return fmt.Errorf("class id and user id are required")
	}

	var err error
	for attempt := 1; attempt <= maxAdmitAttempts; attempt++ {
		err = s.ledger.RemoveApplicant(ctx, classID, userID, s.now())
		if !errors.Is(err, repository.ErrSerialization) {
			break
		}
	}
	if errors.Is(err, repository.ErrSerialization) {
		err = ErrBusy
	}
	monitoring.RecordCancellation(cancellationResult(err))
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Enqueue(notify.Event{
			Type:    notify.EventCancelled,
			UserID:  userID,
			ClassID: classID,
			At:      s.now(),
		})
	}
	return nil
}

// GetOccupancy returns the current and maximum seat counts for a class.
func (s *AdmissionService) GetOccupancy(ctx context.Context, classID string) (model.Occupancy, error) {
	return s.ledger.CountForClass(ctx, classID)
}

// ListApplicationsForClass returns a page of the class's applications,
// oldest first.
func (s *AdmissionService) ListApplicationsForClass(ctx context.Context, classID string, page, pageSize int) (model.Page[model.ApplicationSummary], error) {
	if _, err := s.classes.GetClass(ctx, classID); err != nil {
		return model.Page[model.ApplicationSummary]{}, err
	}
	apps, err := s.ledger.ListForClass(ctx, classID, page, pageSize)
	if err != nil {
		return model.Page[model.ApplicationSummary]{}, err
	}
	return summarize(apps), nil
}

// ListApplicationsForUser returns a page of the user's applications, most
// recent first.
func (s *AdmissionService) ListApplicationsForUser(ctx context.Context, userID string, page, pageSize int) (model.Page[model.ApplicationSummary], error) {
	apps, err := s.ledger.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return model.Page[model.ApplicationSummary]{}, err
	}
	return summarize(apps), nil
}

func summarize(apps model.Page[model.Application]) model.Page[model.ApplicationSummary] {
	return model.Page[model.ApplicationSummary]{
		Items: lo.Map(apps.Items, func(a model.Application, _ int) model.ApplicationSummary {
			return model.ApplicationSummary{
				ID:        a.ID,
				ClassID:   a.ClassID,
				UserID:    a.UserID,
				AppliedAt: a.AppliedAt,
			}
		}),
		Page:       apps.Page,
		PageSize:   apps.PageSize,
		TotalCount: apps.TotalCount,
	}
}

func admissionResult(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, repository.ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, repository.ErrClassStarted):
		return "class_started"
	case errors.Is(err, repository.ErrAlreadyApplied):
		return "already_applied"
	case errors.Is(err, repository.ErrClassFull):
		return "capacity_exceeded"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "error"
	}
}

func cancellationResult(err error) string {
	switch {
	case err == nil:
		return "cancelled"
	case errors.Is(err, repository.ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, repository.ErrClassStarted):
		return "class_started"
	case errors.Is(err, repository.ErrApplicationNotFound):
		return "application_not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "error"
	}
}
