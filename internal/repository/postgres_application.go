package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"class-enroll/internal/model"
)

// Postgres error codes that need domain mapping.
const (
	pgUniqueViolation   = "23505"
	pgSerializationFail = "40001"
	pgDeadlockDetected  = "40P01"
	pgLockNotAvailable  = "55P03"
)

// PostgresApplicationLedger implements ApplicationLedger on a pgx pool.
//
// Admission safety relies on pessimistic row locking: every AdmitApplicant
// and RemoveApplicant transaction opens with SELECT ... FOR UPDATE on the
// class row, so for any one class the check-then-write sequences execute
// strictly one at a time. Transactions for different classes lock different
// rows and never contend.
type PostgresApplicationLedger struct {
	db *pgxpool.Pool
}

// NewPostgresApplicationLedger constructs a PostgresApplicationLedger.
func NewPostgresApplicationLedger(db *pgxpool.Pool) *PostgresApplicationLedger {
	return &PostgresApplicationLedger{db: db}
}

// AdmitApplicant implements ApplicationLedger.
func (r *PostgresApplicationLedger) AdmitApplicant(ctx context.Context, classID, userID string, at time.Time) (model.Application, error) {
	var app model.Application

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return app, fmt.Errorf("begin admission: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Exclusive lock on the class row. Concurrent admitters and cancellers
	// for this class block here until we commit or roll back.
	var capacity int
	var startAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT capacity, start_at FROM classes WHERE id = $1 FOR UPDATE`,
		classID,
	).Scan(&capacity, &startAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrClassNotFound
			return app, err
		}
		return app, mapPgError("lock class row", err)
	}

	if !at.Before(startAt) {
		err = ErrClassStarted
		return app, err
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE class_id = $1 AND user_id = $2)`,
		classID, userID,
	).Scan(&exists)
	if err != nil {
		return app, mapPgError("check duplicate", err)
	}
	if exists {
		err = ErrAlreadyApplied
		return app, err
	}

	// Occupancy is derived, never a stored counter, so it cannot drift from
	// the ledger rows. The class-row lock makes this count stable until commit.
	var occupancy int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications WHERE class_id = $1`,
		classID,
	).Scan(&occupancy)
	if err != nil {
		return app, mapPgError("count occupancy", err)
	}
	if occupancy >= capacity {
		err = ErrClassFull
		return app, err
	}

	app = model.Application{
		ID:        uuid.New().String(),
		ClassID:   classID,
		UserID:    userID,
		AppliedAt: at.UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO applications (id, class_id, user_id, applied_at)
		 VALUES ($1, $2, $3, $4)`,
		app.ID, app.ClassID, app.UserID, app.AppliedAt,
	)
	if err != nil {
		return model.Application{}, mapPgError("insert application", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return model.Application{}, mapPgError("commit admission", err)
	}
	return app, nil
}

// RemoveApplicant implements ApplicationLedger.
func (r *PostgresApplicationLedger) RemoveApplicant(ctx context.Context, classID, userID string, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancellation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Same lock scope as AdmitApplicant: a cancellation never overlaps an
	// admission's check-then-insert on the same class.
	var startAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT start_at FROM classes WHERE id = $1 FOR UPDATE`,
		classID,
	).Scan(&startAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrClassNotFound
			return err
		}
		return mapPgError("lock class row", err)
	}

	if !at.Before(startAt) {
		err = ErrClassStarted
		return err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM applications WHERE class_id = $1 AND user_id = $2`,
		classID, userID,
	)
	if err != nil {
		return mapPgError("delete application", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrApplicationNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return mapPgError("commit cancellation", err)
	}
	return nil
}

// CountForClass implements ApplicationLedger.
func (r *PostgresApplicationLedger) CountForClass(ctx context.Context, classID string) (model.Occupancy, error) {
	var occ model.Occupancy
	err := r.db.QueryRow(ctx,
		`SELECT c.capacity,
		        (SELECT COUNT(*) FROM applications a WHERE a.class_id = c.id)
		 FROM classes c WHERE c.id = $1`,
		classID,
	).Scan(&occ.Max, &occ.Current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return occ, ErrClassNotFound
		}
		return occ, fmt.Errorf("count for class: %w", err)
	}
	return occ, nil
}

// ListForClass implements ApplicationLedger. Ordered oldest-first so the
// listing reflects admission order.
func (r *PostgresApplicationLedger) ListForClass(ctx context.Context, classID string, page, pageSize int) (model.Page[model.Application], error) {
	page, pageSize = Normalize(page, pageSize)
	result := model.Page[model.Application]{Items: []model.Application{}, Page: page, PageSize: pageSize}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications WHERE class_id = $1`, classID,
	).Scan(&result.TotalCount)
	if err != nil {
		return result, fmt.Errorf("count applications for class: %w", err)
	}

	err = pgxscan.Select(ctx, r.db, &result.Items,
		`SELECT id, class_id, user_id, applied_at
		 FROM applications
		 WHERE class_id = $1
		 ORDER BY applied_at ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		classID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return result, fmt.Errorf("list applications for class: %w", err)
	}
	return result, nil
}

// ListForUser implements ApplicationLedger. Ordered newest-first, the user's
// most recent applications on top.
func (r *PostgresApplicationLedger) ListForUser(ctx context.Context, userID string, page, pageSize int) (model.Page[model.Application], error) {
	page, pageSize = Normalize(page, pageSize)
	result := model.Page[model.Application]{Items: []model.Application{}, Page: page, PageSize: pageSize}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications WHERE user_id = $1`, userID,
	).Scan(&result.TotalCount)
	if err != nil {
		return result, fmt.Errorf("count applications for user: %w", err)
	}

	err = pgxscan.Select(ctx, r.db, &result.Items,
		`SELECT id, class_id, user_id, applied_at
		 FROM applications
		 WHERE user_id = $1
		 ORDER BY applied_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return result, fmt.Errorf("list applications for user: %w", err)
	}
	return result, nil
}

// mapPgError translates storage-layer failures into domain errors. A unique
// violation on (class_id, user_id) means a concurrent duplicate slipped past
// the in-transaction check; it is the same business outcome as the check
// firing, so it maps to ErrAlreadyApplied rather than leaking the pg error.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyApplied
		case pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%s: %w", op, ErrSerialization)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
