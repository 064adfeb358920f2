package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"class-enroll/internal/model"
)

// PostgresClassRegistry implements ClassRegistry on a pgx pool.
type PostgresClassRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresClassRegistry constructs a PostgresClassRegistry.
func NewPostgresClassRegistry(db *pgxpool.Pool) *PostgresClassRegistry {
	return &PostgresClassRegistry{db: db}
}

// CreateClass implements ClassRegistry.
func (r *PostgresClassRegistry) CreateClass(ctx context.Context, class model.Class) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO classes (id, title, description, capacity, start_at, end_at, host_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		class.ID, class.Title, class.Description, class.Capacity,
		class.StartAt, class.EndAt, class.HostID, class.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// GetClass implements ClassRegistry.
func (r *PostgresClassRegistry) GetClass(ctx context.Context, id string) (model.Class, error) {
	var class model.Class
	err := pgxscan.Get(ctx, r.db, &class,
		`SELECT id, title, description, capacity, start_at, end_at, host_id, created_at
		 FROM classes WHERE id = $1`,
		id,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return class, ErrClassNotFound
		}
		return class, fmt.Errorf("get class: %w", err)
	}
	return class, nil
}

// ListClasses implements ClassRegistry. Upcoming classes first; expired
// classes are excluded unless requested.
func (r *PostgresClassRegistry) ListClasses(ctx context.Context, page, pageSize int, includeExpired bool, now time.Time) (model.Page[model.Class], error) {
	page, pageSize = Normalize(page, pageSize)
	result := model.Page[model.Class]{Items: []model.Class{}, Page: page, PageSize: pageSize}

	countQuery := `SELECT COUNT(*) FROM classes WHERE end_at > $1`
	listQuery := `SELECT id, title, description, capacity, start_at, end_at, host_id, created_at
		 FROM classes
		 WHERE end_at > $1
		 ORDER BY start_at ASC, id ASC
		 LIMIT $2 OFFSET $3`
	countArgs := []any{now}
	listArgs := []any{now, pageSize, (page - 1) * pageSize}
	if includeExpired {
		countQuery = `SELECT COUNT(*) FROM classes`
		listQuery = `SELECT id, title, description, capacity, start_at, end_at, host_id, created_at
		 FROM classes
		 ORDER BY start_at ASC, id ASC
		 LIMIT $1 OFFSET $2`
		countArgs = nil
		listArgs = []any{pageSize, (page - 1) * pageSize}
	}

	err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&result.TotalCount)
	if err != nil {
		return result, fmt.Errorf("count classes: %w", err)
	}

	if err := pgxscan.Select(ctx, r.db, &result.Items, listQuery, listArgs...); err != nil {
		return result, fmt.Errorf("list classes: %w", err)
	}
	return result, nil
}

// DeleteClass implements ClassRegistry. The class row is locked first so the
// cascade cannot interleave with an in-flight admission; the ON DELETE
// CASCADE constraint removes the applications in the same transaction.
func (r *PostgresClassRegistry) DeleteClass(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin class delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var classID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM classes WHERE id = $1 FOR UPDATE`, id,
	).Scan(&classID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrClassNotFound
			return err
		}
		return mapPgError("lock class row", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return mapPgError("delete class", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return mapPgError("commit class delete", err)
	}
	return nil
}
