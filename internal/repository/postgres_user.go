package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"class-enroll/internal/model"
)

// PostgresUserRepository implements UserRepository on a pgx pool.
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

// NewPostgresUserRepository constructs a PostgresUserRepository.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser implements UserRepository.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.IsAdmin, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser implements UserRepository.
func (r *PostgresUserRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	var user model.User
	err := pgxscan.Get(ctx, r.db, &user,
		`SELECT id, email, display_name, password_hash, is_admin, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail implements UserRepository.
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	err := pgxscan.Get(ctx, r.db, &user,
		`SELECT id, email, display_name, password_hash, is_admin, created_at
		 FROM users WHERE email = $1`,
		email,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}
