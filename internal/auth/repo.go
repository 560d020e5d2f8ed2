package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barberia/backoffice/internal/platform/db"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (StaffUser, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a staff user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (StaffUser, error) {
	var (
		u         StaffUser
		employee  pgtype.Int8
		lastLogin pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, username, password_hash, employee_id, is_staff, is_active, created_at, last_login_at
FROM staff_users WHERE username = $1`, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &employee, &u.IsStaff, &u.IsActive, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return StaffUser{}, fmt.Errorf("find staff user: %w", db.Classify(err))
	}
	if employee.Valid {
		id := employee.Int64
		u.EmployeeID = &id
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		u.LastLoginAt = &at
	}
	return u, nil
}

// TouchLastLogin stamps a successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.pool.Exec(ctx, `UPDATE staff_users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch last login: %w", db.Classify(err))
	}
	return nil
}

// CreateUser inserts a staff user with an already hashed password. Used by seeding.
func (r *PGRepository) CreateUser(ctx context.Context, username, passwordHash string, isStaff bool) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO staff_users (username, password_hash, is_staff)
VALUES ($1, $2, $3)
ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash, is_staff = EXCLUDED.is_staff
RETURNING id`, username, passwordHash, isStaff).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create staff user: %w", db.Classify(err))
	}
	return id, nil
}
