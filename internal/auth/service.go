package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/barberia/backoffice/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Authenticate validates username/password credentials. Unknown users, inactive
// accounts and bad passwords all yield ErrInvalidCredentials; a valid non-staff
// account yields ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, username, password string) (StaffUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return StaffUser{}, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return StaffUser{}, err
		}
		return StaffUser{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return StaffUser{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return StaffUser{}, shared.ErrInvalidCredentials
	}
	if !user.IsStaff {
		return StaffUser{}, shared.ErrForbidden
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to record last login", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return user, nil
}

// HashPassword produces a bcrypt hash suitable for staff_users.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
