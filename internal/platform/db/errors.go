package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/barberia/backoffice/internal/shared"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
)

// Classify maps driver errors onto the shared error taxonomy. Errors that
// already carry a shared sentinel are returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isTaxonomy(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", shared.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s: %w", shared.ErrConflict, constraintDetail(pgErr), err)
		case codeForeignKeyViolation:
			if strings.Contains(pgErr.Detail, "is still referenced") {
				return fmt.Errorf("%w: %s: %w", shared.ErrInUse, constraintDetail(pgErr), err)
			}
			return fmt.Errorf("%w: %s references a missing row: %w", shared.ErrValidation, constraintDetail(pgErr), err)
		case codeCheckViolation, codeNotNullViolation, codeInvalidText:
			return fmt.Errorf("%w: %s: %w", shared.ErrValidation, constraintDetail(pgErr), err)
		}
	}
	return fmt.Errorf("%w: %w", shared.ErrStorage, err)
}

// IsUniqueViolation reports whether err was raised by the named unique constraint.
// An empty name matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func constraintDetail(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return pgErr.Message
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		shared.ErrNotFound,
		shared.ErrConflict,
		shared.ErrInUse,
		shared.ErrValidation,
		shared.ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
