package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

// PostgreSQL SQLSTATE codes the registries react to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// UniqueViolation returns the violated constraint name when err is a unique
// constraint failure.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// ForeignKeyViolation returns the violated constraint name when err is a
// foreign key failure.
func ForeignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeForeignKeyViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Classify converts low-level store errors that no registry handled into the
// error taxonomy. Already classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Unavailable(err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.Unavailable(err)
	}
	if name, ok := UniqueViolation(err); ok {
		return &apperr.Error{Kind: apperr.KindConflict, Message: "Record with " + name + " already exists.", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeCheckViolation {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid value for " + pgErr.ConstraintName + ".", Err: err}
	}
	return apperr.Internal(err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
