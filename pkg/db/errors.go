package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// SQLSTATE codes the services branch on.
const (
	sqlStateUniqueViolation = "23505"
	sqlStateCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err came from a unique constraint. A
// non-empty constraint narrows the match to that constraint.
func IsUniqueViolation(err error, constraint string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) && constraint == "" {
		return true
	}
	return violates(err, sqlStateUniqueViolation, constraint, "UNIQUE constraint failed", "duplicate key value")
}

// IsCheckViolation reports whether err came from a CHECK constraint, such as
// the non-negative stock and balance guards.
func IsCheckViolation(err error, constraint string) bool {
	return violates(err, sqlStateCheckViolation, constraint, "CHECK constraint failed", "violates check constraint")
}

// violates matches Postgres errors on SQLSTATE and falls back to message
// text for sqlite, which tests run against.
func violates(err error, state, constraint string, markers ...string) bool {
	if err == nil {
		return false
	}
	if cause := pkgerrors.Diagnose(err).Database; cause != nil {
		return cause.SQLState == state && (constraint == "" || cause.Constraint == constraint)
	}
	msg := err.Error()
	if constraint != "" {
		return strings.Contains(msg, constraint)
	}
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
