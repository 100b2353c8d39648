package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// storeError classifies a data store failure. Typed errors pass through,
// transient failures surface as persistence errors and the rest as internal.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrPersistence, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal, message)
}

// lookupError maps sql.ErrNoRows to a not found error naming what.
func lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return storeError(err, "failed to load "+what)
}

func requirePermission(actor models.Actor, perm models.Permission) error {
	if actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	if !actor.Can(perm) {
		return appErrors.WithDetails(appErrors.ErrForbidden, "insufficient permissions", map[string]interface{}{"required": string(perm)})
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation, message)
}
