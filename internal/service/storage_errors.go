package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/team-registry-api/pkg/database"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
	"github.com/noah-isme/team-registry-api/pkg/pagination"
)

// mapStorageError translates storage and pagination failures into typed domain errors.
func mapStorageError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, pagination.ErrInvalidCursor), errors.Is(err, pagination.ErrCursorVersion), errors.Is(err, pagination.ErrCursorSignature):
		return appErrors.Wrap(err, appErrors.ErrInvalidCursor.Code, appErrors.ErrInvalidCursor.Status, appErrors.ErrInvalidCursor.Message)
	case errors.Is(err, pagination.ErrInvalidLimit), errors.Is(err, pagination.ErrInvalidDirection):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid page request")
	case errors.Is(err, database.ErrTransientConflict):
		return appErrors.Wrap(err, appErrors.ErrTransientConflict.Code, appErrors.ErrTransientConflict.Status, appErrors.ErrTransientConflict.Message)
	case errors.Is(err, database.ErrRetriesExhausted):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent updates kept conflicting")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}
