package store

import "scribe/internal/models"

// Store errors share identity with the model sentinels so callers can match
// with errors.Is regardless of which layer wrapped them.
var (
	ErrNotFound  = models.ErrNotFound
	ErrDuplicate = models.ErrUniqueViolation
	ErrConflict  = models.ErrConflict
)
