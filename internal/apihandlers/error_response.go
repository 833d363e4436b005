package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/store"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "Invalid ID" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}

// respondError maps a sentinel error to its status. Anything unrecognized is
// logged and reported as internal without leaking details.
func respondError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, models.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, store.ErrAlreadyQueued):
		JSONError(ctx, http.StatusConflict, "already_queued", err.Error())
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrUniqueViolation):
		Conflict(ctx, err.Error())
	case errors.Is(err, models.ErrEntitlement):
		JSONError(ctx, http.StatusPaymentRequired, "entitlement_denied", err.Error())
	default:
		log.WithField("op", op).Errorf("request failed: %v", err)
		Internal(ctx, op+" failed")
	}
}
