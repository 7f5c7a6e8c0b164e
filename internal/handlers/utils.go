package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/types"
)

const (
	maxJSONBody = 1 << 20

	msgValidationFailed = "Validation failed"
	msgUnauthorized     = "Authentication required to access this resource"
	msgUnexpected       = "An unexpected error occurred"
	msgMalformedBody    = "Malformed request body"
)

var errInvalidRecipeID = errors.New("invalid recipe id")

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// ErrorResponse is the error envelope returned for every failed request.
type ErrorResponse struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MessageResponse is a plain acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Status:    http.StatusBadRequest,
		Message:   msgValidationFailed,
		Errors:    fields,
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError translates a service-layer error into the error envelope.
// Anything unrecognised is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var (
		validation *services.ValidationError
		invalid    *services.InvalidInputError
	)
	switch {
	case errors.As(err, &validation):
		writeValidationError(w, validation.Fields)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, services.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, "Username is already taken")
	case errors.Is(err, services.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email is already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username/email or password")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, messageOf(err, "Resource not found"))
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, messageOf(err, "Access denied"))
	default:
		log.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgUnexpected)
	}
}

func messageOf(err error, fallback string) string {
	var (
		notFound  *services.NotFoundError
		forbidden *services.ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		return notFound.Message
	case errors.As(err, &forbidden):
		return forbidden.Message
	default:
		return fallback
	}
}

// decodeJSON reads a single JSON value of at most maxJSONBody bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func parseRecipeID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "recipeID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errInvalidRecipeID
	}
	return id, nil
}
