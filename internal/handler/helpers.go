package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"chatrelay/internal/httputil"
)

// PathParam extracts a path value and writes a 400 when it is missing or not
// a UUID. Returns the value and whether the caller should continue. Rejecting
// malformed ids here keeps "bad id" out of the repository layer, where it
// would surface as a pgx encoding error instead of a clean 400.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", label))
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", label))
		return "", false
	}
	return value, true
}

// QueryBool parses an optional boolean query parameter
func QueryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

// QueryFloat parses an optional float query parameter, returning nil when absent
func QueryFloat(r *http.Request, name string) *float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// QueryIntPtr parses an optional integer query parameter, returning nil when absent
func QueryIntPtr(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
