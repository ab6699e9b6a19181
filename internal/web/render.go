package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/place"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// renderJSON writes data as JSON with the given status.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes err as a JSON error object. Anything that is not a
// GuardError is reported as INTERNAL without its message.
func renderError(w http.ResponseWriter, err error) {
	var gErr *errors.GuardError
	if !stderrors.As(err, &gErr) {
		gErr = &errors.GuardError{
			Code:    errors.ErrInternal,
			Status:  http.StatusInternalServerError,
			Message: "an internal error occurred",
		}
	}

	errorObj := map[string]any{
		"code":    string(gErr.Code),
		"message": gErr.Message,
		"status":  gErr.Status,
	}
	if gErr.Code != errors.ErrInternal && gErr.Details != nil {
		errorObj["details"] = gErr.Details
	}
	renderJSON(w, gErr.Status, map[string]any{"error": errorObj})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBounds reads north, south, east and west query parameters.
func parseBounds(r *http.Request) (place.Bounds, error) {
	q := r.URL.Query()
	var vals [4]float64
	for i, name := range []string{"north", "south", "east", "west"} {
		s := q.Get(name)
		if s == "" {
			return place.Bounds{}, errors.NewInvalidRequest(name + " is required")
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return place.Bounds{}, errors.NewInvalidRequest(name + " must be a number")
		}
		vals[i] = v
	}
	return place.Bounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}, nil
}
