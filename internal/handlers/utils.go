package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/models"
)

// maxJSONBody bounds small JSON request bodies such as the login form.
const maxJSONBody = 64 << 10

// writeJSON serializes data as JSON and writes it to the response. Admin
// responses may contain event data, so they are never cached.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
	}
}

// writeError writes a client error. Use writeErrorWithCause for server
// errors that have an underlying cause worth logging.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the error with stack trace.
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// 401/403 are covered by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}
	if status >= 400 && err != nil {
		logging.LogErrorWithStatus(ctx, status, "error response", logging.WrapError(err, message))
	}
}

// decodeJSON decodes a single JSON object from a bounded request body.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}
