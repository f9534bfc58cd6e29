package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/jsat/internal/judge"
	"github.com/pavelanni/jsat/internal/scoring"
	"github.com/pavelanni/jsat/internal/store"
)

var (
	errNotFound        = errors.New("not found")
	errExecutionFailed = errors.New("code execution failed")
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scoring.ErrInvalidInput), errors.Is(err, scoring.ErrInvalidLevel):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound), errors.Is(err, scoring.ErrNotRanked), errors.Is(err, scoring.ErrEmptyDataset):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, judge.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, errExecutionFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Internal errors are logged and hidden.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", scoring.ErrInvalidInput, err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", scoring.ErrInvalidInput, name)
	}
	return id, nil
}
