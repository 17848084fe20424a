package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"stationmeteo-server/internal/modules/weather/types"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// ErrorStatus maps a domain error to the HTTP status it is reported with.
func ErrorStatus(err error) int {
	var (
		storeErr  *types.ReadingStoreError
		exportErr *types.ExportFailedError
	)
	switch {
	case types.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNoReadings):
		return http.StatusNotFound
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &exportErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err with its mapped status. Server-side failures are
// logged and their detail is not echoed to the client.
func WriteDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
		WriteError(w, status, publicMessage(status))
		return
	}
	WriteError(w, status, err.Error())
}

func publicMessage(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "reading store unavailable"
	default:
		return "internal error"
	}
}

// DecodeJSON reads one JSON object from r into v, rejecting unknown fields
// and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: unexpected trailing data")
	}
	return nil
}
