package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

// amountJSON carries both the raw cents and a display string so clients
// never re-implement currency formatting.
type amountJSON struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func encodeAmount(m core.Money) amountJSON {
	return amountJSON{Cents: m.Cents, Formatted: m.String()}
}

func encodeOptionalAmount(m *core.Money) *amountJSON {
	if m == nil {
		return nil
	}
	a := encodeAmount(*m)
	return &a
}

// deltaJSON is the period-over-period trend indicator. Absent from the
// payload when there is nothing to compare against.
type deltaJSON struct {
	Direction string  `json:"direction"`
	Percent   float64 `json:"percent"`
}

func encodeDelta(current core.Money, previous *core.Money) *deltaJSON {
	d, ok := core.CompareToPrevious(current, previous)
	if !ok {
		return nil
	}
	return &deltaJSON{Direction: string(d.Direction), Percent: d.Percent}
}

type categoryTotalJSON struct {
	Category string     `json:"category"`
	Total    amountJSON `json:"total"`
}

func encodeCategoryTotals(totals []core.CategoryTotal) []categoryTotalJSON {
	out := make([]categoryTotalJSON, len(totals))
	for i, t := range totals {
		out[i] = categoryTotalJSON{Category: t.Category, Total: encodeAmount(t.Total)}
	}
	return out
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors
// surface as a plain 500 and go to the log only.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonthKey):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
