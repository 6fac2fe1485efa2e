package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"financas/internal/core"
)

var errBadRequest = errors.New("bad request")

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseAmount turns a decimal string ("1500,50" or "1500.50") into Money.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseOptionalAmount parses an amount that may be absent.
func parseOptionalAmount(s string) (*core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	m, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// queryMonth reads the month parameter, defaulting to the current month.
func queryMonth(r *http.Request, now time.Time) (core.MonthKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthKeyOf(now), nil
	}
	return core.ParseMonthKey(v)
}

// queryInt reads an integer parameter with a default and an upper bound.
func queryInt(r *http.Request, name string, def, max int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// requireID reads the id query parameter for update and delete requests.
func requireID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing id parameter", errBadRequest)
	}
	return id, nil
}
