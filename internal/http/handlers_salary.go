package http

import (
	"errors"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/storage"
)

type salaryRequest struct {
	Amount string `json:"amount"`
	Month  string `json:"month"`
}

type salaryJSON struct {
	Amount amountJSON `json:"amount"`
	Month  string     `json:"month"`
}

func encodeSalary(sal core.Salary) salaryJSON {
	return salaryJSON{Amount: encodeAmount(sal.Amount), Month: string(sal.Month)}
}

// handleSalary serves the per-account salary singleton. GET returns the
// current value (null when never set), PUT upserts it.
func (s *Server) handleSalary(w http.ResponseWriter, r *http.Request) {
	s.protected(func(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
		switch r.Method {
		case http.MethodGet:
			sal, err := s.records.GetSalary(r.Context(), ident.AccountID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					writeJSON(w, http.StatusOK, struct {
						Salary *salaryJSON `json:"salary"`
					}{})
					return
				}
				s.writeServiceError(w, r, err)
				return
			}
			enc := encodeSalary(sal)
			writeJSON(w, http.StatusOK, struct {
				Salary *salaryJSON `json:"salary"`
			}{Salary: &enc})

		case http.MethodPut:
			var req salaryRequest
			if err := decodeBody(r, &req); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			sal := core.Salary{Amount: amount, Month: core.MonthKey(sanitizeInput(req.Month))}
			if err := s.records.SetSalary(r.Context(), ident.AccountID, sal); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			s.invalidateViews(ident.AccountID)
			writeJSON(w, http.StatusOK, encodeSalary(sal))

		default:
			methodNotAllowed(w, "GET, PUT")
		}
	})(w, r)
}
