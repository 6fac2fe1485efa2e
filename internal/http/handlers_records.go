package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
)

// collectionRoutes bundles the operations of one record collection so a
// single handler can serve every editor the same way.
type collectionRoutes[T any] struct {
	decode func(r *http.Request, id string) (T, error)
	create func(ctx context.Context, accountID string, rec T) (T, error)
	update func(ctx context.Context, accountID string, rec T) error
	remove func(ctx context.Context, accountID, id string) error
	list   func(ctx context.Context, accountID string, r *http.Request) (any, int, error)
	encode func(rec T) any
}

// collectionHandler serves GET (list), POST (create), PUT (update by ?id=)
// and DELETE (?id=) for one collection. Every write invalidates the
// account's cached dashboard views.
func collectionHandler[T any](s *Server, routes collectionRoutes[T]) http.HandlerFunc {
	return s.protected(func(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
		ctx := r.Context()
		switch r.Method {
		case http.MethodGet:
			items, count, err := routes.list(ctx, ident.AccountID, r)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, listResponse{Items: items, Count: count})

		case http.MethodPost:
			rec, err := routes.decode(r, "")
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			created, err := routes.create(ctx, ident.AccountID, rec)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			s.invalidateViews(ident.AccountID)
			writeJSON(w, http.StatusCreated, routes.encode(created))

		case http.MethodPut:
			id, err := requireID(r)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			rec, err := routes.decode(r, id)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			if err := routes.update(ctx, ident.AccountID, rec); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			s.invalidateViews(ident.AccountID)
			writeJSON(w, http.StatusOK, routes.encode(rec))

		case http.MethodDelete:
			id, err := requireID(r)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			if err := routes.remove(ctx, ident.AccountID, id); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			s.invalidateViews(ident.AccountID)
			w.WriteHeader(http.StatusNoContent)

		default:
			methodNotAllowed(w, "GET, POST, PUT, DELETE")
		}
	})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// Incomes

type incomeRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Category    string `json:"category"`
}

type incomeJSON struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Amount      amountJSON `json:"amount"`
	Date        string     `json:"date"`
	Category    string     `json:"category"`
}

func encodeIncome(in core.Income) incomeJSON {
	return incomeJSON{
		ID:          in.ID,
		Description: in.Description,
		Amount:      encodeAmount(in.Amount),
		Date:        in.Date.String(),
		Category:    in.Category,
	}
}

func (s *Server) incomeRoutes() collectionRoutes[core.Income] {
	return collectionRoutes[core.Income]{
		decode: func(r *http.Request, id string) (core.Income, error) {
			var req incomeRequest
			if err := decodeBody(r, &req); err != nil {
				return core.Income{}, err
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				return core.Income{}, err
			}
			date, err := core.ParseDate(req.Date)
			if err != nil {
				return core.Income{}, err
			}
			return core.Income{
				ID:          id,
				Description: sanitizeInput(req.Description),
				Amount:      amount,
				Date:        date,
				Category:    sanitizeInput(req.Category),
			}, nil
		},
		create: s.records.CreateIncome,
		update: s.records.UpdateIncome,
		remove: s.records.DeleteIncome,
		list: func(ctx context.Context, accountID string, _ *http.Request) (any, int, error) {
			items, err := s.records.ListIncomes(ctx, accountID)
			if err != nil {
				return nil, 0, err
			}
			out := make([]any, len(items))
			for i, it := range items {
				out[i] = encodeIncome(it)
			}
			return out, len(out), nil
		},
		encode: func(in core.Income) any { return encodeIncome(in) },
	}
}

// Planned expenses

type plannedExpenseRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	DueDate  string `json:"due_date"`
}

type plannedExpenseJSON struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Amount   amountJSON `json:"amount"`
	DueDate  string     `json:"due_date"`
}

func encodePlannedExpense(p core.PlannedExpense) plannedExpenseJSON {
	return plannedExpenseJSON{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Amount:   encodeAmount(p.Amount),
		DueDate:  p.DueDate,
	}
}

func (s *Server) plannedExpenseRoutes() collectionRoutes[core.PlannedExpense] {
	return collectionRoutes[core.PlannedExpense]{
		decode: func(r *http.Request, id string) (core.PlannedExpense, error) {
			var req plannedExpenseRequest
			if err := decodeBody(r, &req); err != nil {
				return core.PlannedExpense{}, err
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				return core.PlannedExpense{}, err
			}
			return core.PlannedExpense{
				ID:       id,
				Name:     sanitizeInput(req.Name),
				Category: sanitizeInput(req.Category),
				Amount:   amount,
				DueDate:  sanitizeInput(req.DueDate),
			}, nil
		},
		create: s.records.CreatePlannedExpense,
		update: s.records.UpdatePlannedExpense,
		remove: s.records.DeletePlannedExpense,
		list: func(ctx context.Context, accountID string, _ *http.Request) (any, int, error) {
			items, err := s.records.ListPlannedExpenses(ctx, accountID)
			if err != nil {
				return nil, 0, err
			}
			out := make([]any, len(items))
			for i, it := range items {
				out[i] = encodePlannedExpense(it)
			}
			return out, len(out), nil
		},
		encode: func(p core.PlannedExpense) any { return encodePlannedExpense(p) },
	}
}

// Credit cards

type creditCardRequest struct {
	CardName            string `json:"card_name"`
	Bank                string `json:"bank"`
	Amount              string `json:"amount"`
	Month               string `json:"month"`
	PreviousMonthAmount string `json:"previous_month_amount"`
}

type creditCardJSON struct {
	ID                  string      `json:"id"`
	CardName            string      `json:"card_name"`
	Bank                string      `json:"bank"`
	Amount              amountJSON  `json:"amount"`
	Month               string      `json:"month"`
	PreviousMonthAmount *amountJSON `json:"previous_month_amount,omitempty"`
	Delta               *deltaJSON  `json:"delta,omitempty"`
}

func encodeCreditCard(c core.CreditCardStatement) creditCardJSON {
	return creditCardJSON{
		ID:                  c.ID,
		CardName:            c.CardName,
		Bank:                c.Bank,
		Amount:              encodeAmount(c.Amount),
		Month:               string(c.Month),
		PreviousMonthAmount: encodeOptionalAmount(c.PreviousMonthAmount),
		Delta:               encodeDelta(c.Amount, c.PreviousMonthAmount),
	}
}

func (s *Server) creditCardRoutes() collectionRoutes[core.CreditCardStatement] {
	return collectionRoutes[core.CreditCardStatement]{
		decode: func(r *http.Request, id string) (core.CreditCardStatement, error) {
			var req creditCardRequest
			if err := decodeBody(r, &req); err != nil {
				return core.CreditCardStatement{}, err
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				return core.CreditCardStatement{}, err
			}
			previous, err := parseOptionalAmount(req.PreviousMonthAmount)
			if err != nil {
				return core.CreditCardStatement{}, err
			}
			return core.CreditCardStatement{
				ID:                  id,
				CardName:            sanitizeInput(req.CardName),
				Bank:                sanitizeInput(req.Bank),
				Amount:              amount,
				Month:               core.MonthKey(sanitizeInput(req.Month)),
				PreviousMonthAmount: previous,
			}, nil
		},
		create: s.records.CreateCreditCard,
		update: s.records.UpdateCreditCard,
		remove: s.records.DeleteCreditCard,
		list: func(ctx context.Context, accountID string, r *http.Request) (any, int, error) {
			// ?month=YYYY-MM narrows to one statement period
			var month core.MonthKey
			if v := r.URL.Query().Get("month"); v != "" {
				parsed, err := core.ParseMonthKey(v)
				if err != nil {
					return nil, 0, err
				}
				month = parsed
			}
			items, err := s.records.ListCreditCards(ctx, accountID, month)
			if err != nil {
				return nil, 0, err
			}
			out := make([]any, len(items))
			for i, it := range items {
				out[i] = encodeCreditCard(it)
			}
			return out, len(out), nil
		},
		encode: func(c core.CreditCardStatement) any { return encodeCreditCard(c) },
	}
}

// Utilities

type utilityRequest struct {
	Name             string `json:"name"`
	Category         string `json:"category"`
	Amount           string `json:"amount"`
	DueDate          string `json:"due_date"`
	PreviousAmount   string `json:"previous_amount"`
	ExcludeFromSplit bool   `json:"exclude_from_split"`
}

type utilityJSON struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Category         string      `json:"category"`
	Amount           amountJSON  `json:"amount"`
	DueDate          string      `json:"due_date"`
	PreviousAmount   *amountJSON `json:"previous_amount,omitempty"`
	ExcludeFromSplit bool        `json:"exclude_from_split"`
	Delta            *deltaJSON  `json:"delta,omitempty"`
}

func encodeUtility(u core.Utility) utilityJSON {
	return utilityJSON{
		ID:               u.ID,
		Name:             u.Name,
		Category:         u.Category,
		Amount:           encodeAmount(u.Amount),
		DueDate:          u.DueDate,
		PreviousAmount:   encodeOptionalAmount(u.PreviousAmount),
		ExcludeFromSplit: u.ExcludeFromSplit,
		Delta:            encodeDelta(u.Amount, u.PreviousAmount),
	}
}

func (s *Server) utilityRoutes() collectionRoutes[core.Utility] {
	return collectionRoutes[core.Utility]{
		decode: func(r *http.Request, id string) (core.Utility, error) {
			var req utilityRequest
			if err := decodeBody(r, &req); err != nil {
				return core.Utility{}, err
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				return core.Utility{}, err
			}
			previous, err := parseOptionalAmount(req.PreviousAmount)
			if err != nil {
				return core.Utility{}, err
			}
			return core.Utility{
				ID:               id,
				Name:             sanitizeInput(req.Name),
				Category:         sanitizeInput(req.Category),
				Amount:           amount,
				DueDate:          sanitizeInput(req.DueDate),
				PreviousAmount:   previous,
				ExcludeFromSplit: req.ExcludeFromSplit,
			}, nil
		},
		create: s.records.CreateUtility,
		update: s.records.UpdateUtility,
		remove: s.records.DeleteUtility,
		list: func(ctx context.Context, accountID string, _ *http.Request) (any, int, error) {
			items, err := s.records.ListUtilities(ctx, accountID)
			if err != nil {
				return nil, 0, err
			}
			out := make([]any, len(items))
			for i, it := range items {
				out[i] = encodeUtility(it)
			}
			return out, len(out), nil
		},
		encode: func(u core.Utility) any { return encodeUtility(u) },
	}
}
