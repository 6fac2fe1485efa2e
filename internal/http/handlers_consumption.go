package http

import (
	"context"
	"net/http"
	"strconv"

	"financas/internal/auth"
	"financas/internal/core"
)

// consumptionView is the utility-splitting page: who pays what when the
// household bills are divided among the residents.
type consumptionView struct {
	People       int                 `json:"people"`
	Items        []utilityJSON       `json:"items"`
	Excluded     []utilityJSON       `json:"excluded"`
	ByCategory   []categoryTotalJSON `json:"by_category"`
	TotalToSplit amountJSON          `json:"total_to_split"`
	PerPerson    amountJSON          `json:"per_person"`
}

const (
	defaultSplitPeople = 2
	maxSplitPeople     = 20
)

func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	people := queryInt(r, "people", defaultSplitPeople, maxSplitPeople)

	view, err := s.consumptionFor(r.Context(), ident.AccountID, people)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) consumptionFor(ctx context.Context, accountID string, people int) (consumptionView, error) {
	key := accountID + ":consumption:" + strconv.Itoa(people)
	if view, ok := s.consumptionCache.Get(key); ok {
		return view, nil
	}

	out, err, _ := s.group.Do(key, func() (any, error) {
		view, err := s.buildConsumption(context.WithoutCancel(ctx), accountID, people)
		if err != nil {
			return consumptionView{}, err
		}
		s.consumptionCache.Set(key, view)
		return view, nil
	})
	if err != nil {
		return consumptionView{}, err
	}
	return out.(consumptionView), nil
}

func (s *Server) buildConsumption(ctx context.Context, accountID string, people int) (consumptionView, error) {
	utilities, err := s.records.ListUtilities(ctx, accountID)
	if err != nil {
		return consumptionView{}, err
	}

	split := core.SplitExpenses(core.UtilitySplitItems(utilities), people)
	byID := make(map[string]core.Utility, len(utilities))
	for _, u := range utilities {
		byID[u.ID] = u
	}

	view := consumptionView{
		People:       people,
		Items:        make([]utilityJSON, 0, len(split.Included)),
		Excluded:     make([]utilityJSON, 0, len(split.Excluded)),
		ByCategory:   encodeCategoryTotals(core.SumByCategory(core.UtilityAmounts(utilities))),
		TotalToSplit: encodeAmount(split.TotalToSplit),
		PerPerson:    encodeAmount(split.PerPerson),
	}
	for _, it := range split.Included {
		view.Items = append(view.Items, encodeUtility(byID[it.ID]))
	}
	for _, it := range split.Excluded {
		view.Excluded = append(view.Excluded, encodeUtility(byID[it.ID]))
	}
	return view, nil
}
