package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"financas/internal/auth"
	"financas/internal/config"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *Server
	repo   *storage.SQLiteRepository
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Level: slog.LevelError})
	authSvc := auth.NewService(repo, auth.Config{
		Secret:     testSecret,
		SessionTTL: time.Hour,
		BcryptCost: 4,
	}, logger)

	hash, err := authSvc.HashPassword("s3nha-forte")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := repo.CreateAccount(context.Background(), storage.Account{
		ID:           "acct-1",
		Email:        "ana@example.com",
		PasswordHash: hash,
		DisplayName:  "Ana",
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	records := services.NewRecordService(repo, nil)

	cfg := &config.Config{
		Port:          "0",
		RateLimitRPM:  1000,
		CacheTTL:      time.Minute,
		CacheCapacity: 32,
	}
	srv := NewServer(cfg, authSvc, records, repo, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	env := &testEnv{server: srv, repo: repo}
	env.token = env.login(t, "ana@example.com", "s3nha-forte")
	return env
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRejectsUnauthenticatedRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/incomes", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "ana@example.com",
		"password": "errada",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/logout", env.token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes", env.token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", rec.Code)
	}
}

func TestIncomeLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/incomes", env.token, map[string]any{
		"description": "Projeto freela",
		"amount":      "2500,00",
		"date":        "2025-08-05",
		"category":    "Freelance",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created incomeJSON
	decodeInto(t, rec, &created)
	if created.ID == "" {
		t.Fatal("created income has empty id")
	}
	if created.Amount.Cents != 250000 {
		t.Errorf("amount cents = %d, want 250000", created.Amount.Cents)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Items []incomeJSON `json:"items"`
		Count int          `json:"count"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 1 || len(list.Items) != 1 {
		t.Fatalf("list count = %d (items %d), want 1", list.Count, len(list.Items))
	}

	rec = env.do(t, http.MethodPut, "/api/incomes?id="+created.ID, env.token, map[string]any{
		"description": "Projeto freela revisado",
		"amount":      "3000,00",
		"date":        "2025-08-05",
		"category":    "Freelance",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, "/api/incomes?id="+created.ID, env.token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/incomes?id="+created.ID, env.token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestCreateIncomeValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "bad amount",
			body: map[string]any{"description": "x", "amount": "abc", "date": "2025-08-05", "category": "Freelance"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad date",
			body: map[string]any{"description": "x", "amount": "10", "date": "05/08/2025", "category": "Freelance"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "empty description",
			body: map[string]any{"description": "", "amount": "10", "date": "2025-08-05", "category": "Freelance"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown category",
			body: map[string]any{"description": "x", "amount": "10", "date": "2025-08-05", "category": "Nope"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/incomes", env.token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMissingIDOnUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/utilities", env.token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete without id status = %d, want 400", rec.Code)
	}
}

func TestCreditCardMonthFilter(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{"card_name": "Nubank", "bank": "Nubank", "amount": "800,00", "month": "2025-03"},
		{"card_name": "Platinum", "bank": "Itaú", "amount": "700,00", "month": "2025-03", "previous_month_amount": "500,00"},
		{"card_name": "Nubank", "bank": "Nubank", "amount": "900,00", "month": "2025-04"},
	} {
		rec := env.do(t, http.MethodPost, "/api/credit-cards", env.token, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create card status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/credit-cards?month=2025-03", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Items []creditCardJSON `json:"items"`
		Count int              `json:"count"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 2 {
		t.Fatalf("march statements = %d, want 2", list.Count)
	}
	for _, c := range list.Items {
		if c.CardName == "Platinum" {
			if c.Delta == nil {
				t.Fatal("Platinum delta missing, want increase")
			}
			if c.Delta.Direction != "increase" || c.Delta.Percent != 40.0 {
				t.Errorf("Platinum delta = %+v, want increase 40.0", c.Delta)
			}
		}
		if c.CardName == "Nubank" && c.Delta != nil {
			t.Errorf("Nubank delta = %+v, want none without previous month", c.Delta)
		}
	}

	rec = env.do(t, http.MethodGet, "/api/credit-cards?month=bogus", env.token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month filter status = %d, want 422", rec.Code)
	}
}

func TestSalaryLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/salary", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get salary status = %d", rec.Code)
	}
	var empty struct {
		Salary *salaryJSON `json:"salary"`
	}
	decodeInto(t, rec, &empty)
	if empty.Salary != nil {
		t.Fatalf("salary before set = %+v, want null", empty.Salary)
	}

	rec = env.do(t, http.MethodPut, "/api/salary", env.token, map[string]any{
		"amount": "8000,00",
		"month":  "2025-08",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put salary status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/salary", env.token, nil)
	var got struct {
		Salary *salaryJSON `json:"salary"`
	}
	decodeInto(t, rec, &got)
	if got.Salary == nil || got.Salary.Amount.Cents != 800000 {
		t.Fatalf("salary after set = %+v, want 800000 cents", got.Salary)
	}
}

func TestDashboardSummary(t *testing.T) {
	env := newTestEnv(t)
	month := string(core.MonthKeyOf(time.Now()))

	steps := []struct {
		method, path string
		body         map[string]any
	}{
		{http.MethodPut, "/api/salary", map[string]any{"amount": "8000,00", "month": month}},
		{http.MethodPost, "/api/incomes", map[string]any{"description": "Freela", "amount": "1000,00", "date": "2025-08-05", "category": "Freelance"}},
		{http.MethodPost, "/api/planned-expenses", map[string]any{"name": "Academia", "category": "Saúde", "amount": "150,00", "due_date": "todo dia 5"}},
		{http.MethodPost, "/api/credit-cards", map[string]any{"card_name": "Nubank", "bank": "Nubank", "amount": "2000,00", "month": month}},
		{http.MethodPost, "/api/utilities", map[string]any{"name": "Luz", "category": "Energia", "amount": "350,00", "due_date": "dia 10"}},
	}
	for _, st := range steps {
		rec := env.do(t, st.method, st.path, env.token, st.body)
		if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
			t.Fatalf("%s %s status = %d, body = %s", st.method, st.path, rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/dashboard/summary", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view summaryView
	decodeInto(t, rec, &view)

	if view.Salary == nil || view.Salary.Cents != 800000 {
		t.Errorf("salary = %+v, want 800000 cents", view.Salary)
	}
	if view.IncomeTotal.Cents != 100000 {
		t.Errorf("income total = %d, want 100000", view.IncomeTotal.Cents)
	}
	if view.PlannedTotal.Cents != 15000 {
		t.Errorf("planned total = %d, want 15000", view.PlannedTotal.Cents)
	}
	if view.CreditCardTotal.Cents != 200000 {
		t.Errorf("card total = %d, want 200000", view.CreditCardTotal.Cents)
	}
	if view.UtilityTotal.Cents != 35000 {
		t.Errorf("utility total = %d, want 35000", view.UtilityTotal.Cents)
	}
	if view.ExpenseTotal.Cents != 250000 {
		t.Errorf("expense total = %d, want 250000", view.ExpenseTotal.Cents)
	}
	// 8000 + 1000 - 150 - 2000 - 350
	if view.Balance.Cents != 650000 {
		t.Errorf("balance = %d, want 650000", view.Balance.Cents)
	}
	// 2500 spent of an 8000 salary
	if view.SpentPercent == nil || *view.SpentPercent != 31.3 {
		t.Errorf("spent percent = %v, want 31.3", view.SpentPercent)
	}
}

func TestDashboardSummaryCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard/summary", env.token, nil)
	var before summaryView
	decodeInto(t, rec, &before)
	if before.IncomeTotal.Cents != 0 {
		t.Fatalf("initial income total = %d, want 0", before.IncomeTotal.Cents)
	}

	rec = env.do(t, http.MethodPost, "/api/incomes", env.token, map[string]any{
		"description": "Extra", "amount": "500,00", "date": "2025-08-10", "category": "Outros",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/dashboard/summary", env.token, nil)
	var after summaryView
	decodeInto(t, rec, &after)
	if after.IncomeTotal.Cents != 50000 {
		t.Errorf("income total after create = %d, want 50000 (stale cache?)", after.IncomeTotal.Cents)
	}
}

func TestDashboardSummarySurvivesCanceledCaller(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/incomes", env.token, map[string]any{
		"description": "Extra", "amount": "500,00", "date": "2025-08-10", "category": "Outros",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	view, err := env.server.summaryFor(ctx, "acct-1", core.MonthKeyOf(time.Now()))
	if err != nil {
		t.Fatalf("summaryFor with canceled caller: %v", err)
	}
	if view.IncomeTotal.Cents != 50000 {
		t.Errorf("income total = %d, want 50000", view.IncomeTotal.Cents)
	}
}

func TestDashboardComparison(t *testing.T) {
	env := newTestEnv(t)
	months := core.MonthWindow(time.Now(), 3)

	for i, m := range months {
		body := map[string]any{
			"card_name": "Nubank",
			"bank":      "Nubank",
			"amount":    []string{"100,00", "200,00", "150,00"}[i],
			"month":     string(m),
		}
		rec := env.do(t, http.MethodPost, "/api/credit-cards", env.token, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create card status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/dashboard/comparison?months=3", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("comparison status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view comparisonView
	decodeInto(t, rec, &view)
	if len(view.Months) != 3 {
		t.Fatalf("months = %d, want 3", len(view.Months))
	}
	if view.Months[0].Delta != nil {
		t.Errorf("first month delta = %+v, want none", view.Months[0].Delta)
	}
	second := view.Months[1]
	if second.Total.Cents != 20000 {
		t.Errorf("second month total = %d, want 20000", second.Total.Cents)
	}
	if second.Delta == nil || second.Delta.Direction != "increase" || second.Delta.Percent != 100.0 {
		t.Errorf("second month delta = %+v, want increase 100.0", second.Delta)
	}
	third := view.Months[2]
	if third.Delta == nil || third.Delta.Direction != "decrease" || third.Delta.Percent != 25.0 {
		t.Errorf("third month delta = %+v, want decrease 25.0", third.Delta)
	}
}

func TestConsumptionSplit(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{"name": "Luz", "category": "Energia", "amount": "200,00", "due_date": "dia 10"},
		{"name": "Água", "category": "Água", "amount": "100,00", "due_date": "dia 12"},
		{"name": "Streaming", "category": "Outros", "amount": "50,00", "due_date": "dia 1", "exclude_from_split": true},
	} {
		rec := env.do(t, http.MethodPost, "/api/utilities", env.token, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create utility status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/consumption?people=2", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("consumption status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view consumptionView
	decodeInto(t, rec, &view)

	if view.TotalToSplit.Cents != 30000 {
		t.Errorf("total to split = %d, want 30000", view.TotalToSplit.Cents)
	}
	if view.PerPerson.Cents != 15000 {
		t.Errorf("per person = %d, want 15000", view.PerPerson.Cents)
	}
	if len(view.Items) != 2 || len(view.Excluded) != 1 {
		t.Errorf("items = %d excluded = %d, want 2 and 1", len(view.Items), len(view.Excluded))
	}
}

func TestAccountIsolation(t *testing.T) {
	env := newTestEnv(t)

	hash, err := env.server.auth.HashPassword("outra-senha")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := env.repo.CreateAccount(context.Background(), storage.Account{
		ID:           "acct-2",
		Email:        "bia@example.com",
		PasswordHash: hash,
		DisplayName:  "Bia",
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	otherToken := env.login(t, "bia@example.com", "outra-senha")

	rec := env.do(t, http.MethodPost, "/api/incomes", env.token, map[string]any{
		"description": "Só da Ana", "amount": "100,00", "date": "2025-08-01", "category": "Outros",
	})
	var created incomeJSON
	decodeInto(t, rec, &created)

	rec = env.do(t, http.MethodGet, "/api/incomes", otherToken, nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 0 {
		t.Errorf("other account sees %d incomes, want 0", list.Count)
	}

	rec = env.do(t, http.MethodDelete, "/api/incomes?id="+created.ID, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-account delete status = %d, want 404", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}
