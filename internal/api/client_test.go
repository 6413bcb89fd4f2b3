package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/session"
)

func newTestAPI(t *testing.T, handler http.Handler) (*Client, *session.MemStore, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	store := session.NewMemStore()
	store.Set(session.Credentials{Access: "test-access", Refresh: "test-refresh"})
	return NewClient(session.NewClient(srv.URL, store)), store, srv.Close
}

func TestLoginStoresCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/create/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "user@example.com" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "a1", "refresh": "r1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := session.NewMemStore()
	client := NewClient(session.NewClient(srv.URL, store))

	if err := client.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	creds, ok := store.Get()
	if !ok || creds.Access != "a1" || creds.Refresh != "r1" {
		t.Fatalf("stored credentials = %+v ok=%v", creds, ok)
	}
	if !client.Authenticated() {
		t.Fatal("client should report authenticated after login")
	}
}

func TestRegisterSurfacesFieldErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/users/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string][]string{
			"email": {"user with this email already exists."},
		})
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	_, err := client.Register(context.Background(), "u", "dup@example.com", "pw", "pw")
	var apiErr *session.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *session.APIError, got %v", err)
	}
	if got := apiErr.FirstFieldMessage(); got != "user with this email already exists." {
		t.Fatalf("first message = %q", got)
	}
}

func TestListTransactionsBareArray(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("month") != "5" || r.URL.Query().Get("year") != "2025" {
			t.Errorf("missing month/year filters: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"id": 2, "amount": "1500.00", "type": "EX", "category": 1,
			 "category_name": "Housing", "date": "2025-05-25", "description": "rent"},
			{"id": 1, "amount": "120.50", "type": "IN", "category": 4,
			 "category_name": "Salary", "date": "2025-05-10", "description": ""}
		]`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	txs, err := client.ListTransactions(context.Background(), TransactionFilter{Month: 5, Year: 2025})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	first := txs[0]
	if first.ID != 2 || first.Flow != core.Expense || first.Amount.Cents != 150000 {
		t.Fatalf("first transaction = %+v", first)
	}
	if first.CategoryName != "Housing" || first.Date != core.NewDate(2025, 5, 25) {
		t.Fatalf("first transaction = %+v", first)
	}
}

func TestListTransactionsPaginatedEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 1, "results": [
			{"id": 7, "amount": "9.99", "type": "EX", "category": 3, "date": "2025-01-02", "description": "bus"}
		]}`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	txs, err := client.ListTransactions(context.Background(), TransactionFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != 7 || txs[0].Amount.Cents != 999 {
		t.Fatalf("transactions = %+v", txs)
	}
}

func TestCreateTransactionWireFormat(t *testing.T) {
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"id": 10, "amount": "42.50", "type": "EX", "category": 2, "date": "2025-06-01", "description": "groceries"}`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	tx := core.Transaction{
		Flow:        core.Expense,
		Amount:      core.Money{Cents: 4250},
		CategoryID:  2,
		Date:        core.NewDate(2025, 6, 1),
		Description: "groceries",
	}
	created, err := client.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != 10 {
		t.Fatalf("created = %+v", created)
	}
	if received["amount"] != "42.50" {
		t.Fatalf("amount must be a decimal string, got %v", received["amount"])
	}
	if received["date"] != "2025-06-01" {
		t.Fatalf("date = %v", received["date"])
	}
	if received["type"] != "EX" {
		t.Fatalf("type = %v", received["type"])
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	client, _, done := newTestAPI(t, http.NewServeMux())
	defer done()

	_, err := client.CreateTransaction(context.Background(), core.Transaction{})
	if err == nil {
		t.Fatal("invalid transaction must not reach the wire")
	}
}

func TestStatsMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_date") != "2025-05-01" {
			t.Errorf("start_date missing: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
			"summary": {"total_income": "5000.00", "total_expense": "6200.00", "balance": "-1200.00"},
			"chart_data": [{"name": "25.05", "income": "100.00", "expense": "50.00"}],
			"income_pie_data": [{"name": "Salary", "value": "5000.00"}],
			"expense_pie_data": [{"name": "Housing", "value": "6200.00"}]
		}`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	from := core.NewDate(2025, 5, 1)
	got, err := client.Stats(context.Background(), &from, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary.Balance.Cents != -120000 {
		t.Fatalf("balance = %d, want -120000", got.Summary.Balance.Cents)
	}
	if len(got.Chart) != 1 || got.Chart[0].Label != "25.05" || got.Chart[0].Income.Cents != 10000 {
		t.Fatalf("chart = %+v", got.Chart)
	}
	if len(got.ExpensePie) != 1 || got.ExpensePie[0].CategoryName != "Housing" {
		t.Fatalf("expense pie = %+v", got.ExpensePie)
	}
}

func TestContributePatchesNewTotal(t *testing.T) {
	var method string
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/saving-goals/5/", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"id": 5, "title": "Vacation", "description": "",
			"target_amount": "1000.00", "current_saved": "350.00", "is_active": true}`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	goal := core.SavingGoal{
		ID:           5,
		Title:        "Vacation",
		TargetAmount: core.Money{Cents: 100000},
		CurrentSaved: core.Money{Cents: 25000},
	}
	updated, err := client.Contribute(context.Background(), goal, core.Money{Cents: 10000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPatch {
		t.Fatalf("contribution must use PATCH, got %s", method)
	}
	if received["current_saved"] != "350.00" {
		t.Fatalf("patched current_saved = %v, want \"350.00\"", received["current_saved"])
	}
	if updated.CurrentSaved.Cents != 35000 {
		t.Fatalf("updated goal = %+v", updated)
	}
}

func TestContributeRejectsNonPositive(t *testing.T) {
	client, _, done := newTestAPI(t, http.NewServeMux())
	defer done()

	goal := core.SavingGoal{ID: 5, TargetAmount: core.Money{Cents: 1000}}
	_, err := client.Contribute(context.Background(), goal, core.Money{Cents: 0})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestListGoals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/saving-goals/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "title": "Car", "description": "",
			"target_amount": "20000.00", "current_saved": "20500.00", "is_active": true,
			"created_at": "2025-01-15T10:00:00Z"}]`))
	})
	client, _, done := newTestAPI(t, mux)
	defer done()

	goals, err := client.ListGoals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	g := goals[0]
	if g.Title != "Car" || g.TargetAmount.Cents != 2000000 || g.CurrentSaved.Cents != 2050000 {
		t.Fatalf("goal = %+v", g)
	}
	if g.CreatedAt.IsZero() {
		t.Fatal("created_at should be parsed")
	}
}
