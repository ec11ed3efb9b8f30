package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/plaid"
	"finboard/internal/services"
	"finboard/internal/storage/memory"
)

type fakeLinkTokens struct {
	token string
	err   error
}

func (f fakeLinkTokens) CreateLinkToken(context.Context) (string, error) {
	return f.token, f.err
}

func (f fakeLinkTokens) CredentialStatus() plaid.CredentialStatus {
	return plaid.CredentialStatus{HasClientID: true, HasSecret: false, ClientIDLength: 24}
}

type fakeAggregator struct {
	exchangeErr error
}

func (f fakeAggregator) ExchangePublicToken(_ context.Context, token string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-" + token, nil
}

func (fakeAggregator) GetAccounts(context.Context, string) ([]core.Account, error) {
	return []core.Account{{
		PlaidID: "acc-1",
		Name:    "Checking",
		Type:    "depository",
		Balances: core.Balances{
			Current: decimal.NewNullDecimal(decimal.RequireFromString("1200.00")),
		},
	}}, nil
}

func (fakeAggregator) GetTransactions(context.Context, string, core.DateRange) ([]core.RawTransaction, error) {
	return []core.RawTransaction{{
		PlaidID:   "tx-1",
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("25.50"),
		Name:      "Corner Cafe",
		Date:      time.Now().UTC().AddDate(0, 0, -2),
		Category:  []string{"Food and Drink"},
	}}, nil
}

type testEnv struct {
	srv   *Server
	store *memory.Store
}

func newTestEnv(t *testing.T, links LinkTokenProvider, agg services.Aggregator, opts Options, checks ...ReadinessCheck) *testEnv {
	t.Helper()
	store := memory.New()
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Level: slog.LevelError, Component: log.ComponentHTTP, Output: io.Discard})
	}
	deps := Dependencies{
		LinkTokens:   links,
		Sync:         services.NewSyncService(agg, store, nil, services.SyncConfig{}),
		Transactions: services.NewTransactionService(store),
		Readiness:    checks,
	}
	srv := NewServer(":0", deps, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestCreateLinkToken(t *testing.T) {
	tests := []struct {
		name       string
		links      fakeLinkTokens
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			links:      fakeLinkTokens{token: "link-sandbox-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing credentials",
			links:      fakeLinkTokens{err: plaid.ErrCredentialsMissing},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Missing Plaid credentials",
		},
		{
			name: "aggregator rejection",
			links: fakeLinkTokens{err: &plaid.APIError{
				Kind: plaid.ErrAggregator, Endpoint: "/link/token/create", Status: 400,
				Body: `{"error_code":"INVALID_API_KEYS"}`,
			}},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Plaid API error",
		},
		{
			name:       "transport failure",
			links:      fakeLinkTokens{err: errors.New("dial tcp: refused")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.links, fakeAggregator{}, Options{})
			rec := env.do(t, http.MethodPost, "/link-token", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if tt.wantError == "" {
				if body["link_token"] != "link-sandbox-1" || body["success"] != true {
					t.Fatalf("body = %v", body)
				}
				return
			}
			if body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestCreateLinkToken_APIErrorDetails(t *testing.T) {
	links := fakeLinkTokens{err: &plaid.APIError{
		Kind: plaid.ErrAggregator, Endpoint: "/link/token/create", Status: 400,
		Body: `{"error_code":"INVALID_API_KEYS"}`,
	}}
	env := newTestEnv(t, links, fakeAggregator{}, Options{})
	body := decodeBody(t, env.do(t, http.MethodPost, "/link-token", ""))

	if body["status"] != float64(400) {
		t.Errorf("status = %v", body["status"])
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["error_code"] != "INVALID_API_KEYS" {
		t.Errorf("details = %v", body["details"])
	}
}

func TestLinkTokenStatus(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	rec := env.do(t, http.MethodGet, "/link-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	creds, ok := body["credentials"].(map[string]any)
	if !ok {
		t.Fatalf("credentials missing: %v", body)
	}
	if creds["hasClientId"] != true || creds["hasSecret"] != false {
		t.Errorf("credentials = %v", creds)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp: %v", err)
	}
}

func TestExchangeToken(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})

	// Prime the dashboard cache so the exchange has to invalidate it.
	before := decodeBody(t, env.do(t, http.MethodGet, "/api/dashboard", ""))
	if before["transaction_count"] != float64(0) {
		t.Fatalf("initial dashboard = %v", before)
	}

	rec := env.do(t, http.MethodPost, "/exchange-token", `{"public_token":"public-sandbox-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["accounts"] != float64(1) || body["transactions"] != float64(1) {
		t.Fatalf("body = %v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "1 accounts with 1 transactions") {
		t.Errorf("message = %q", msg)
	}

	after := decodeBody(t, env.do(t, http.MethodGet, "/api/dashboard", ""))
	if after["transaction_count"] != float64(1) {
		t.Fatalf("dashboard after exchange = %v", after)
	}
	if after["monthly_expenses"] != float64(25.5) {
		t.Errorf("monthly_expenses = %v", after["monthly_expenses"])
	}
	if after["total_balance"] != float64(1200) {
		t.Errorf("total_balance = %v", after["total_balance"])
	}
}

// cancelAwareAggregator fails any fetch made under a cancelled context.
type cancelAwareAggregator struct {
	fakeAggregator
}

func (a cancelAwareAggregator) GetAccounts(ctx context.Context, token string) ([]core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.fakeAggregator.GetAccounts(ctx, token)
}

func (a cancelAwareAggregator) GetTransactions(ctx context.Context, token string, window core.DateRange) ([]core.RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.fakeAggregator.GetTransactions(ctx, token, window)
}

func TestExchangeToken_CompletesAfterClientDisconnect(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, cancelAwareAggregator{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/exchange-token", strings.NewReader(`{"public_token":"public-sandbox-1"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["accounts"] != float64(1) || body["transactions"] != float64(1) {
		t.Fatalf("body = %v", body)
	}
	accounts, err := env.store.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("stored %d accounts, want 1", len(accounts))
	}
}

func TestExchangeToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		agg        fakeAggregator
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing token", fakeAggregator{}, `{}`, http.StatusBadRequest, "No public token provided"},
		{"blank token", fakeAggregator{}, `{"public_token":"  "}`, http.StatusBadRequest, "No public token provided"},
		{"empty body", fakeAggregator{}, ``, http.StatusBadRequest, "No public token provided"},
		{"malformed body", fakeAggregator{}, `{"public_token":`, http.StatusBadRequest, "Invalid request body"},
		{
			"exchange rejected",
			fakeAggregator{exchangeErr: &plaid.APIError{Kind: plaid.ErrExchangeFailed, Status: 400, Body: `{"error_code":"INVALID_PUBLIC_TOKEN"}`}},
			`{"public_token":"bad"}`,
			http.StatusInternalServerError,
			"Token exchange failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fakeLinkTokens{}, tt.agg, Options{})
			rec := env.do(t, http.MethodPost, "/exchange-token", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decodeBody(t, rec); body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
			accounts, _ := env.store.ListAccounts(context.Background())
			if len(accounts) != 0 {
				t.Fatalf("failed exchange wrote %d accounts", len(accounts))
			}
		})
	}
}

func TestSyncPlaceholder(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	body := decodeBody(t, env.do(t, http.MethodPost, "/sync", ""))
	if body["success"] != true || body["message"] != "Sync completed" {
		t.Fatalf("body = %v", body)
	}
}

func seedTransaction(t *testing.T, env *testEnv) int64 {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/exchange-token", `{"public_token":"public-sandbox-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed exchange: %d", rec.Code)
	}
	tx, ok, err := env.store.FindTransactionByPlaidID(context.Background(), "tx-1")
	if err != nil || !ok {
		t.Fatalf("seeded transaction not found: %v", err)
	}
	return tx.ID
}

func TestUpdateTransaction(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	id := seedTransaction(t, env)
	path := "/transactions/" + strconv.FormatInt(id, 10)

	rec := env.do(t, http.MethodPut, path, `{"name":"Lunch","user_category":"Entertainment","amount":"-30.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	tx, _ := body["transaction"].(map[string]any)
	if body["success"] != true || tx["name"] != "Lunch" || tx["user_category"] != "Entertainment" || tx["amount"] != float64(-30) {
		t.Fatalf("body = %v", body)
	}

	dash := decodeBody(t, env.do(t, http.MethodGet, "/api/dashboard", ""))
	if dash["monthly_expenses"] != float64(30) {
		t.Errorf("dashboard not refreshed after edit: %v", dash["monthly_expenses"])
	}
}

func TestUpdateTransaction_IDInBody(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	id := seedTransaction(t, env)

	body := `{"id":` + strconv.FormatInt(id, 10) + `,"name":"Groceries","amount":12.5}`
	rec := env.do(t, http.MethodPut, "/transactions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got, _, _ := env.store.FindTransactionByPlaidID(context.Background(), "tx-1")
	if got.Name != "Groceries" || !got.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("stored = %+v", got)
	}
}

func TestUpdateTransaction_Errors(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	id := seedTransaction(t, env)
	path := "/transactions/" + strconv.FormatInt(id, 10)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing id", "/transactions", `{"name":"x"}`, http.StatusBadRequest, "Transaction ID is required"},
		{"non numeric id", "/transactions/abc", `{"name":"x"}`, http.StatusBadRequest, "Invalid transaction ID"},
		{"zero id", "/transactions/0", `{"name":"x"}`, http.StatusBadRequest, "Invalid transaction ID"},
		{"malformed body", path, `{"name":`, http.StatusBadRequest, "Invalid request body"},
		{"bad amount", path, `{"amount":"lots"}`, http.StatusBadRequest, "Invalid request body"},
		{"unknown category", path, `{"user_category":"Crypto"}`, http.StatusBadRequest, "Unknown category"},
		{"empty edit", path, `{}`, http.StatusBadRequest, "Invalid transaction update"},
		{"not found", "/transactions/9999", `{"name":"x"}`, http.StatusNotFound, "Transaction not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	body := decodeBody(t, env.do(t, http.MethodGet, "/categories", ""))
	cats, _ := body["categories"].([]any)
	if len(cats) != len(core.Categories) {
		t.Fatalf("categories = %v", cats)
	}
}

func TestIndexRendersDashboard(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	seedTransaction(t, env)

	rec := env.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	html := rec.Body.String()
	for _, want := range []string{"Personal Finance Dashboard", "Corner Cafe", "$1,200.00", "-$25.50", "cdn.plaid.com"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	rec := env.do(t, http.MethodGet, "/static/app.css", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("static assets should be cacheable")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ok := ReadinessCheck{Name: "store", Check: func(context.Context) error { return nil }}
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{}, ok)

	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d body=%s", rec.Code, rec.Body.String())
	}

	broken := ReadinessCheck{Name: "amqp", Check: func(context.Context) error { return errors.New("not connected") }}
	env = newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{}, ok, broken)
	rec = env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", rec.Code)
	}
	checks, _ := decodeBody(t, rec)["checks"].(map[string]any)
	if checks["amqp"] != "failed: not connected" || checks["store"] != "ok" {
		t.Fatalf("checks = %v", checks)
	}
}

func TestMiddlewareChain(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{RateLimitPerMinute: 1})

	rec := env.do(t, http.MethodPost, "/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first sync = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "cdn.plaid.com") {
		t.Error("missing Plaid-aware CSP")
	}

	rec = env.do(t, http.MethodPost, "/sync", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second sync = %d", rec.Code)
	}
	if body := decodeBody(t, rec); !strings.HasPrefix(body["error"].(string), "Rate limit exceeded") {
		t.Fatalf("body = %v", body)
	}

	// Reads are not limited.
	if rec := env.do(t, http.MethodGet, "/categories", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET after limit = %d", rec.Code)
	}
}

// cancelAwareTransactions fails Overview under a cancelled context.
type cancelAwareTransactions struct {
	TransactionService
	calls int
}

func (c *cancelAwareTransactions) Overview(ctx context.Context) (core.Overview, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return core.Overview{}, err
	}
	return c.TransactionService.Overview(ctx)
}

func TestLoadOverview_IgnoresCallerCancellation(t *testing.T) {
	env := newTestEnv(t, fakeLinkTokens{}, fakeAggregator{}, Options{})
	txs := &cancelAwareTransactions{TransactionService: env.srv.deps.Transactions}
	env.srv.deps.Transactions = txs

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.srv.loadOverview(ctx); err != nil {
		t.Fatalf("loadOverview with cancelled caller: %v", err)
	}
	if _, err := env.srv.loadOverview(context.Background()); err != nil {
		t.Fatalf("loadOverview: %v", err)
	}
	if txs.calls != 1 {
		t.Errorf("Overview called %d times, want 1 (second load cached)", txs.calls)
	}
}
