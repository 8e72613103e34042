package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

type txResp struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

type sumResp struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	NetBalance    string `json:"netBalance"`
}

type errResp struct {
	Error string `json:"error"`
}

func newTestServer() *Server {
	store := storage.NewMemoryStore()
	return NewServer(":0", services.NewLedgerService(store, nil))
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func createTx(t *testing.T, srv *Server, body string) txResp {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tx txResp
	if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return tx
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestListEmptyLedger(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer()

	tx := createTx(t, srv, `{"description":"Paycheck","amount":"1000.00","type":"income"}`)
	if tx.ID == 0 {
		t.Fatalf("expected assigned id, got %+v", tx)
	}
	if tx.Amount != "1000.00" || tx.Type != "income" || tx.Description != "Paycheck" {
		t.Fatalf("unexpected record: %+v", tx)
	}
}

func TestCreateTransactionNumericAmount(t *testing.T) {
	srv := newTestServer()

	// Amounts may arrive as JSON numbers; exactness must survive.
	tx := createTx(t, srv, `{"description":"Rent","amount":750.00,"type":"expense"}`)
	if tx.Amount != "750.00" {
		t.Fatalf("expected 750.00, got %s", tx.Amount)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer()

	cases := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"missing fields", `{}`},
		{"missing amount", `{"description":"x","type":"income"}`},
		{"blank description", `{"description":"   ","amount":"1.00","type":"income"}`},
		{"bad type", `{"description":"x","amount":"1.00","type":"transfer"}`},
		{"zero amount", `{"description":"x","amount":"0","type":"income"}`},
		{"negative amount", `{"description":"x","amount":"-5","type":"expense"}`},
		{"non-numeric amount", `{"description":"x","amount":"abc","type":"income"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/transactions", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
			var e errResp
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Fatalf("expected error body, got %s", rr.Body.String())
			}
		})
	}

	// Nothing must have been persisted by the rejected requests.
	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty ledger after rejected creates, got %s", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	srv := newTestServer()

	createTx(t, srv, `{"description":"first","amount":"1.00","type":"income"}`)
	createTx(t, srv, `{"description":"second","amount":"2.00","type":"income"}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	var txs []txResp
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ID < txs[1].ID {
		t.Fatalf("expected newest first, got ids %d, %d", txs[0].ID, txs[1].ID)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer()

	tx := createTx(t, srv, `{"description":"Rent","amount":"750.00","type":"expense"}`)

	rr := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "deleted successfully") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	// Repeated delete is a 404, never silent success.
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", rr.Code)
	}
}

func TestDeleteInvalidID(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodDelete, "/api/transactions/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/12345", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodGet, "/api/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var s sumResp
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.TotalIncome != "0.00" || s.TotalExpenses != "0.00" || s.NetBalance != "0.00" {
		t.Fatalf("expected zero summary, got %+v", s)
	}

	createTx(t, srv, `{"description":"Paycheck","amount":"1000.00","type":"income"}`)
	rent := createTx(t, srv, `{"description":"Rent","amount":"750.00","type":"expense"}`)

	rr = doJSON(t, srv, http.MethodGet, "/api/summary", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.TotalIncome != "1000.00" || s.TotalExpenses != "750.00" || s.NetBalance != "250.00" {
		t.Fatalf("unexpected summary: %+v", s)
	}

	// The cache must never mask a mutation.
	doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", rent.ID), "")
	rr = doJSON(t, srv, http.MethodGet, "/api/summary", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.TotalIncome != "1000.00" || s.TotalExpenses != "0.00" || s.NetBalance != "1000.00" {
		t.Fatalf("unexpected summary after delete: %+v", s)
	}
}

// listHookStore runs a callback right after each list so tests can interleave
// a mutation with an in-flight cache fill.
type listHookStore struct {
	storage.Store
	onList func()
}

func (s *listHookStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx)
	if s.onList != nil {
		s.onList()
	}
	return txs, err
}

func TestCacheFillDiscardedWhenMutationRaces(t *testing.T) {
	hooked := &listHookStore{Store: storage.NewMemoryStore()}
	srv := NewServer(":0", services.NewLedgerService(hooked, nil))

	createTx(t, srv, `{"description":"first","amount":"1.00","type":"income"}`)

	// Land a create between the cache-miss read and the cache write.
	hooked.onList = func() {
		hooked.onList = nil
		createTx(t, srv, `{"description":"second","amount":"2.00","type":"income"}`)
	}
	doJSON(t, srv, http.MethodGet, "/api/transactions", "")

	// The racing fill must not have pinned the one-element list.
	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	var txs []txResp
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions after racing create, got %d", len(txs))
	}
}

func TestMutationRateLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := NewServerWithOptions(":0", services.NewLedgerService(store, nil), Options{
		RateLimitPerMinute: 2,
		CacheTTL:           30 * time.Second,
	})

	body := `{"description":"x","amount":"1.00","type":"income"}`
	for i := 0; i < 2; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/api/transactions", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d, want 201", i+1, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over the limit, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header, got %q", rr.Header().Get("Retry-After"))
	}
	var e errResp
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error == "" {
		t.Fatalf("expected JSON error body, got %s", rr.Body.String())
	}

	// Reads are never rate limited.
	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("read status = %d, want 200", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected DENY, got %q", got)
	}
}
