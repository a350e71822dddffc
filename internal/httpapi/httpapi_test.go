package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finapi/internal/idempotency"
	"github.com/tinoosan/finapi/internal/service/account"
	"github.com/tinoosan/finapi/internal/service/statement"
	"github.com/tinoosan/finapi/internal/storage/memory"
)

const (
	aliceCPF = "52998224725"
	bobCPF   = "11144477735"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func setup(t *testing.T, opts ...Option) (http.Handler, *testClock) {
	t.Helper()
	return setupWithIdem(t, memory.NewIdempotencyStore(nil), opts...)
}

func setupWithIdem(t *testing.T, idem idempotency.Store, opts ...Option) (http.Handler, *testClock) {
	t.Helper()
	store := memory.New()
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	accounts := account.New(store, store, account.WithClock(clock.Now))
	ledgerSvc := statement.New(store, store, "BRL", statement.WithClock(clock.Now), statement.WithLocation(time.UTC))
	srv := New(accounts, ledgerSvc, idem, testLogger(), opts...)
	return srv.Handler(), clock
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func register(t *testing.T, h http.Handler, name, cpf string) customerResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/account", map[string]string{"name": name, "cpf": cpf})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[customerResponse](t, rec)
}

func requireBalance(t *testing.T, h http.Handler, cpf, want string) {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/account/"+cpf+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[balanceResponse](t, rec)
	assert.Equal(t, "BRL", got.Currency)
	gotAmt, err := money.ParseAmount("BRL", got.Balance)
	require.NoError(t, err)
	c, err := money.MustParseAmount("BRL", want).Cmp(gotAmt)
	require.NoError(t, err)
	require.Zerof(t, c, "balance: want %s, got %s", want, got.Balance)
}

func TestAccountLifecycle(t *testing.T) {
	h, _ := setup(t)

	created := register(t, h, "Alice", "529.982.247-25")
	assert.Equal(t, "Alice", created.Name)
	assert.Equal(t, "529.982.247-25", created.CPF)
	assert.NotNil(t, created.Statements)
	assert.Empty(t, created.Statements)

	rec := do(t, h, http.MethodPost, "/account", map[string]string{"name": "Impostor", "cpf": aliceCPF})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_account", decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/account/"+aliceCPF, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[customerResponse](t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Alice", got.Name)

	rec = do(t, h, http.MethodPut, "/account/"+aliceCPF, map[string]string{"name": "Alice Souza"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice Souza", decode[customerResponse](t, rec).Name)

	rec = do(t, h, http.MethodDelete, "/account/"+aliceCPF, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/account/"+aliceCPF, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodDelete, "/account/"+aliceCPF, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	h, _ := setup(t)

	cases := []struct {
		name   string
		body   any
		ctype  string
		status int
		code   string
	}{
		{"bad check digits", map[string]string{"name": "Alice", "cpf": "52998224724"}, "application/json", http.StatusBadRequest, "invalid_cpf"},
		{"repeated digits", map[string]string{"name": "Alice", "cpf": "11111111111"}, "application/json", http.StatusBadRequest, "invalid_cpf"},
		{"missing name", map[string]string{"name": " ", "cpf": aliceCPF}, "application/json", http.StatusBadRequest, "invalid"},
		{"unknown field", `{"name":"Alice","cpf":"52998224725","extra":1}`, "application/json", http.StatusBadRequest, "invalid_json"},
		{"wrong content type", map[string]string{"name": "Alice", "cpf": aliceCPF}, "text/plain", http.StatusUnsupportedMediaType, "unsupported_media_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/account", tc.body, "Content-Type", tc.ctype)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[errorResponse](t, rec).Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[listAccountsResponse](t, rec).Items)
}

func TestInvalidPathCPF(t *testing.T) {
	h, _ := setup(t)
	for _, path := range []string{"/account/123", "/account/123/balance", "/statements/abc", "/statements/123/date?date=2024-01-01"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_cpf", decode[errorResponse](t, rec).Code, path)
	}
}

func TestWithdrawMoreThanBalance(t *testing.T) {
	h, _ := setup(t)
	register(t, h, "Alice", aliceCPF)

	rec := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "salary", "amount": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	op := decode[operationResponse](t, rec)
	assert.Equal(t, "credit", string(op.Type))
	assert.Equal(t, "BRL", op.Currency)
	assert.Equal(t, "salary", op.Description)

	rec = do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, map[string]any{"description": "rent", "amount": 150})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_funds", decode[errorResponse](t, rec).Code)

	requireBalance(t, h, aliceCPF, "100")

	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[statementsResponse](t, rec).Statements, 1)
}

func TestWithdrawExactBalance(t *testing.T) {
	h, _ := setup(t)
	register(t, h, "Bob", bobCPF)

	rec := do(t, h, http.MethodPost, "/deposit/"+bobCPF, map[string]any{"description": "d", "amount": "100.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/withdraw/"+bobCPF, map[string]any{"description": "w", "amount": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "debit", string(decode[operationResponse](t, rec).Type))

	requireBalance(t, h, bobCPF, "0")

	rec = do(t, h, http.MethodGet, "/account/"+bobCPF, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[customerResponse](t, rec).Statements, 2)
}

func TestStatementsByDate(t *testing.T) {
	h, clock := setup(t)
	register(t, h, "Alice", aliceCPF)

	clock.now = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "a", "amount": 10}).Code)
	clock.now = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "b", "amount": 5}).Code)
	clock.now = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, map[string]any{"description": "c", "amount": 3}).Code)

	rec := do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date?date=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	day1 := decode[statementsResponse](t, rec)
	assert.Equal(t, "2024-01-01", day1.Date)
	require.Len(t, day1.Statements, 2)
	assert.Equal(t, "a", day1.Statements[0].Description)
	assert.Equal(t, "b", day1.Statements[1].Description)

	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date?date=2024-01-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	day2 := decode[statementsResponse](t, rec)
	require.Len(t, day2.Statements, 1)
	assert.Equal(t, "debit", string(day2.Statements[0].Type))

	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date?date=2023-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statements":[]`)

	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date?date=01/01/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownAccount(t *testing.T) {
	h, _ := setup(t)
	body := map[string]any{"description": "d", "amount": 1}

	for _, rec := range []*httptest.ResponseRecorder{
		do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body),
		do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, body),
		do(t, h, http.MethodGet, "/account/"+aliceCPF+"/balance", nil),
		do(t, h, http.MethodGet, "/statements/"+aliceCPF, nil),
		do(t, h, http.MethodGet, "/statements/"+aliceCPF+"/date?date=2024-01-01", nil),
		do(t, h, http.MethodPut, "/account/"+aliceCPF, map[string]string{"name": "x"}),
	} {
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	}
}

func TestInvalidAmounts(t *testing.T) {
	h, _ := setup(t)
	register(t, h, "Alice", aliceCPF)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"negative", `{"description":"d","amount":-5}`, "invalid_amount"},
		{"missing", `{"description":"d"}`, "invalid_amount"},
		{"not a number", `{"description":"d","amount":"abc"}`, "invalid_json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[errorResponse](t, rec).Code)
		})
	}
	requireBalance(t, h, aliceCPF, "0")
}

func TestIdempotentDeposit(t *testing.T) {
	h, _ := setup(t)
	register(t, h, "Alice", aliceCPF)
	body := map[string]any{"description": "salary", "amount": 100}

	first := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	// Same amount written differently hashes the same.
	replay := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "salary", "amount": "100.00"}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	requireBalance(t, h, aliceCPF, "100")

	mismatch := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "salary", "amount": 50}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusConflict, mismatch.Code)
	assert.Equal(t, "idempotency_mismatch", decode[errorResponse](t, mismatch).Code)

	// The same key on the withdraw route is a different request.
	rec := do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, body, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Keys are scoped per account.
	register(t, h, "Bob", bobCPF)
	rec = do(t, h, http.MethodPost, "/deposit/"+bobCPF, body, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
}

func TestIdempotentRejectionIsReplayed(t *testing.T) {
	h, _ := setup(t)
	register(t, h, "Alice", aliceCPF)
	body := map[string]any{"description": "rent", "amount": 10}

	rec := do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, body, "Idempotency-Key", "w1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deposit/"+aliceCPF, map[string]any{"description": "d", "amount": 10}).Code)

	rec = do(t, h, http.MethodPost, "/withdraw/"+aliceCPF, body, "Idempotency-Key", "w1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	requireBalance(t, h, aliceCPF, "10")
}

// gatedStore holds Complete until gate is closed, keeping the first request's
// key pending while the others arrive.
type gatedStore struct {
	*memory.IdempotencyStore
	gate chan struct{}
}

func (g *gatedStore) Complete(ctx context.Context, key string, rec idempotency.Record, ttl time.Duration) error {
	<-g.gate
	return g.IdempotencyStore.Complete(ctx, key, rec, ttl)
}

func TestIdempotentConcurrentRetries(t *testing.T) {
	idem := &gatedStore{IdempotencyStore: memory.NewIdempotencyStore(nil), gate: make(chan struct{})}
	t.Cleanup(func() {
		select {
		case <-idem.gate:
		default:
			close(idem.gate)
		}
	})
	h, _ := setupWithIdem(t, idem)
	register(t, h, "Alice", aliceCPF)
	body := `{"description":"salary","amount":100}`

	const n = 16
	results := make(chan *httptest.ResponseRecorder, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body, "Idempotency-Key", "same")
		}()
	}
	// Every request but the one holding the reservation answers right away.
	for i := 0; i < n-1; i++ {
		rec := <-results
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		assert.Equal(t, "idempotency_in_progress", decode[errorResponse](t, rec).Code)
	}
	close(idem.gate)
	winner := <-results
	require.Equal(t, http.StatusCreated, winner.Code, winner.Body.String())
	assert.Empty(t, winner.Header().Get("Idempotent-Replayed"))

	requireBalance(t, h, aliceCPF, "100")
	rec := do(t, h, http.MethodGet, "/statements/"+aliceCPF, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[statementsResponse](t, rec).Statements, 1)

	replay := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body, "Idempotency-Key", "same")
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, winner.Body.String(), replay.Body.String())
}

func TestIdempotencyKeyNotReplayedAfterReRegister(t *testing.T) {
	h, _ := setup(t)
	first := register(t, h, "Alice", aliceCPF)
	body := map[string]any{"description": "salary", "amount": 100}

	rec := do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/account/"+aliceCPF, nil).Code)

	second := register(t, h, "Alice", aliceCPF)
	require.NotEqual(t, first.ID, second.ID)

	rec = do(t, h, http.MethodPost, "/deposit/"+aliceCPF, body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))

	requireBalance(t, h, aliceCPF, "100")
	rec = do(t, h, http.MethodGet, "/statements/"+aliceCPF, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[statementsResponse](t, rec).Statements, 1)
}

func TestListAccounts(t *testing.T) {
	h, clock := setup(t)
	register(t, h, "Alice", aliceCPF)
	clock.now = clock.now.Add(time.Minute)
	register(t, h, "Bob", bobCPF)

	rec := do(t, h, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[listAccountsResponse](t, rec).Items
	require.Len(t, items, 2)
	assert.Equal(t, "Alice", items[0].Name)
	assert.Equal(t, "111.444.777-35", items[1].CPF)
}

type failingCheck struct{}

func (failingCheck) Ready(context.Context) error { return errors.New("down") }

func TestOpsEndpoints(t *testing.T) {
	h, _ := setup(t)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", nil).Code)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "finapi_http_requests_total")

	h, _ = setup(t, WithReadyCheck(failingCheck{}))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", nil).Code)
}

func TestAccountsGaugePerServer(t *testing.T) {
	h1, _ := setup(t)
	register(t, h1, "Alice", aliceCPF)
	register(t, h1, "Bob", bobCPF)
	require.Equal(t, http.StatusNoContent, do(t, h1, http.MethodDelete, "/account/"+bobCPF, nil).Code)

	// A second server has its own registry and must not disturb the first.
	h2, _ := setup(t)

	rec := do(t, h1, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\nfinapi_ledger_accounts 1\n")

	rec = do(t, h2, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\nfinapi_ledger_accounts 0\n")
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setup(t, WithAllowedOrigins("https://app.example"))
	req := httptest.NewRequest(http.MethodOptions, "/deposit/"+aliceCPF, nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
