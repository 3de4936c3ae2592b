package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"duncan/internal/hedge"
	"duncan/internal/journal"
	"duncan/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePositions struct {
	positions map[string]hedge.Position
}

func (f *fakePositions) Info(ctx context.Context, symbol string) (hedge.Position, error) {
	pos, ok := f.positions[symbol]
	if !ok {
		return hedge.Position{}, fmt.Errorf("%w for %s", hedge.ErrPositionNotFound, symbol)
	}
	return pos, nil
}

type fakeVault struct {
	calls []string
	err   error
}

func (f *fakeVault) Sync(ctx context.Context, address string, simulate bool) (vault.SyncResult, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s simulate=%v", address, simulate))
	if f.err != nil {
		return vault.SyncResult{}, f.err
	}
	return vault.SyncResult{Vault: address, Fn: "setAssetsInUse", Args: []string{"12345600"}}, nil
}

type fakeJournal struct{}

func (fakeJournal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	return []journal.Entry{{ID: "1", Kind: journal.KindRebalance, Network: "mainnet", Subject: "ETH", OK: true}}, nil
}

const testVault = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newTestServer(v *fakeVault) *Server {
	return New(Config{
		APIKey:  "secret",
		Mainnet: &fakePositions{positions: map[string]hedge.Position{"ETH": {Symbol: "ETH", Notional: 10000, Margin: 1000}}},
		Testnet: &fakePositions{positions: map[string]hedge.Position{"BTC": {Symbol: "BTC", Notional: 500, Margin: 50}}},
		Vault:   v,
		Journal: fakeJournal{},
	})
}

func do(t *testing.T, s *Server, method, target string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeVault{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestPositionInfo(t *testing.T) {
	s := newTestServer(&fakeVault{})

	rec, body := do(t, s, http.MethodGet, "/position/ETH/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ETH", body["symbol"])
	assert.Equal(t, 1000.0, body["margin"])

	rec, _ = do(t, s, http.MethodGet, "/position/BTC/info", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, s, http.MethodGet, "/position/BTC/info?testnet=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC", body["symbol"])
}

func TestVaultUpdateRequiresAPIKey(t *testing.T) {
	v := &fakeVault{}
	s := newTestServer(v)

	rec, body := do(t, s, http.MethodPost, "/vault/"+testVault+"/update", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authorized", body["error"])

	rec, _ = do(t, s, http.MethodPost, "/vault/"+testVault+"/update", map[string]string{APIKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, v.calls)
}

func TestVaultUpdate(t *testing.T) {
	v := &fakeVault{}
	s := newTestServer(v)
	auth := map[string]string{APIKeyHeader: "secret"}

	rec, body := do(t, s, http.MethodPost, "/vault/"+testVault+"/update", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testVault, body["vault"])
	assert.Equal(t, "setAssetsInUse", body["fn"])
	assert.Equal(t, []any{"12345600"}, body["args"])

	rec, _ = do(t, s, http.MethodPost, "/vault/"+testVault+"/update?simulate=true", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{testVault + " simulate=false", testVault + " simulate=true"}, v.calls)
}

func TestVaultUpdateErrors(t *testing.T) {
	auth := map[string]string{APIKeyHeader: "secret"}
	cases := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: %q", vault.ErrInvalidAddress, "0x1"), want: http.StatusBadRequest},
		{err: fmt.Errorf("%w for ETH", hedge.ErrPositionNotFound), want: http.StatusNotFound},
		{err: errors.New("rpc unavailable"), want: http.StatusBadGateway},
	}
	for _, tc := range cases {
		s := newTestServer(&fakeVault{err: tc.err})
		rec, body := do(t, s, http.MethodPost, "/vault/0x1/update", auth)
		assert.Equal(t, tc.want, rec.Code)
		assert.Equal(t, tc.err.Error(), body["error"])
	}
}

func TestEmptyAPIKeyRejectsAll(t *testing.T) {
	s := New(Config{Vault: &fakeVault{}})
	rec, _ := do(t, s, http.MethodPost, "/vault/"+testVault+"/update", map[string]string{APIKeyHeader: ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJournalRoute(t *testing.T) {
	s := newTestServer(&fakeVault{})
	req := httptest.NewRequest(http.MethodGet, "/journal?limit=5", nil)
	req.Header.Set(APIKeyHeader, "secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []journal.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ETH", entries[0].Subject)
}
