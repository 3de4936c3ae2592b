package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"duncan/internal/config"
	"duncan/internal/hedge"
	"duncan/internal/hl/exchange"
	"duncan/internal/journal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce036f81af8f9b72d3d80b2"

func testCredentials(t *testing.T) config.Credentials {
	t.Helper()
	signer, err := exchange.NewSigner(testKey, true)
	require.NoError(t, err)
	return config.Credentials{WalletAddress: signer.Address().Hex(), PrivateKey: testKey}
}

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "duncan.db")
	cfg, err := config.LoadOrDefault("")
	require.NoError(t, err)
	cfg.Mainnet.RESTURL = url
	cfg.Testnet.RESTURL = url
	cfg.REST.Retries = 0
	cfg.State.SQLitePath = dbPath
	cfg.Journal = config.JournalConfig{Enabled: true, Driver: "sqlite", DSN: dbPath}
	return cfg
}

func flatVenue(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req["type"] {
		case "clearinghouseState":
			_ = json.NewEncoder(w).Encode(map[string]any{"withdrawable": "100", "assetPositions": []any{}})
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewBuildsBothNetworks(t *testing.T) {
	srv := flatVenue(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), testCredentials(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "mainnet", a.Network(false).Name)
	assert.Equal(t, "testnet", a.Network(true).Name)
	assert.NotSame(t, a.Manager(false), a.Manager(true))
}

func TestNewRequiresCredentials(t *testing.T) {
	srv := flatVenue(t)
	_, err := New(context.Background(), testConfig(t, srv.URL), config.Credentials{}, nil)
	require.ErrorIs(t, err, config.ErrMissingCredential)

	creds := testCredentials(t)
	creds.WalletAddress = "0x0000000000000000000000000000000000000001"
	_, err = New(context.Background(), testConfig(t, srv.URL), creds, nil)
	require.ErrorIs(t, err, config.ErrMissingCredential)
	assert.Contains(t, err.Error(), "does not match")
}

func TestRebalanceIsJournaled(t *testing.T) {
	srv := flatVenue(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), testCredentials(t), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Rebalance(ctx, true, "ETH")
	require.ErrorIs(t, err, hedge.ErrPositionNotFound)

	entries, err := a.journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.KindRebalance, entries[0].Kind)
	assert.Equal(t, "testnet", entries[0].Network)
	assert.Equal(t, "ETH", entries[0].Subject)
	assert.False(t, entries[0].OK)
	assert.Equal(t, "no short position for ETH", entries[0].Error)
}

func TestBalanceThroughManager(t *testing.T) {
	srv := flatVenue(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), testCredentials(t), nil)
	require.NoError(t, err)
	defer a.Close()

	balance, err := a.Manager(false).Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hedge.Balance{Amount: 100, Symbol: "USDC"}, balance)
}

func TestSyncVaultWithoutChain(t *testing.T) {
	srv := flatVenue(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), testCredentials(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.SyncVault(context.Background(), "0x5FbDB2315678afecb367f032d93F642f64180aa3", true)
	require.True(t, errors.Is(err, config.ErrMissingCredential))
}

func TestServeRequiresAPIKey(t *testing.T) {
	srv := flatVenue(t)
	a, err := New(context.Background(), testConfig(t, srv.URL), testCredentials(t), nil)
	require.NoError(t, err)
	defer a.Close()

	require.ErrorIs(t, a.Serve(context.Background()), config.ErrMissingCredential)
}
