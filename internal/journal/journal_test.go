package journal

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"duncan/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	cfg := config.JournalConfig{
		Enabled: true,
		Driver:  DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "journal.db"),
	}
	j, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpenDisabled(t *testing.T) {
	j, err := Open(context.Background(), config.JournalConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, j)

	// nil journal swallows everything
	j.Enqueue(NewEntry(KindRebalance, "mainnet", "ETH", nil, nil))
	require.NoError(t, j.Record(context.Background(), Entry{}))
	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.JournalConfig{Enabled: true, Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first := NewEntry(KindRebalance, "testnet", "ETH", map[string]any{"direction": "increase-leverage"}, nil)
	first.Time = time.UnixMilli(1_700_000_000_000).UTC()
	second := NewEntry(KindVaultSync, "mainnet", "0xabc", nil, errors.New("no short position for ETH"))
	second.Time = first.Time.Add(time.Second)

	require.NoError(t, j.Record(ctx, first))
	require.NoError(t, j.Record(ctx, second))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID)
	assert.False(t, entries[0].OK)
	assert.Equal(t, "no short position for ETH", entries[0].Error)
	assert.Empty(t, entries[0].Payload)

	assert.Equal(t, first.ID, entries[1].ID)
	assert.True(t, entries[1].OK)
	assert.Equal(t, first.Time, entries[1].Time)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(entries[1].Payload, &payload))
	assert.Equal(t, "increase-leverage", payload["direction"])
}

func TestEnqueueFlushesOnShutdown(t *testing.T) {
	j := openTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)

	for i := 0; i < 5; i++ {
		j.Enqueue(NewEntry(KindRebalance, "mainnet", "BTC", nil, nil))
	}
	cancel()
	j.Wait()

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?", (&Journal{driver: DriverSQLite}).placeholders(2))
	assert.Equal(t, "$1, $2, $3", (&Journal{driver: DriverPostgres}).placeholders(3))
}
