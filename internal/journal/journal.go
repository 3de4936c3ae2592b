// Package journal keeps a durable record of rebalance runs and vault syncs.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"duncan/internal/config"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	writeTimeout     = 3 * time.Second
	defaultQueueSize = 256

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	KindRebalance = "rebalance"
	KindVaultSync = "vault_sync"
)

type Entry struct {
	ID      string          `json:"id"`
	Time    time.Time       `json:"time"`
	Kind    string          `json:"kind"`
	Network string          `json:"network"`
	Subject string          `json:"subject"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEntry stamps an entry with a fresh id and the current time. A non-nil
// err marks it failed.
func NewEntry(kind, network, subject string, payload any, err error) Entry {
	entry := Entry{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Kind:    kind,
		Network: network,
		Subject: subject,
		OK:      err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if payload != nil {
		if raw, mErr := json.Marshal(payload); mErr == nil {
			entry.Payload = raw
		}
	}
	return entry
}

type Journal struct {
	db      *sql.DB
	ownsDB  bool
	driver  string
	log     *zap.Logger
	entries chan Entry
	started atomic.Bool
	dropped atomic.Uint64
	done    chan struct{}
}

// Open connects to the configured database. It returns nil when the journal
// is disabled; a nil *Journal accepts and discards entries.
func Open(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*Journal, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	sqlDriver := DriverSQLite
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.Driver)
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	j, err := New(ctx, db, driver, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.ownsDB = true
	return j, nil
}

// New wraps an open handle, e.g. the state store's sqlite file.
func New(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal db is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	j := &Journal{
		db:      db,
		driver:  driver,
		log:     log,
		entries: make(chan Entry, defaultQueueSize),
		done:    make(chan struct{}),
	}
	if err := j.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	okType := "INTEGER"
	if j.driver == DriverPostgres {
		okType = "BOOLEAN"
	}
	return j.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		ts_ms BIGINT NOT NULL,
		kind TEXT NOT NULL,
		network TEXT NOT NULL,
		subject TEXT NOT NULL,
		ok %s NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT ''
	)`, okType))
}

// Start drains enqueued entries in the background until ctx is done.
func (j *Journal) Start(ctx context.Context) {
	if j == nil {
		return
	}
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	go j.run(ctx)
}

// Wait blocks until the background writer has flushed and stopped.
func (j *Journal) Wait() {
	if j == nil || !j.started.Load() {
		return
	}
	<-j.done
}

func (j *Journal) Close() error {
	if j == nil || !j.ownsDB {
		return nil
	}
	return j.db.Close()
}

// Enqueue never blocks; entries are dropped when the queue is full.
func (j *Journal) Enqueue(entry Entry) {
	if j == nil {
		return
	}
	select {
	case j.entries <- entry:
	default:
		if j.dropped.Add(1) == 1 {
			j.log.Warn("journal queue full")
		}
	}
}

func (j *Journal) run(ctx context.Context) {
	defer close(j.done)
	for {
		select {
		case <-ctx.Done():
			j.drain()
			return
		case entry := <-j.entries:
			if err := j.Record(context.WithoutCancel(ctx), entry); err != nil {
				j.log.Warn("journal insert failed", zap.String("kind", entry.Kind), zap.Error(err))
			}
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case entry := <-j.entries:
			if err := j.Record(context.Background(), entry); err != nil {
				j.log.Warn("journal insert failed", zap.String("kind", entry.Kind), zap.Error(err))
			}
		default:
			return
		}
	}
}

// Record writes entry synchronously.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if j == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO journal (id, ts_ms, kind, network, subject, ok, error, payload)
		VALUES (%s)`, j.placeholders(8))
	_, err := j.db.ExecContext(ctx, query,
		entry.ID,
		entry.Time.UnixMilli(),
		entry.Kind,
		entry.Network,
		entry.Subject,
		entry.OK,
		entry.Error,
		string(entry.Payload),
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, ts_ms, kind, network, subject, ok, error, payload
		FROM journal ORDER BY ts_ms DESC, id LIMIT %s`, j.placeholders(1))
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			tsMs    int64
			payload string
		)
		if err := rows.Scan(&entry.ID, &tsMs, &entry.Kind, &entry.Network, &entry.Subject, &entry.OK, &entry.Error, &payload); err != nil {
			return nil, err
		}
		entry.Time = time.UnixMilli(tsMs).UTC()
		if payload != "" {
			entry.Payload = json.RawMessage(payload)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (j *Journal) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if j.driver == DriverPostgres {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (j *Journal) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx, query)
	return err
}
