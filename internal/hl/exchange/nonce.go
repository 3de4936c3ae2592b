package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NonceStore persists the last signed nonce across restarts.
type NonceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type NonceState struct {
	Key       string
	Last      uint64
	Persisted uint64
}

// nonceClock hands out strictly increasing millisecond nonces. Exchange
// nonces must be unique per signer, so two processes sharing a key rely on
// the persisted high-water mark.
type nonceClock struct {
	now       func() time.Time
	last      atomic.Uint64
	persisted atomic.Uint64

	store  NonceStore
	key    string
	log    *zap.Logger
	mu     sync.Mutex
	warned atomic.Bool
}

func newNonceClock(log *zap.Logger) *nonceClock {
	return &nonceClock{now: time.Now, log: log}
}

func (n *nonceClock) attach(ctx context.Context, store NonceStore, key string) error {
	seed := uint64(n.now().UnixMilli())
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load nonce %s: %w", key, err)
	}
	if ok {
		stored, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stored nonce %q: %w", raw, err)
		}
		seed = max(seed, stored)
	}
	seed = max(seed, n.last.Load())
	n.store = store
	n.key = key
	n.last.Store(seed)
	n.persisted.Store(seed)
	return nil
}

func (n *nonceClock) next() uint64 {
	now := uint64(n.now().UnixMilli())
	for {
		prev := n.last.Load()
		next := max(now, prev+1)
		if n.last.CompareAndSwap(prev, next) {
			n.persist(next)
			return next
		}
	}
}

func (n *nonceClock) persist(nonce uint64) {
	if n.store == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if nonce <= n.persisted.Load() {
		return
	}
	if err := n.store.Set(context.Background(), n.key, strconv.FormatUint(nonce, 10)); err != nil {
		// warn once per failure streak
		if n.warned.CompareAndSwap(false, true) {
			n.log.Warn("nonce persistence failed", zap.String("nonce_key", n.key), zap.Error(err))
		}
		return
	}
	n.persisted.Store(nonce)
	n.warned.Store(false)
}

func (n *nonceClock) state() (NonceState, bool) {
	if n.store == nil {
		return NonceState{}, false
	}
	return NonceState{Key: n.key, Last: n.last.Load(), Persisted: n.persisted.Load()}, true
}

func nonceKey(baseURL string, signer common.Address, vault *common.Address) string {
	owner := "none"
	if vault != nil {
		owner = strings.ToLower(vault.Hex())
	}
	return fmt.Sprintf("exchange:nonce:%s:%s:%s",
		strings.ToLower(strings.TrimSpace(baseURL)), strings.ToLower(signer.Hex()), owner)
}
