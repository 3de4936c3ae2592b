package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.hyperliquid.xyz"

var ErrZeroMargin = errors.New("margin amount must be non-zero")

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// VaultAddress, when set, makes every action trade on behalf of that
	// sub-account or vault.
	VaultAddress string
	Log          *zap.Logger
}

// Client signs and posts L1 actions to the /exchange endpoint. Responses are
// returned undecoded; see CheckResponse and ParseFill.
type Client struct {
	baseURL string
	http    *http.Client
	signer  *Signer
	vault   *common.Address
	nonces  *nonceClock
	log     *zap.Logger
}

func NewClient(cfg ClientConfig, signer *Signer) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	var vault *common.Address
	if v := strings.TrimSpace(cfg.VaultAddress); v != "" {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid vault address %q", v)
		}
		addr := common.HexToAddress(v)
		vault = &addr
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		signer:  signer,
		vault:   vault,
		nonces:  newNonceClock(log),
		log:     log,
	}, nil
}

// Address is the account the client acts for.
func (c *Client) Address() string {
	if c.vault != nil {
		return c.vault.Hex()
	}
	return c.signer.Address().Hex()
}

// UseNonceStore seeds the nonce clock from store and persists every nonce
// handed out afterwards.
func (c *Client) UseNonceStore(ctx context.Context, store NonceStore) error {
	if store == nil {
		return nil
	}
	return c.nonces.attach(ctx, store, nonceKey(c.baseURL, c.signer.Address(), c.vault))
}

func (c *Client) NonceState() (NonceState, bool) {
	return c.nonces.state()
}

func (c *Client) PlaceOrder(ctx context.Context, order OrderWire) (map[string]any, error) {
	action := OrderAction{Type: "order", Orders: []OrderWire{order}, Grouping: "na"}
	return c.submit(ctx, action.Type, action, func(nonce uint64) (Signature, error) {
		return c.signer.SignOrderAction(action, nonce, c.vault, nil)
	})
}

// UpdateIsolatedMargin moves ntli micro-units of quote into (positive) or out
// of (negative) the isolated position on asset.
func (c *Client) UpdateIsolatedMargin(ctx context.Context, asset int, ntli int64) (map[string]any, error) {
	if ntli == 0 {
		return nil, ErrZeroMargin
	}
	action := UpdateIsolatedMarginAction{Type: "updateIsolatedMargin", Asset: asset, IsBuy: true, Ntli: ntli}
	return c.submit(ctx, action.Type, action, func(nonce uint64) (Signature, error) {
		return c.signer.SignUpdateIsolatedMargin(action, nonce, c.vault, nil)
	})
}

func (c *Client) submit(ctx context.Context, kind string, action any, sign func(uint64) (Signature, error)) (map[string]any, error) {
	nonce := c.nonces.next()
	sig, err := sign(nonce)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", kind, err)
	}
	payload := SignedAction{Action: action, Nonce: nonce, Signature: sig}
	if c.vault != nil {
		addr := c.vault.Hex()
		payload.VaultAddress = &addr
	}
	start := time.Now()
	resp, err := c.post(ctx, "/exchange", payload)
	c.log.Debug("exchange action",
		zap.String("action", kind),
		zap.Uint64("nonce", nonce),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, body any) (map[string]any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return data, nil
}
