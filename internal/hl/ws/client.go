package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Subscription is a Hyperliquid channel subscription. Coin is only set for
// per-asset channels such as activeAssetCtx.
type Subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// Message is one server push. Data is left raw for the channel's consumer.
type Message struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type Handler func(Message)

type request struct {
	Method       string        `json:"method"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// control channels answered by the server to our own requests
var controlChannels = map[string]bool{
	"pong":                 true,
	"subscriptionResponse": true,
}

// Client keeps one websocket open, reconnecting after reconnectDelay and
// replaying every subscription on each new connection.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	subs []Subscription
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &Client{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Subscribe records sub and sends it if a connection is open. Duplicate
// subscriptions are ignored.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	c.mu.Lock()
	for _, existing := range c.subs {
		if existing == sub {
			c.mu.Unlock()
			return nil
		}
	}
	c.subs = append(c.subs, sub)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return send(ctx, conn, request{Method: "subscribe", Subscription: &sub})
}

// Run reads until ctx is done. Control replies are dropped; every other
// message goes to handler.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	for {
		err := c.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logSessionEnd(err)
		c.dropConn()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) session(ctx context.Context, handler Handler) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for i := range subs {
		if err := send(ctx, conn, request{Method: "subscribe", Subscription: &subs[i]}); err != nil {
			return err
		}
	}

	pingCtx, cancel := context.WithCancel(ctx)
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.ping(pingCtx, conn)
	}()
	defer func() {
		cancel()
		<-pingDone
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("ws decode error", zap.Error(err))
			continue
		}
		if controlChannels[msg.Channel] || handler == nil {
			continue
		}
		handler(msg)
	}
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(ctx, conn, request{Method: "ping"}); err != nil {
				return
			}
		}
	}
}

func (c *Client) logSessionEnd(err error) {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
		c.log.Info("ws session closed", zap.String("reason", closeErr.Reason))
		return
	}
	c.log.Warn("ws session ended", zap.String("url", c.url), zap.Error(err))
}

func (c *Client) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reconnect")
		c.conn = nil
	}
}

func send(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
