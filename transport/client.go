package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
)

// EventHandler receives the raw payload of one event.
type EventHandler func(payload json.RawMessage)

// Client issues commands over a connection and correlates responses by id.
type Client struct {
	conn   *Conn
	logger *zap.Logger
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan *rawResult
	subs    map[string]map[uint64]EventHandler
	subID   uint64
	err     error

	done chan struct{}
}

// Connect dials url and starts the read loop. The loop stops when ctx
// ends or the connection drops.
func Connect(ctx context.Context, url string, header http.Header, logger *zap.Logger) (*Client, error) {
	conn, err := Dial(ctx, url, header, logger)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, conn, logger), nil
}

// NewClient starts a client over an established connection.
func NewClient(ctx context.Context, conn *Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		conn:    conn,
		logger:  logger.With(zap.String("component", "rpc_client")),
		pending: make(map[string]chan *rawResult),
		subs:    make(map[string]map[uint64]EventHandler),
		done:    make(chan struct{}),
	}
	go c.readLoop(ctx)
	return c
}

// Call sends method with params and waits for the matching response.
// An error result is returned as a *types.Error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan *rawResult, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	req := Request{ID: json.RawMessage(strconv.Quote(id)), Method: method, Params: raw}
	if err := c.conn.WriteJSON(ctx, req); err != nil {
		return nil, err
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, c.Err()
		}
		if res.Status != StatusSuccess {
			var ep ErrorPayload
			if err := json.Unmarshal(res.Payload, &ep); err != nil || ep.Code == "" {
				return nil, types.NewInternalError("malformed error result")
			}
			return nil, types.NewError(ep.Code, ep.Message)
		}
		return res.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallInto is Call followed by unmarshalling the payload into out.
func (c *Client) CallInto(ctx context.Context, method string, params, out any) error {
	payload, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

// Subscribe registers fn for events of type typ and returns a token for
// Unsubscribe.
func (c *Client) Subscribe(typ string, fn EventHandler) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subID++
	if c.subs[typ] == nil {
		c.subs[typ] = make(map[uint64]EventHandler)
	}
	c.subs[typ][c.subID] = fn
	return c.subID
}

// Unsubscribe removes a handler registered by Subscribe.
func (c *Client) Unsubscribe(typ string, token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs[typ], token)
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the read loop.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection and fails every pending call.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		f, err := c.conn.ReadFrame(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		switch {
		case f.IsResponse():
			c.deliver(f)
		case f.IsEvent():
			c.dispatchEvent(f)
		default:
			c.logger.Debug("ignoring frame", zap.String("method", f.Method))
		}
	}
}

func (c *Client) deliver(f *Frame) {
	key := idKey(f.ID)
	c.mu.Lock()
	ch := c.pending[key]
	c.mu.Unlock()
	if ch == nil {
		c.logger.Warn("response for unknown request", zap.String("id", key))
		return
	}
	ch <- f.Result
}

func (c *Client) dispatchEvent(f *Frame) {
	c.mu.Lock()
	handlers := make([]EventHandler, 0, len(c.subs[f.Type]))
	for _, h := range c.subs[f.Type] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(f.Payload)
	}
}

func (c *Client) fail(err error) {
	if IsNormalClosure(err) {
		err = ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
