package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/flowedit/internal/tlsutil"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrConnClosed is returned by writes on a closed connection.
	ErrConnClosed = errors.New("transport: connection closed")
	// ErrBadFrame wraps frames that are not JSON text.
	ErrBadFrame = errors.New("transport: bad frame")
)

// Subprotocol is negotiated on upgrade.
const Subprotocol = "flowedit.v1"

// DefaultReadLimit bounds one inbound frame. Whole workflow documents
// travel in a single saveWorkflow request.
const DefaultReadLimit int64 = 4 << 20

// Conn adapts a websocket connection to JSON frames. Writes are
// serialized; reads must come from a single goroutine.
type Conn struct {
	id     string
	ws     *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex // guards writes and closed
	closed bool
}

// NewConn wraps an established websocket connection.
func NewConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	ws.SetReadLimit(DefaultReadLimit)
	return &Conn{
		id:     id,
		ws:     ws,
		logger: logger.With(zap.String("component", "ws_conn"), zap.String("conn_id", id)),
	}
}

// AcceptOptions configures the server side upgrade.
type AcceptOptions struct {
	// OriginPatterns lists allowed cross origin hosts. "*" disables the
	// origin check.
	OriginPatterns []string
}

// Accept upgrades an HTTP request to a websocket connection.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions, logger *zap.Logger) (*Conn, error) {
	wsOpts := &websocket.AcceptOptions{Subprotocols: []string{Subprotocol}}
	for _, p := range opts.OriginPatterns {
		if p == "*" {
			wsOpts.InsecureSkipVerify = true
			wsOpts.OriginPatterns = nil
			break
		}
		wsOpts.OriginPatterns = append(wsOpts.OriginPatterns, p)
	}
	ws, err := websocket.Accept(w, r, wsOpts)
	if err != nil {
		return nil, fmt.Errorf("websocket accept: %w", err)
	}
	return NewConn(ws, logger), nil
}

// Dial opens a client connection to url.
func Dial(ctx context.Context, url string, header http.Header, logger *zap.Logger) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:   tlsutil.WebSocketClient(url),
		HTTPHeader:   header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewConn(ws, logger), nil
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// ReadFrame reads and decodes the next text frame.
func (c *Conn) ReadFrame(ctx context.Context) (*Frame, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("%w: binary message", ErrBadFrame)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return &f, nil
}

// WriteJSON encodes v and sends it as one text frame.
func (c *Conn) WriteJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.write(ctx, data)
}

func (c *Conn) write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// SendEvent pushes an event frame.
func (c *Conn) SendEvent(ctx context.Context, typ string, payload any) error {
	return c.WriteJSON(ctx, Event{Type: typ, Payload: payload})
}

// Close performs the closing handshake. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Debug("closing connection")
	return c.ws.Close(websocket.StatusNormalClosure, "closing")
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsNormalClosure reports whether err ends a connection cleanly.
func IsNormalClosure(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

type connKey struct{}

// WithConn returns a context carrying c.
func WithConn(ctx context.Context, c *Conn) context.Context {
	return context.WithValue(ctx, connKey{}, c)
}

// ConnFromContext returns the connection serving the current request.
func ConnFromContext(ctx context.Context) (*Conn, bool) {
	c, ok := ctx.Value(connKey{}).(*Conn)
	return c, ok
}
