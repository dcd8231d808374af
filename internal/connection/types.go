package connection

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmelnik/relaylink/internal/config"
	"github.com/dmelnik/relaylink/internal/registry"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrNoCredential     = errors.New("no credential available")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
)

// State is the connection lifecycle state. Exactly one value is
// authoritative at a time, owned by the Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event names exposed to application listeners.
const (
	EventOpen    = "open"
	EventMessage = "message"
	EventError   = "error"
	EventClose   = "close"
)

// Event is delivered to registered listeners. Message payloads are
// passed through undecoded; interpreting them is the listener's job.
type Event struct {
	Type      string
	SessionID uuid.UUID // session the event originated from (Nil for terminal retry errors)
	Data      []byte    // raw frame payload (message events)
	Err       error     // cause (error and close events)
	Code      int       // close code (close events)
	At        time.Time
}

// Listener is an application callback for connection events.
type Listener = registry.Listener[Event]

// Subscription identifies one listener registration.
type Subscription = registry.Subscription

// Conn is the minimal transport surface the session needs from a
// WebSocket connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer establishes transport connections. The default implementation
// wraps the gorilla dialer; tests substitute their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// wsDialer is the production Dialer.
type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Host                 string        // server host; connect URL is wss://<host>/ws/v1/connect?auth=<token>
	MaxReconnectAttempts int           // automatic retry cap per outage
	ReconnectBaseDelay   time.Duration // base delay for the first retry
	ReconnectMaxDelay    time.Duration // delay cap
	HandshakeTimeout     time.Duration // watchdog on the connect attempt
	MaxQueueSize         int           // outbound queue capacity
	PingInterval         time.Duration // keepalive ping period (0 disables)
	PingTimeout          time.Duration // max silence before the connection is stale
	WriteTimeout         time.Duration // write deadline for sends
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig(host string) ManagerConfig {
	return ManagerConfig{
		Host:                 host,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		MaxQueueSize:         100,
		PingInterval:         30 * time.Second,
		PingTimeout:          60 * time.Second,
		WriteTimeout:         5 * time.Second,
	}
}

// NewManagerConfig builds a ManagerConfig from loaded configuration.
func NewManagerConfig(host string, cc config.ConnectionConfig) ManagerConfig {
	return ManagerConfig{
		Host:                 host,
		MaxReconnectAttempts: cc.MaxReconnectAttempts,
		ReconnectBaseDelay:   cc.ReconnectBaseDelay,
		ReconnectMaxDelay:    cc.ReconnectMaxDelay,
		HandshakeTimeout:     cc.HandshakeTimeout,
		MaxQueueSize:         cc.MaxQueueSize,
		PingInterval:         cc.PingInterval,
		PingTimeout:          cc.PingTimeout,
		WriteTimeout:         cc.WriteTimeout,
	}
}

// connectURL builds the transport URL for the given token. A host with
// an explicit ws:// or wss:// prefix is used as-is (test servers speak
// plain ws).
func (c ManagerConfig) connectURL(token string) string {
	scheme := "wss"
	host := c.Host
	if i := strings.Index(host, "://"); i >= 0 {
		scheme = host[:i]
		host = host[i+3:]
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/ws/v1/connect",
		RawQuery: url.Values{"auth": {token}}.Encode(),
	}
	return u.String()
}
