package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sessionCallbacks is the fixed set of transport event slots. The
// manager owns all four; application listeners are reached through the
// manager's registry, never attached to the transport directly.
type sessionCallbacks struct {
	onMessage func(id uuid.UUID, data []byte)
	onError   func(id uuid.UUID, err error)
	onClose   func(id uuid.UUID, code int, err error)
}

// session wraps one physical transport connection. It never outlives
// the manager's transition to Closed: the manager tears it down on any
// terminal event.
type session struct {
	id     uuid.UUID
	conn   Conn
	cfg    ManagerConfig
	logger *slog.Logger
	cb     sessionCallbacks

	startedAt time.Time

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.Mutex
	lastPingAt time.Time
	closed     bool
	done       chan struct{}
}

// newSession wraps an established connection. Call start to begin
// reading.
func newSession(conn Conn, cfg ManagerConfig, logger *slog.Logger, cb sessionCallbacks) *session {
	s := &session{
		id:        uuid.New(),
		conn:      conn,
		cfg:       cfg,
		cb:        cb,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.logger = logger.With("session_id", s.id)

	// Server pings are answered with pongs; both directions refresh
	// the liveness timestamp.
	conn.SetPingHandler(func(data string) error {
		s.mu.Lock()
		s.lastPingAt = time.Now()
		s.mu.Unlock()

		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	conn.SetPongHandler(func(data string) error {
		s.mu.Lock()
		s.lastPingAt = time.Now()
		s.mu.Unlock()
		return nil
	})

	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	return s
}

// start launches the read loop and, when configured, the keepalive loop.
func (s *session) start() {
	go s.readLoop()
	if s.cfg.PingInterval > 0 {
		go s.keepaliveLoop()
	}
}

// send transmits a payload as a single binary frame.
func (s *session) send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// close tears the session down. Idempotent; read errors after close are
// suppressed rather than reported through the callbacks.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
}

// readLoop reads frames until the connection fails or closes. Transport
// close frames route to onClose; everything else routes to onError.
func (s *session) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}

			if closeErr, ok := err.(*websocket.CloseError); ok {
				s.cb.onClose(s.id, closeErr.Code, err)
			} else {
				s.cb.onError(s.id, err)
			}
			return
		}

		s.cb.onMessage(s.id, data)
	}
}

// keepaliveLoop pings the server periodically and reports a stale
// connection when neither pings nor pongs arrive within PingTimeout.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.Lock()
			lastPing := s.lastPingAt
			s.mu.Unlock()

			if s.cfg.PingTimeout > 0 && time.Since(lastPing) > s.cfg.PingTimeout {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				select {
				case <-s.done:
				default:
					s.cb.onError(s.id, ErrStaleConnection)
				}
				return
			}
		}
	}
}
