package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmelnik/relaylink/internal/backoff"
	"github.com/dmelnik/relaylink/internal/metrics"
	"github.com/dmelnik/relaylink/internal/netcheck"
	"github.com/dmelnik/relaylink/internal/queue"
	"github.com/dmelnik/relaylink/internal/registry"
)

// retryState tracks the reconnection controller. At most one cycle is
// ever in flight.
type retryState int

const (
	retryIdle      retryState = iota
	retryScheduled            // reachability check running or timer pending
	retryAttempting
)

// Manager owns the single logical connection: state machine, outbound
// queue, listener registry, and reconnection controller. All state
// transitions pass through one transition function under the manager
// mutex; event dispatch happens outside it.
type Manager struct {
	cfg     ManagerConfig
	dialer  Dialer
	checker netcheck.Checker
	logger  *slog.Logger
	metrics *metrics.Set

	// Survive session recreation
	events   *registry.Registry[Event]
	outbound *queue.Ring[[]byte]
	policy   *backoff.Policy

	mu         sync.Mutex
	state      State
	sess       *session
	token      string // cached credential for controller-initiated reconnects
	retry      retryState
	retryTimer *time.Timer
	// epoch invalidates in-flight async work (reachability checks,
	// dials, timers) started before the last explicit disconnect.
	epoch uint64
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithDialer substitutes the transport dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithMetrics attaches a metric set.
func WithMetrics(set *metrics.Set) Option {
	return func(m *Manager) { m.metrics = set }
}

// NewManager creates a Connection Manager. The checker gates every
// connect and reconnect attempt.
func NewManager(cfg ManagerConfig, checker netcheck.Checker, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = netcheck.AlwaysOnline{}
	}

	m := &Manager{
		cfg:      cfg,
		dialer:   wsDialer{},
		checker:  checker,
		logger:   logger,
		events:   registry.New[Event](),
		outbound: queue.NewRing[[]byte](cfg.MaxQueueSize),
		policy:   backoff.New(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay, cfg.MaxReconnectAttempts),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect establishes the connection asynchronously. A no-op while a
// session is Connecting/Open or a reconnect cycle is in flight. The
// token is cached for automatic reconnects; an empty token falls back
// to the cached one and is rejected when neither exists.
func (m *Manager) Connect(ctx context.Context, token string) {
	m.mu.Lock()
	if token == "" {
		token = m.token
	}
	if token == "" {
		m.mu.Unlock()
		m.logger.Error("connect rejected", "error", ErrNoCredential)
		return
	}
	if m.state == StateConnecting || m.state == StateOpen {
		state := m.state
		m.mu.Unlock()
		m.logger.Info("connect ignored, connection in progress", "state", state)
		return
	}
	if m.retry != retryIdle {
		m.mu.Unlock()
		m.logger.Info("connect ignored, reconnect already in flight")
		return
	}

	m.token = token
	m.retry = retryAttempting
	epoch := m.epoch
	m.mu.Unlock()

	go m.attempt(ctx, epoch)
}

// attempt runs one connect attempt: reachability gate, dial under the
// handshake watchdog, then session creation and queue flush.
func (m *Manager) attempt(ctx context.Context, epoch uint64) {
	if m.metrics != nil {
		m.metrics.ConnectAttempts.Inc()
	}

	status, err := m.checker.Check(ctx)

	m.mu.Lock()
	if epoch != m.epoch {
		// Disconnected while the check was in flight; result ignored.
		m.mu.Unlock()
		return
	}
	if err != nil || !status.Connected {
		m.retry = retryIdle
		m.policy.Reset()
		m.mu.Unlock()
		if err != nil {
			m.logger.Error("reachability check failed, aborting connect", "error", err)
		} else {
			m.logger.Warn("network unreachable, aborting connect")
		}
		return
	}

	m.transitionLocked(StateConnecting)
	token := m.token
	m.mu.Unlock()

	// The dial deadline is the handshake watchdog; canceling it is the
	// explicit teardown of the timer.
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	conn, dialErr := m.dialer.Dial(dialCtx, m.cfg.connectURL(token))
	cancel()

	m.mu.Lock()
	if epoch != m.epoch {
		if conn != nil {
			conn.Close()
		}
		m.mu.Unlock()
		return
	}
	if dialErr != nil {
		m.transitionLocked(StateClosed)
		m.retry = retryIdle
		m.mu.Unlock()

		if dialCtx.Err() != nil {
			m.logger.Warn("handshake watchdog fired", "timeout", m.cfg.HandshakeTimeout)
		} else {
			m.logger.Warn("connect failed", "error", dialErr)
		}
		m.scheduleReconnect()
		return
	}

	sess := newSession(conn, m.cfg, m.logger, sessionCallbacks{
		onMessage: m.handleMessage,
		onError:   m.handleError,
		onClose:   m.handleClose,
	})
	m.sess = sess
	m.transitionLocked(StateOpen)
	m.policy.Reset()
	m.retry = retryIdle
	pending := m.outbound.Drain()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.QueueDepth.Set(0)
	}
	m.logger.Info("connection open", "session_id", sess.id, "flushing", len(pending))

	sess.start()
	m.events.Dispatch(EventOpen, Event{Type: EventOpen, SessionID: sess.id, At: time.Now()})

	// Flush in FIFO order through the normal send path; if the
	// connection drops mid-flush the remainder re-queues.
	for _, payload := range pending {
		m.Send(payload)
	}
}

// Disconnect closes any live session, clears the outbound queue,
// cancels any pending reconnect, and resets backoff. Safe from any
// state. No close event is dispatched for a user-initiated disconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++

	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retry = retryIdle
	m.policy.Reset()
	m.outbound.Clear()

	if m.sess != nil {
		m.transitionLocked(StateClosing)
		m.sess.close()
		m.sess = nil
	}
	if m.state != StateIdle {
		m.transitionLocked(StateClosed)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.QueueDepth.Set(0)
	}
	m.logger.Info("disconnected")
}

// Send transmits the payload immediately when Open; otherwise it is
// buffered under the drop-oldest policy. A transmission failure on a
// live connection is reported to error listeners and not re-queued.
func (m *Manager) Send(payload []byte) {
	m.mu.Lock()
	if m.state == StateOpen && m.sess != nil {
		sess := m.sess
		m.mu.Unlock()

		if err := sess.send(payload); err != nil {
			if m.metrics != nil {
				m.metrics.SendErrors.Inc()
			}
			m.logger.Warn("send failed", "session_id", sess.id, "error", err)
			m.events.Dispatch(EventError, Event{
				Type:      EventError,
				SessionID: sess.id,
				Err:       fmt.Errorf("send: %w", err),
				At:        time.Now(),
			})
			return
		}
		if m.metrics != nil {
			m.metrics.MessagesSent.Inc()
		}
		return
	}

	dropped := m.outbound.Push(payload)
	depth := m.outbound.Len()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.MessagesQueued.Inc()
		m.metrics.QueueDepth.Set(float64(depth))
		if dropped {
			m.metrics.MessagesDropped.Inc()
		}
	}
	if dropped {
		m.logger.Debug("outbound queue full, dropped oldest payload", "depth", depth)
	}
}

// SendJSON marshals v and sends it through Send.
func (m *Manager) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	m.Send(data)
	return nil
}

// Register adds a listener for the given event name. Takes effect
// immediately for any live session.
func (m *Manager) Register(event string, fn Listener) Subscription {
	return m.events.Register(event, fn)
}

// Unregister removes a previous registration; unknown subscriptions
// are a no-op.
func (m *Manager) Unregister(sub Subscription) {
	m.events.Unregister(sub)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ManagerStats provides a snapshot for diagnostics.
type ManagerStats struct {
	State             State
	ReconnectAttempts int
	QueueDepth        int
	QueueDropped      int64
	SessionID         uuid.UUID // Nil when no session is live
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{
		State:             m.state,
		ReconnectAttempts: m.policy.Attempts(),
		QueueDepth:        m.outbound.Len(),
		QueueDropped:      m.outbound.Stats().TotalDropped,
	}
	if m.sess != nil {
		stats.SessionID = m.sess.id
	}
	return stats
}

// handleMessage delivers a raw inbound frame to message listeners.
func (m *Manager) handleMessage(id uuid.UUID, data []byte) {
	if m.metrics != nil {
		m.metrics.MessagesReceived.Inc()
	}
	m.events.Dispatch(EventMessage, Event{
		Type:      EventMessage,
		SessionID: id,
		Data:      data,
		At:        time.Now(),
	})
}

// handleError tears the session down on a transport error and hands
// control to the reconnection controller.
func (m *Manager) handleError(id uuid.UUID, err error) {
	m.mu.Lock()
	if m.sess == nil || m.sess.id != id {
		// Stale callback from a session already torn down.
		m.mu.Unlock()
		return
	}
	m.sess.close()
	m.sess = nil
	m.transitionLocked(StateClosed)
	m.mu.Unlock()

	m.logger.Warn("connection error", "session_id", id, "error", err)
	m.events.Dispatch(EventError, Event{Type: EventError, SessionID: id, Err: err, At: time.Now()})
	m.scheduleReconnect()
}

// handleClose tears the session down on a server-initiated close and
// hands control to the reconnection controller.
func (m *Manager) handleClose(id uuid.UUID, code int, err error) {
	m.mu.Lock()
	if m.sess == nil || m.sess.id != id {
		m.mu.Unlock()
		return
	}
	m.sess.close()
	m.sess = nil
	m.transitionLocked(StateClosed)
	m.mu.Unlock()

	m.logger.Info("connection closed by peer", "session_id", id, "code", code)
	m.events.Dispatch(EventClose, Event{Type: EventClose, SessionID: id, Code: code, Err: err, At: time.Now()})
	m.scheduleReconnect()
}

// scheduleReconnect starts one reconnection cycle unless one is
// already in flight.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.retry != retryIdle {
		m.mu.Unlock()
		return
	}
	m.retry = retryScheduled
	epoch := m.epoch
	m.mu.Unlock()

	go m.reconnectCycle(epoch)
}

// reconnectCycle is the controller body: reachability gate, attempts
// cap, then a single-shot jittered timer that re-enters the connect
// path.
func (m *Manager) reconnectCycle(epoch uint64) {
	status, err := m.checker.Check(context.Background())

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	if err != nil || !status.Connected {
		// Offline: no timer. A future explicit connect restarts the cycle.
		m.retry = retryIdle
		m.policy.Reset()
		m.mu.Unlock()
		if err != nil {
			m.logger.Error("reachability check failed, reconnect cycle aborted", "error", err)
		} else {
			m.logger.Warn("network unreachable, reconnect cycle aborted")
		}
		return
	}

	delay, ok := m.policy.Next()
	if !ok {
		m.retry = retryIdle
		m.policy.Reset()
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.RetriesExhausted.Inc()
		}
		m.logger.Error("reconnect attempts exhausted, giving up",
			"max_attempts", m.cfg.MaxReconnectAttempts,
		)
		m.events.Dispatch(EventError, Event{Type: EventError, Err: ErrRetriesExhausted, At: time.Now()})
		return
	}

	attempt := m.policy.Attempts()
	m.retryTimer = time.AfterFunc(delay, func() { m.retryFire(epoch) })
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ReconnectsScheduled.Inc()
	}
	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// retryFire runs when the backoff timer expires.
func (m *Manager) retryFire(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.retry = retryAttempting
	m.mu.Unlock()

	m.attempt(context.Background(), epoch)
}

// transitionLocked is the single authoritative state transition
// function. Callers hold m.mu. Invalid transitions are refused and
// logged; the defined state table is the only path between states.
func (m *Manager) transitionLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	if !validTransition(from, to) {
		m.logger.Warn("refusing invalid state transition", "from", from, "to", to)
		return
	}
	m.state = to
	if m.metrics != nil {
		m.metrics.ConnectionState.Set(float64(to))
	}
	m.logger.Debug("state transition", "from", from, "to", to)
}

// validTransition encodes the connection state table.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateConnecting
	case StateConnecting:
		return to == StateOpen || to == StateClosing || to == StateClosed
	case StateOpen:
		return to == StateClosing || to == StateClosed
	case StateClosing:
		return to == StateClosed
	case StateClosed:
		return to == StateConnecting
	default:
		return false
	}
}
