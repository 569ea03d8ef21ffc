// Package connection supervises the push channel for one client session.
// Connectivity failures never surface as errors; they are state transitions,
// ending in a terminal fallback state once the retry budget is spent.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lektio/lektio/internal/config"
	"github.com/lektio/lektio/internal/event_bus"
	"github.com/lektio/lektio/internal/utils"
	"github.com/lektio/lektio/pkg/channel"
	log "github.com/sirupsen/logrus"
)

type State string

const (
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDegradedRetry State = "degraded-retry"
	StateFallback      State = "fallback"
)

// Status is one observable state transition of the manager.
type Status struct {
	State   State     `json:"state"`
	Attempt int       `json:"attempt"`
	At      time.Time `json:"at"`
}

var ErrNotConnected = errors.New("push channel not connected")

// Conn is the live channel surface the manager supervises.
type Conn interface {
	Send(env channel.Envelope) error
	Listen(onMessage func(channel.Envelope), onDisconnect func(reason string, err error))
	Close() error
}

// Dialer opens a new push channel for a teacher's session.
type Dialer interface {
	Dial(ctx context.Context, teacherID string) (Conn, error)
}

// WebsocketDialer dials the real websocket endpoint.
type WebsocketDialer struct {
	Endpoint       string
	ConnectTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, teacherID string) (Conn, error) {
	return channel.Dial(ctx, d.Endpoint, teacherID, d.ConnectTimeout)
}

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Manager owns the session's single push channel. It is created per session,
// not shared globally, so its state transitions are observable and teardown is
// explicit.
type Manager struct {
	dialer     Dialer
	maxRetries int
	retryDelay time.Duration
	bus        *event_bus.EventBus
	clock      utils.Clock

	mu        sync.Mutex
	state     State
	attempt   int
	stateAt   time.Time
	conn      Conn
	teacherID string
	onMessage func(channel.Envelope)
}

func NewManager(dialer Dialer, maxRetries int, retryDelay time.Duration, bus *event_bus.EventBus) *Manager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Manager{
		dialer:     dialer,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		bus:        bus,
		clock:      utils.SystemClock{},
	}
}

// NewManagerFromConfig builds the websocket dialer and manager from the
// channel configuration block, so the endpoint and retry policy come from
// defaults, the YAML file, or LEKTIO_CHANNEL_* environment variables.
func NewManagerFromConfig(cfg config.Channel, bus *event_bus.EventBus) *Manager {
	dialer := WebsocketDialer{
		Endpoint:       cfg.Endpoint,
		ConnectTimeout: cfg.ConnectTimeout(),
	}
	return NewManager(dialer, cfg.MaxRetries, cfg.RetryDelay(), bus)
}

// SetClock replaces the transition-timestamp clock, for tests.
func (m *Manager) SetClock(clock utils.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// OnMessage registers the handler for inbound envelopes. Register it before
// Connect so no message is dropped.
func (m *Manager) OnMessage(h func(channel.Envelope)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = h
}

// Connect runs the bounded dial loop for the given teacher's session and
// returns the resulting state: StateConnected, or StateFallback once all
// attempts are spent. Fallback is terminal for the session; the manager never
// dials again on its own.
func (m *Manager) Connect(ctx context.Context, teacherID string) State {
	m.mu.Lock()
	m.teacherID = teacherID
	m.mu.Unlock()
	return m.dialLoop(ctx)
}

// Reconnect re-runs the dial loop on explicit caller request. This is the
// manual path out of fallback; nothing triggers it automatically.
func (m *Manager) Reconnect(ctx context.Context) State {
	return m.dialLoop(ctx)
}

func (m *Manager) dialLoop(ctx context.Context) State {
	m.mu.Lock()
	teacherID := m.teacherID
	m.mu.Unlock()

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		m.setState(StateConnecting, attempt)

		conn, err := m.dialer.Dial(ctx, teacherID)
		if err == nil {
			m.attach(conn)
			m.setState(StateConnected, attempt)
			return StateConnected
		}
		log.Warnf("Push channel attempt %d/%d failed: %v", attempt, m.maxRetries, err)

		if attempt < m.maxRetries {
			select {
			case <-ctx.Done():
				log.Infof("Connection attempts cancelled: %v", ctx.Err())
				m.setState(StateFallback, attempt)
				return StateFallback
			case <-time.After(m.retryDelay):
			}
		}
	}

	log.Warnf("Push channel unreachable after %d attempts, entering fallback mode", m.maxRetries)
	m.setState(StateFallback, m.maxRetries)
	return StateFallback
}

func (m *Manager) attach(conn Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	conn.Listen(m.dispatch, m.handleDisconnect)
}

func (m *Manager) dispatch(env channel.Envelope) {
	m.mu.Lock()
	h := m.onMessage
	m.mu.Unlock()
	if h != nil {
		h(env)
	}
}

// handleDisconnect reacts to the channel dying underneath us. A deliberate
// server restart gets one immediate redial, and if that fails the bounded
// dial loop runs before fallback is entered; anything else is surfaced as
// degraded-retry and left to the caller.
func (m *Manager) handleDisconnect(reason string, err error) {
	m.mu.Lock()
	if m.state == StateFallback {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	attempt := m.attempt
	teacherID := m.teacherID
	m.mu.Unlock()

	log.Infof("Push channel disconnected (reason %q): %v", reason, err)

	if reason == channel.ReasonServerRestart {
		m.setState(StateDegradedRetry, attempt)
		conn, dialErr := m.dialer.Dial(context.Background(), teacherID)
		if dialErr != nil {
			log.Warnf("Immediate reconnect after server restart failed: %v", dialErr)
			m.dialLoop(context.Background())
			return
		}
		m.attach(conn)
		m.setState(StateConnected, attempt)
		return
	}

	m.setState(StateDegradedRetry, attempt)
}

func (m *Manager) setState(state State, attempt int) {
	m.mu.Lock()
	m.state = state
	m.attempt = attempt
	at := m.clock.Now()
	m.stateAt = at
	m.mu.Unlock()

	log.Debugf("Connection state: %s (attempt %d)", state, attempt)
	if m.bus != nil {
		_ = m.bus.Publish(event_bus.NewEvent(context.Background(), event_bus.ConnectionStatusEvent,
			event_bus.ConnectionStatusChanged{
				State:   string(state),
				Attempt: attempt,
				At:      at,
			}))
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the latest transition; At is the instant the manager entered
// the current state, not the query time.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Attempt: m.attempt, At: m.stateAt}
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected && m.conn != nil
}

// UsingFallback reports whether the session has degraded to canned data.
func (m *Manager) UsingFallback() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateFallback
}

// Send forwards an envelope over the live channel. Callers are expected to
// treat ErrNotConnected as "skip the server, keep the local result".
func (m *Manager) Send(env channel.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}
	return conn.Send(env)
}

// Close tears the channel down for session teardown.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
