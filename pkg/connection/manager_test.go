package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lektio/lektio/internal/config"
	"github.com/lektio/lektio/internal/event_bus"
	"github.com/lektio/lektio/internal/utils"
	"github.com/lektio/lektio/pkg/channel"
	"github.com/stretchr/testify/assert"
)

type stubConn struct {
	mu           sync.Mutex
	sent         []channel.Envelope
	onMessage    func(channel.Envelope)
	onDisconnect func(reason string, err error)
}

func (c *stubConn) Send(env channel.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *stubConn) Listen(onMessage func(channel.Envelope), onDisconnect func(reason string, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = onMessage
	c.onDisconnect = onDisconnect
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) disconnect(reason string) {
	c.mu.Lock()
	onDisconnect := c.onDisconnect
	c.mu.Unlock()
	onDisconnect(reason, errors.New("connection closed"))
}

// stubDialer returns the scripted outcomes in order, then keeps failing.
type stubDialer struct {
	mu       sync.Mutex
	outcomes []*stubConn
	dials    int
}

func (d *stubDialer) Dial(ctx context.Context, teacherID string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.outcomes) == 0 {
		return nil, errors.New("dial refused")
	}
	next := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	if next == nil {
		return nil, errors.New("dial refused")
	}
	return next, nil
}

func newTestManager(dialer Dialer, bus *event_bus.EventBus) *Manager {
	return NewManager(dialer, 3, time.Millisecond, bus)
}

func TestConnectSucceedsFirstAttempt(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{conn}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	state := m.Connect(context.Background(), "teacher-1")

	assert.Equal(t, StateConnected, state)
	assert.True(t, m.Connected())
	assert.False(t, m.UsingFallback())
	assert.Equal(t, 1, dialer.dials)
}

func TestConnectFallsBackAfterThreeFailures(t *testing.T) {
	dialer := &stubDialer{}
	bus := event_bus.NewEventBus()
	var states []string
	event_bus.SubscribeTyped[event_bus.ConnectionStatusChanged](bus, event_bus.ConnectionStatusEvent,
		func(e event_bus.EventT[event_bus.ConnectionStatusChanged]) error {
			states = append(states, e.Data.State)
			return nil
		})
	m := newTestManager(dialer, bus)

	state := m.Connect(context.Background(), "teacher-1")

	assert.Equal(t, StateFallback, state)
	assert.True(t, m.UsingFallback())
	assert.Equal(t, 3, dialer.dials)
	assert.Equal(t, []string{
		"connecting", "connecting", "connecting", "fallback",
	}, states)

	// Fallback is terminal: no further dialing happens on its own.
	assert.Equal(t, StateFallback, m.State())
	assert.Equal(t, 3, dialer.dials)
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{nil, nil, conn}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	state := m.Connect(context.Background(), "teacher-1")

	assert.Equal(t, StateConnected, state)
	assert.Equal(t, 3, dialer.dials)
}

func TestServerRestartTriggersOneImmediateReconnect(t *testing.T) {
	first := &stubConn{}
	second := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{first, second}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	m.Connect(context.Background(), "teacher-1")
	first.disconnect(channel.ReasonServerRestart)

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 2, dialer.dials)
}

func TestServerRestartRedialFailureRunsTheRetryBudget(t *testing.T) {
	first := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{first}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	m.Connect(context.Background(), "teacher-1")
	first.disconnect(channel.ReasonServerRestart)

	// 1 connect + 1 immediate redial + 3 bounded retries before fallback.
	assert.Equal(t, StateFallback, m.State())
	assert.True(t, m.UsingFallback())
	assert.Equal(t, 5, dialer.dials)
}

func TestServerRestartRedialFailureCanStillRecoverWithinBudget(t *testing.T) {
	first := &stubConn{}
	second := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{first, nil, second}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	m.Connect(context.Background(), "teacher-1")
	first.disconnect(channel.ReasonServerRestart)

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 3, dialer.dials)
}

func TestOtherDisconnectReasonSurfacesDegradedRetry(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{conn}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	m.Connect(context.Background(), "teacher-1")
	conn.disconnect("going away")

	assert.Equal(t, StateDegradedRetry, m.State())
	// No manager-driven redial for non-restart reasons.
	assert.Equal(t, 1, dialer.dials)
}

func TestSendRequiresConnection(t *testing.T) {
	dialer := &stubDialer{}
	m := newTestManager(dialer, event_bus.NewEventBus())
	m.Connect(context.Background(), "teacher-1")

	env, err := channel.NewEnvelope(channel.TypeGetEvents, channel.OwnerPayload{TeacherID: "teacher-1"})
	assert.NoError(t, err)
	assert.ErrorIs(t, m.Send(env), ErrNotConnected)
}

func TestReconnectIsTheManualPathOutOfFallback(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{}
	m := newTestManager(dialer, event_bus.NewEventBus())

	assert.Equal(t, StateFallback, m.Connect(context.Background(), "teacher-1"))

	dialer.mu.Lock()
	dialer.outcomes = []*stubConn{conn}
	dialer.mu.Unlock()

	assert.Equal(t, StateConnected, m.Reconnect(context.Background()))
	assert.True(t, m.Connected())
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := config.Channel{
		Endpoint:         "ws://schedule.example:9000/ws",
		MaxRetries:       5,
		RetryDelayMs:     20,
		ConnectTimeoutMs: 250,
	}
	m := NewManagerFromConfig(cfg, event_bus.NewEventBus())

	assert.Equal(t, 5, m.maxRetries)
	assert.Equal(t, 20*time.Millisecond, m.retryDelay)
	dialer, ok := m.dialer.(WebsocketDialer)
	assert.True(t, ok)
	assert.Equal(t, "ws://schedule.example:9000/ws", dialer.Endpoint)
	assert.Equal(t, 250*time.Millisecond, dialer.ConnectTimeout)
}

func TestStatusRecordsTheTransitionInstant(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{conn}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	connectedAt := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	clock := &utils.MockClock{FixedNow: connectedAt}
	m.SetClock(clock)

	m.Connect(context.Background(), "teacher-1")

	status := m.Status()
	assert.Equal(t, StateConnected, status.State)
	assert.Equal(t, connectedAt, status.At)

	// Querying later does not move the timestamp; only a transition does.
	clock.Advance(time.Hour)
	assert.Equal(t, connectedAt, m.Status().At)

	conn.disconnect("going away")
	assert.Equal(t, connectedAt.Add(time.Hour), m.Status().At)
}

func TestInboundMessagesReachTheRegisteredHandler(t *testing.T) {
	conn := &stubConn{}
	dialer := &stubDialer{outcomes: []*stubConn{conn}}
	m := newTestManager(dialer, event_bus.NewEventBus())

	var received []channel.Envelope
	m.OnMessage(func(env channel.Envelope) {
		received = append(received, env)
	})
	m.Connect(context.Background(), "teacher-1")

	conn.onMessage(channel.Envelope{Type: channel.TypeEventDeleted})

	assert.Len(t, received, 1)
	assert.Equal(t, channel.TypeEventDeleted, received[0].Type)
}
