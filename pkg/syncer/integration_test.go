package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/lektio/lektio/internal/config"
	"github.com/lektio/lektio/internal/event_bus"
	"github.com/lektio/lektio/internal/test_utils"
	"github.com/lektio/lektio/pkg/connection"
	"github.com/lektio/lektio/pkg/fallback"
	"github.com/lektio/lektio/pkg/schedule"
	"github.com/lektio/lektio/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSession struct {
	syncer  *Syncer
	manager *connection.Manager
	store   *store.Store
}

func startSession(t *testing.T, endpoint, teacherID string) *testSession {
	t.Helper()

	st := store.New()
	bus := event_bus.NewEventBus()
	manager := connection.NewManagerFromConfig(config.Channel{
		Endpoint:         endpoint,
		MaxRetries:       3,
		RetryDelayMs:     10,
		ConnectTimeoutMs: 1000,
	}, bus)
	s := New(st, manager, fallback.NewProvider(), bus, teacherID)
	manager.OnMessage(s.HandleRemote)

	state := manager.Connect(context.Background(), teacherID)
	require.Equal(t, connection.StateConnected, state)
	t.Cleanup(func() { _ = manager.Close() })

	return &testSession{syncer: s, manager: manager, store: st}
}

func TestTwoSessionsSeeEachOthersMutations(t *testing.T) {
	endpoint, _ := test_utils.StartRelay(t)

	alice := startSession(t, endpoint, "teacher-1")
	bob := startSession(t, endpoint, "teacher-1")

	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	created, err := alice.syncer.CreateEvent(context.Background(), schedule.CalendarEvent{
		Title:     "Algebra II",
		Category:  schedule.CategoryClass,
		StartTime: start,
		EndTime:   start.Add(90 * time.Minute),
		Location:  "Room 101",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		event, ok := bob.store.Event(created.ID)
		return ok && event.Title == "Algebra II"
	}, 2*time.Second, 10*time.Millisecond, "bob never received the created event")

	require.NoError(t, alice.syncer.DeleteEvent(context.Background(), created.ID))

	assert.Eventually(t, func() bool {
		_, ok := bob.store.Event(created.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "bob never received the delete")
}

func TestRelayClampsBookingCountAndEchoWins(t *testing.T) {
	endpoint, _ := test_utils.StartRelay(t)

	session := startSession(t, endpoint, "teacher-1")

	slot := schedule.OfficeHourSlot{
		Day:         time.Monday,
		StartTime:   "14:00",
		EndTime:     "15:00",
		IsRecurring: true,
		Location:    "Office 12",
		MaxStudents: 5,
		BookedCount: 10,
	}
	saved, fieldErrors, err := session.syncer.SaveOfficeHour(context.Background(), slot)
	require.NoError(t, err)
	require.Empty(t, fieldErrors)

	// The optimistic copy still carries the caller's count; the relay's echo
	// is authoritative and clamps it to capacity.
	assert.Eventually(t, func() bool {
		stored, ok := session.store.OfficeHour(saved.ID)
		return ok && stored.BookedCount == 5
	}, 2*time.Second, 10*time.Millisecond, "authoritative booking count never arrived")
}

func TestLateSessionLoadsSnapshotOnRefresh(t *testing.T) {
	endpoint, _ := test_utils.StartRelay(t)

	alice := startSession(t, endpoint, "teacher-1")
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	for _, title := range []string{"Algebra II", "Geometry"} {
		_, err := alice.syncer.CreateEvent(context.Background(), schedule.CalendarEvent{
			Title:     title,
			Category:  schedule.CategoryClass,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		})
		require.NoError(t, err)
		start = start.Add(2 * time.Hour)
	}

	late := startSession(t, endpoint, "teacher-1")
	late.syncer.Refresh(context.Background())

	assert.Eventually(t, func() bool {
		return len(late.store.Events()) == 2
	}, 2*time.Second, 10*time.Millisecond, "late session never loaded the snapshot")
}

func TestUnreachableEndpointDegradesToFallback(t *testing.T) {
	st := store.New()
	bus := event_bus.NewEventBus()
	manager := connection.NewManagerFromConfig(config.Channel{
		Endpoint:         "ws://127.0.0.1:1/ws",
		MaxRetries:       3,
		RetryDelayMs:     1,
		ConnectTimeoutMs: 100,
	}, bus)
	s := New(st, manager, fallback.NewProvider(), bus, "teacher-1")
	manager.OnMessage(s.HandleRemote)

	state := manager.Connect(context.Background(), "teacher-1")

	require.Equal(t, connection.StateFallback, state)
	events := s.Events()
	assert.True(t, events.UsingFallback)
	assert.NotEmpty(t, events.Events)
	hours := s.OfficeHours()
	assert.True(t, hours.UsingFallback)
	assert.NotEmpty(t, hours.Slots)
}
