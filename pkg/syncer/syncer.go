// Package syncer is the session's sync protocol handler. Local intents are
// applied to the store optimistically and then emitted to the server when the
// channel is up; inbound remote messages are applied unconditionally. The one
// reconciliation rule lives here: remote state always wins, because the local
// copy was only ever a prediction.
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lektio/lektio/internal/event_bus"
	"github.com/lektio/lektio/pkg/channel"
	"github.com/lektio/lektio/pkg/connection"
	"github.com/lektio/lektio/pkg/fallback"
	"github.com/lektio/lektio/pkg/schedule"
	"github.com/lektio/lektio/pkg/store"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrEventNotFound reports an intent referencing an unknown id. It is a
	// reported condition for the caller, not a system failure.
	ErrEventNotFound = errors.New("event not found")

	ErrInvalidEventTimes = errors.New("event end time must be after start time")
)

// Connection is the slice of the connection manager the syncer needs.
type Connection interface {
	Send(env channel.Envelope) error
	Connected() bool
	UsingFallback() bool
}

type EventsSnapshot struct {
	Events        []schedule.CalendarEvent `json:"events"`
	UsingFallback bool                     `json:"usingFallback"`
}

type OfficeHoursSnapshot struct {
	Slots         []schedule.OfficeHourSlot `json:"officeHours"`
	UsingFallback bool                      `json:"usingFallback"`
}

type Syncer struct {
	store     *store.Store
	conn      Connection
	fallback  *fallback.Provider
	bus       *event_bus.EventBus
	teacherID string
}

func New(st *store.Store, conn Connection, fb *fallback.Provider, bus *event_bus.EventBus, teacherID string) *Syncer {
	return &Syncer{
		store:     st,
		conn:      conn,
		fallback:  fb,
		bus:       bus,
		teacherID: teacherID,
	}
}

// Refresh asks the server for full event and office-hour snapshots. In
// fallback mode there is nothing to ask; the canned data is already served.
func (s *Syncer) Refresh(ctx context.Context) {
	payload := channel.OwnerPayload{TeacherID: s.teacherID}
	s.emit(ctx, channel.TypeGetEvents, payload)
	s.emit(ctx, channel.TypeGetOfficeHours, payload)
}

// CreateEvent applies the new event locally and emits it to the server. An
// empty id gets a provisional one; the server's eventCreated echo replaces it.
func (s *Syncer) CreateEvent(ctx context.Context, event schedule.CalendarEvent) (schedule.CalendarEvent, error) {
	if !event.EndTime.After(event.StartTime) {
		return schedule.CalendarEvent{}, ErrInvalidEventTimes
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.TeacherID == "" {
		event.TeacherID = s.teacherID
	}
	if event.Status == "" {
		event.Status = schedule.StatusScheduled
	}

	s.store.UpsertEvent(event)
	s.notifyEvents(ctx)
	s.emit(ctx, channel.TypeCreateEvent, schedule.EventToDTO(event))
	return event, nil
}

// UpdateEvent applies the changed event locally and emits it to the server.
func (s *Syncer) UpdateEvent(ctx context.Context, event schedule.CalendarEvent) (schedule.CalendarEvent, error) {
	if event.ID == "" {
		return schedule.CalendarEvent{}, ErrEventNotFound
	}
	if !event.EndTime.After(event.StartTime) {
		return schedule.CalendarEvent{}, ErrInvalidEventTimes
	}
	if event.TeacherID == "" {
		event.TeacherID = s.teacherID
	}

	s.store.UpsertEvent(event)
	s.notifyEvents(ctx)
	s.emit(ctx, channel.TypeUpdateEvent, schedule.EventToDTO(event))
	return event, nil
}

// DeleteEvent removes the event locally first, then tells the server. Deletes
// are unconditional, so the store converges to "absent" whatever order
// pending updates for the same id arrive in.
func (s *Syncer) DeleteEvent(ctx context.Context, id string) error {
	s.store.RemoveEvent(id)
	s.notifyEvents(ctx)
	s.emit(ctx, channel.TypeDeleteEvent, channel.EventIDPayload{ID: id})
	return nil
}

// RescheduleEvent moves the event to newStart, deriving the new end from the
// preserved duration. An unknown id is a no-op reported as ErrEventNotFound.
func (s *Syncer) RescheduleEvent(ctx context.Context, id string, newStart time.Time) (schedule.CalendarEvent, error) {
	event, ok := s.store.Event(id)
	if !ok {
		log.Infof("Reschedule for unknown event %s ignored", id)
		return schedule.CalendarEvent{}, ErrEventNotFound
	}
	return s.UpdateEvent(ctx, event.Rescheduled(newStart))
}

// SaveOfficeHour validates the slot and, when valid, applies it locally and
// emits it to the server. Field errors come back as data; nothing is mutated
// when any rule fails. BookedCount is never taken from the caller for an
// existing slot: booking counts change only through authoritative remote
// updates.
func (s *Syncer) SaveOfficeHour(ctx context.Context, slot schedule.OfficeHourSlot) (schedule.OfficeHourSlot, []schedule.FieldError, error) {
	if fieldErrors := schedule.ValidateSlot(slot); len(fieldErrors) > 0 {
		return slot, fieldErrors, nil
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.TeacherID == "" {
		slot.TeacherID = s.teacherID
	}
	if existing, ok := s.store.OfficeHour(slot.ID); ok {
		slot.BookedCount = existing.BookedCount
	}

	s.store.UpsertOfficeHour(slot)
	s.notifyOfficeHours(ctx)
	s.emit(ctx, channel.TypeUpdateOfficeHour, schedule.SlotToDTO(slot))
	return slot, nil, nil
}

// DeleteOfficeHour removes the slot from the local cache. The wire catalog
// has no office-hour delete message, so the server copy is untouched.
func (s *Syncer) DeleteOfficeHour(ctx context.Context, id string) error {
	if removed := s.store.RemoveOfficeHour(id); !removed {
		log.Debugf("Office-hour slot %s was not cached, nothing to remove", id)
	}
	s.notifyOfficeHours(ctx)
	return nil
}

// Events returns the current event snapshot. In fallback mode the canned
// collection is served instead, flagged so callers can render the degraded
// indicator.
func (s *Syncer) Events() EventsSnapshot {
	if s.conn.UsingFallback() {
		return EventsSnapshot{Events: s.fallback.Events(s.teacherID), UsingFallback: true}
	}
	return EventsSnapshot{Events: s.store.Events()}
}

// OfficeHours returns the current office-hour snapshot, canned when degraded.
func (s *Syncer) OfficeHours() OfficeHoursSnapshot {
	if s.conn.UsingFallback() {
		return OfficeHoursSnapshot{Slots: s.fallback.OfficeHours(s.teacherID), UsingFallback: true}
	}
	return OfficeHoursSnapshot{Slots: s.store.OfficeHours()}
}

// HandleRemote applies one inbound push-channel message. Remote state always
// supersedes local optimistic state for the same id. Malformed payloads are
// logged and dropped so they can never corrupt the store.
func (s *Syncer) HandleRemote(env channel.Envelope) {
	ctx := context.Background()

	switch env.Type {
	case channel.TypeEventsLoaded:
		var payload channel.EventsPayload
		if err := env.Decode(&payload); err != nil {
			s.drop(env, err)
			return
		}
		events := make([]schedule.CalendarEvent, 0, len(payload.Events))
		for _, dto := range payload.Events {
			event, err := schedule.EventFromDTO(dto)
			if err != nil {
				s.drop(env, err)
				return
			}
			events = append(events, event)
		}
		s.store.ReplaceEvents(events)
		s.notifyEvents(ctx)

	case channel.TypeOfficeHoursLoaded:
		var payload channel.OfficeHoursPayload
		if err := env.Decode(&payload); err != nil {
			s.drop(env, err)
			return
		}
		slots := make([]schedule.OfficeHourSlot, 0, len(payload.Slots))
		for _, dto := range payload.Slots {
			slot, err := schedule.SlotFromDTO(dto)
			if err != nil {
				s.drop(env, err)
				return
			}
			slots = append(slots, slot)
		}
		s.store.ReplaceOfficeHours(slots)
		s.notifyOfficeHours(ctx)

	case channel.TypeEventCreated, channel.TypeEventUpdated:
		var dto schedule.EventDTO
		if err := env.Decode(&dto); err != nil {
			s.drop(env, err)
			return
		}
		event, err := schedule.EventFromDTO(dto)
		if err != nil {
			s.drop(env, err)
			return
		}
		s.store.UpsertEvent(event)
		s.notifyEvents(ctx)

	case channel.TypeEventDeleted:
		var payload channel.EventIDPayload
		if err := env.Decode(&payload); err != nil {
			s.drop(env, err)
			return
		}
		s.store.RemoveEvent(payload.ID)
		s.notifyEvents(ctx)

	case channel.TypeOfficeHourUpdated:
		var dto schedule.OfficeHourSlotDTO
		if err := env.Decode(&dto); err != nil {
			s.drop(env, err)
			return
		}
		slot, err := schedule.SlotFromDTO(dto)
		if err != nil {
			s.drop(env, err)
			return
		}
		s.store.UpsertOfficeHour(slot)
		s.notifyOfficeHours(ctx)

	default:
		log.Warnf("Dropping unknown push message type %q", env.Type)
	}
}

// SubscribeEvents registers a handler for event snapshot changes and returns
// its unsubscribe function.
func (s *Syncer) SubscribeEvents(h func(events []schedule.CalendarEvent, usingFallback bool)) func() {
	return event_bus.SubscribeTyped[event_bus.ScheduleEventsChanged](s.bus, event_bus.ScheduleEventsChangedEvent,
		func(e event_bus.EventT[event_bus.ScheduleEventsChanged]) error {
			h(e.Data.Events, e.Data.UsingFallback)
			return nil
		})
}

// SubscribeOfficeHours registers a handler for office-hour snapshot changes.
func (s *Syncer) SubscribeOfficeHours(h func(slots []schedule.OfficeHourSlot, usingFallback bool)) func() {
	return event_bus.SubscribeTyped[event_bus.OfficeHoursChanged](s.bus, event_bus.OfficeHoursChangedEvent,
		func(e event_bus.EventT[event_bus.OfficeHoursChanged]) error {
			h(e.Data.Slots, e.Data.UsingFallback)
			return nil
		})
}

// SubscribeStatus registers a handler for connection state transitions.
func (s *Syncer) SubscribeStatus(h func(status connection.Status)) func() {
	return event_bus.SubscribeTyped[event_bus.ConnectionStatusChanged](s.bus, event_bus.ConnectionStatusEvent,
		func(e event_bus.EventT[event_bus.ConnectionStatusChanged]) error {
			h(connection.Status{
				State:   connection.State(e.Data.State),
				Attempt: e.Data.Attempt,
				At:      e.Data.At,
			})
			return nil
		})
}

// emit sends an outbound message when connected. Offline or degraded sessions
// keep their local result; the skipped emit is only logged so the caller is
// never blocked on connectivity.
func (s *Syncer) emit(ctx context.Context, messageType channel.MessageType, payload any) {
	if !s.conn.Connected() {
		log.Debugf("Not connected, %s not sent to server", messageType)
		return
	}
	env, err := channel.NewEnvelope(messageType, payload)
	if err != nil {
		log.Errorf("Failed to encode outbound %s: %v", messageType, err)
		return
	}
	if err := s.conn.Send(env); err != nil {
		log.Warnf("Failed to send %s: %v", messageType, err)
	}
}

func (s *Syncer) drop(env channel.Envelope, err error) {
	log.Warnf("Dropping malformed %s message: %v", env.Type, err)
}

func (s *Syncer) notifyEvents(ctx context.Context) {
	snapshot := s.Events()
	_ = s.bus.Publish(event_bus.NewEvent(ctx, event_bus.ScheduleEventsChangedEvent,
		event_bus.ScheduleEventsChanged{Events: snapshot.Events, UsingFallback: snapshot.UsingFallback}))
}

func (s *Syncer) notifyOfficeHours(ctx context.Context) {
	snapshot := s.OfficeHours()
	_ = s.bus.Publish(event_bus.NewEvent(ctx, event_bus.OfficeHoursChangedEvent,
		event_bus.OfficeHoursChanged{Slots: snapshot.Slots, UsingFallback: snapshot.UsingFallback}))
}
