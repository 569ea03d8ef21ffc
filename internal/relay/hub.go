// Package relay is the in-memory reference implementation of the push-channel
// server. It keeps per-teacher schedule state for the lifetime of the process
// and rebroadcasts every mutation to all of that teacher's sessions. It is
// not a persistence layer.
package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lektio/lektio/pkg/channel"
	"github.com/lektio/lektio/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type Hub struct {
	mu       sync.Mutex
	events   map[string]map[string]schedule.CalendarEvent
	slots    map[string]map[string]schedule.OfficeHourSlot
	sessions map[string]map[*session]struct{}
}

func NewHub() *Hub {
	return &Hub{
		events:   make(map[string]map[string]schedule.CalendarEvent),
		slots:    make(map[string]map[string]schedule.OfficeHourSlot),
		sessions: make(map[string]map[*session]struct{}),
	}
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sess.owner] == nil {
		h.sessions[sess.owner] = make(map[*session]struct{})
	}
	h.sessions[sess.owner][sess] = struct{}{}
	log.Debugf("Relay session registered for teacher %s (%d active)", sess.owner, len(h.sessions[sess.owner]))
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions := h.sessions[sess.owner]; sessions != nil {
		delete(sessions, sess)
		if len(sessions) == 0 {
			delete(h.sessions, sess.owner)
		}
	}
}

// broadcast fans an envelope out to every session of the given teacher,
// including the originator: the echo is idempotent on the client and carries
// the authoritative copy.
func (h *Hub) broadcast(owner string, env channel.Envelope) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions[owner]))
	for sess := range h.sessions[owner] {
		targets = append(targets, sess)
	}
	h.mu.Unlock()

	for _, sess := range targets {
		if err := sess.send(env); err != nil {
			log.Warnf("Relay broadcast to teacher %s failed: %v", owner, err)
		}
	}
}

func (h *Hub) eventsFor(owner string) []schedule.CalendarEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]schedule.CalendarEvent, 0, len(h.events[owner]))
	for _, event := range h.events[owner] {
		events = append(events, event)
	}
	return events
}

func (h *Hub) officeHoursFor(owner string) []schedule.OfficeHourSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	slots := make([]schedule.OfficeHourSlot, 0, len(h.slots[owner]))
	for _, slot := range h.slots[owner] {
		slots = append(slots, slot)
	}
	return slots
}

// storeEvent keeps the client-supplied id when present so optimistic local
// copies and the authoritative echo share an identity.
func (h *Hub) storeEvent(owner string, event schedule.CalendarEvent) schedule.CalendarEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.events[owner] == nil {
		h.events[owner] = make(map[string]schedule.CalendarEvent)
	}
	h.events[owner][event.ID] = event
	return event
}

func (h *Hub) deleteEvent(owner, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.events[owner], id)
}

// storeOfficeHour clamps the booking count into [0, MaxStudents]; the relay's
// copy of the count is the authoritative one.
func (h *Hub) storeOfficeHour(owner string, slot schedule.OfficeHourSlot) schedule.OfficeHourSlot {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.BookedCount < 0 {
		slot.BookedCount = 0
	}
	if slot.BookedCount > slot.MaxStudents {
		slot.BookedCount = slot.MaxStudents
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.slots[owner] == nil {
		h.slots[owner] = make(map[string]schedule.OfficeHourSlot)
	}
	h.slots[owner][slot.ID] = slot
	return slot
}

// Shutdown closes every session with the given reason. Clients treat the
// "server restart" reason as an invitation to reconnect immediately.
func (h *Hub) Shutdown(reason string) {
	h.mu.Lock()
	var targets []*session
	for _, sessions := range h.sessions {
		for sess := range sessions {
			targets = append(targets, sess)
		}
	}
	h.sessions = make(map[string]map[*session]struct{})
	h.mu.Unlock()

	for _, sess := range targets {
		sess.close(reason)
	}
}
