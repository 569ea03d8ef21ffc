// Package store holds the client-side authoritative cache of calendar events
// and office-hour slots for a single session. The last write for a given id
// replaces the previous value entirely, which is what makes remote
// reconciliation convergent regardless of message arrival order.
package store

import (
	"sync"

	"github.com/lektio/lektio/pkg/schedule"
)

type Store struct {
	mu     sync.RWMutex
	events map[string]schedule.CalendarEvent
	slots  map[string]schedule.OfficeHourSlot
}

func New() *Store {
	return &Store{
		events: make(map[string]schedule.CalendarEvent),
		slots:  make(map[string]schedule.OfficeHourSlot),
	}
}

func (s *Store) UpsertEvent(event schedule.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

// RemoveEvent deletes the event with the given id. Removing an unknown id is
// not an error; the store converges to "absent" either way.
func (s *Store) RemoveEvent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.events[id]
	delete(s.events, id)
	return found
}

func (s *Store) Event(id string) (schedule.CalendarEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	return event, ok
}

func (s *Store) Events() []schedule.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]schedule.CalendarEvent, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	return events
}

// ReplaceEvents swaps the whole event set for a freshly loaded snapshot.
func (s *Store) ReplaceEvents(events []schedule.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]schedule.CalendarEvent, len(events))
	for _, event := range events {
		s.events[event.ID] = event
	}
}

func (s *Store) UpsertOfficeHour(slot schedule.OfficeHourSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
}

func (s *Store) RemoveOfficeHour(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.slots[id]
	delete(s.slots, id)
	return found
}

func (s *Store) OfficeHour(id string) (schedule.OfficeHourSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[id]
	return slot, ok
}

func (s *Store) OfficeHours() []schedule.OfficeHourSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots := make([]schedule.OfficeHourSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, slot)
	}
	return slots
}

func (s *Store) ReplaceOfficeHours(slots []schedule.OfficeHourSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[string]schedule.OfficeHourSlot, len(slots))
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
}
