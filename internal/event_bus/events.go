package event_bus

import (
	"time"

	"github.com/lektio/lektio/pkg/schedule"
)

const (
	ScheduleEventsChangedEvent EventType = "schedule.events.changed"
	OfficeHoursChangedEvent    EventType = "schedule.office_hours.changed"
	ConnectionStatusEvent      EventType = "connection.status.changed"
)

// ScheduleEventsChanged carries a full snapshot of the session's calendar
// events after any local or remote mutation.
type ScheduleEventsChanged struct {
	Events        []schedule.CalendarEvent
	UsingFallback bool
}

// OfficeHoursChanged carries a full snapshot of the session's office-hour
// slots after any local or remote mutation.
type OfficeHoursChanged struct {
	Slots         []schedule.OfficeHourSlot
	UsingFallback bool
}

// ConnectionStatusChanged mirrors connection.Status with plain fields so this
// package does not depend on pkg/connection (which publishes to the bus).
type ConnectionStatusChanged struct {
	State   string
	Attempt int
	At      time.Time
}
