package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type EventCategory string

const (
	CategoryClass       EventCategory = "class"
	CategoryOfficeHours EventCategory = "office_hours"
	CategoryMeeting     EventCategory = "meeting"
	CategoryExam        EventCategory = "exam"
)

type EventStatus string

const (
	StatusScheduled  EventStatus = "scheduled"
	StatusInProgress EventStatus = "in_progress"
	StatusCompleted  EventStatus = "completed"
	StatusCancelled  EventStatus = "cancelled"
)

// CalendarEvent is a single entry on a teacher's calendar. An empty ID means
// the event has not been assigned an identity by the server yet.
type CalendarEvent struct {
	ID          string
	Title       string
	Category    EventCategory
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	Description string
	Attendees   int
	Status      EventStatus
	TeacherID   string
}

// Duration returns the length of the event. It is preserved across
// reschedules: moving an event shifts both bounds by the same amount.
func (e CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Rescheduled returns a copy of the event starting at newStart with the
// original duration.
func (e CalendarEvent) Rescheduled(newStart time.Time) CalendarEvent {
	d := e.Duration()
	e.StartTime = newStart
	e.EndTime = newStart.Add(d)
	return e
}

// OfficeHourSlot is a weekly office-hours window on a school day.
// StartTime and EndTime are times of day in "HH:MM" form, not absolute
// instants; Day carries the weekly recurrence when IsRecurring is set.
type OfficeHourSlot struct {
	ID          string
	Day         time.Weekday
	StartTime   string
	EndTime     string
	IsRecurring bool
	Location    string
	MaxStudents int
	BookedCount int
	TeacherID   string
}

// MinutesOfDay parses an "HH:MM" time of day into minutes since midnight.
func MinutesOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hours*60 + minutes, nil
}

// schoolDayIndex orders weekdays Monday-first so Monday slots sort before
// Sunday ones regardless of time.Weekday's Sunday=0 numbering.
func schoolDayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// SortSlots orders office hours by day of week (Monday first), then by start
// time of day. The sort is stable, so slots with equal day and start keep
// their relative order.
func SortSlots(slots []OfficeHourSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		di, dj := schoolDayIndex(slots[i].Day), schoolDayIndex(slots[j].Day)
		if di != dj {
			return di < dj
		}
		si, _ := MinutesOfDay(slots[i].StartTime)
		sj, _ := MinutesOfDay(slots[j].StartTime)
		return si < sj
	})
}
