// Package fallback supplies deterministic canned schedule data for sessions
// whose push channel was deemed unrecoverable. Staleness is the accepted
// trade-off; callers see it through the usingFallback flag on every response.
package fallback

import (
	"time"

	"github.com/lektio/lektio/pkg/schedule"
)

// baseDay is a fixed Monday so the canned data never shifts between calls.
var baseDay = time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)

type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func at(dayOffset, hour, minute int) time.Time {
	return baseDay.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Events returns the fixed offline calendar, stamped with the requesting
// teacher so the shape matches live data.
func (p *Provider) Events(teacherID string) []schedule.CalendarEvent {
	return []schedule.CalendarEvent{
		{
			ID:        "fallback-event-1",
			Title:     "Algebra II",
			Category:  schedule.CategoryClass,
			StartTime: at(0, 9, 0),
			EndTime:   at(0, 10, 30),
			Location:  "Room 101",
			Attendees: 28,
			Status:    schedule.StatusScheduled,
			TeacherID: teacherID,
		},
		{
			ID:        "fallback-event-2",
			Title:     "Office Hours",
			Category:  schedule.CategoryOfficeHours,
			StartTime: at(0, 14, 0),
			EndTime:   at(0, 15, 0),
			Location:  "Office 12",
			Status:    schedule.StatusScheduled,
			TeacherID: teacherID,
		},
		{
			ID:          "fallback-event-3",
			Title:       "Department Meeting",
			Category:    schedule.CategoryMeeting,
			StartTime:   at(1, 12, 0),
			EndTime:     at(1, 13, 0),
			Location:    "Conference Room B",
			Description: "Weekly curriculum sync",
			Status:      schedule.StatusScheduled,
			TeacherID:   teacherID,
		},
		{
			ID:        "fallback-event-4",
			Title:     "Midterm Exam",
			Category:  schedule.CategoryExam,
			StartTime: at(3, 9, 0),
			EndTime:   at(3, 11, 0),
			Location:  "Hall A",
			Attendees: 54,
			Status:    schedule.StatusScheduled,
			TeacherID: teacherID,
		},
	}
}

// OfficeHours returns the fixed offline office-hour slots.
func (p *Provider) OfficeHours(teacherID string) []schedule.OfficeHourSlot {
	return []schedule.OfficeHourSlot{
		{
			ID:          "fallback-slot-1",
			Day:         time.Monday,
			StartTime:   "14:00",
			EndTime:     "15:00",
			IsRecurring: true,
			Location:    "Office 12",
			MaxStudents: 5,
			BookedCount: 2,
			TeacherID:   teacherID,
		},
		{
			ID:          "fallback-slot-2",
			Day:         time.Wednesday,
			StartTime:   "10:00",
			EndTime:     "12:00",
			IsRecurring: true,
			Location:    "Office 12",
			MaxStudents: 8,
			BookedCount: 0,
			TeacherID:   teacherID,
		},
	}
}
