package schedule

import (
	"fmt"
	"strings"
	"time"
)

type EventDTO struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Attendees   int    `json:"attendees,omitempty"`
	Status      string `json:"status"`
	TeacherID   string `json:"teacherId"`
}

type OfficeHourSlotDTO struct {
	ID          string `json:"id,omitempty"`
	DayOfWeek   string `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsRecurring bool   `json:"isRecurring"`
	Location    string `json:"location"`
	MaxStudents int    `json:"maxStudents"`
	BookedCount int    `json:"bookedCount"`
	TeacherID   string `json:"teacherId"`
}

func EventToDTO(e CalendarEvent) EventDTO {
	return EventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Category:    string(e.Category),
		StartTime:   e.StartTime.Format(time.RFC3339),
		EndTime:     e.EndTime.Format(time.RFC3339),
		Location:    e.Location,
		Description: e.Description,
		Attendees:   e.Attendees,
		Status:      string(e.Status),
		TeacherID:   e.TeacherID,
	}
}

func EventFromDTO(dto EventDTO) (CalendarEvent, error) {
	startTime, err := time.Parse(time.RFC3339, dto.StartTime)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("invalid startTime: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339, dto.EndTime)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("invalid endTime: %w", err)
	}
	if !endTime.After(startTime) {
		return CalendarEvent{}, fmt.Errorf("endTime %s is not after startTime %s", dto.EndTime, dto.StartTime)
	}
	return CalendarEvent{
		ID:          dto.ID,
		Title:       dto.Title,
		Category:    EventCategory(dto.Category),
		StartTime:   startTime,
		EndTime:     endTime,
		Location:    dto.Location,
		Description: dto.Description,
		Attendees:   dto.Attendees,
		Status:      EventStatus(dto.Status),
		TeacherID:   dto.TeacherID,
	}, nil
}

func SlotToDTO(s OfficeHourSlot) OfficeHourSlotDTO {
	return OfficeHourSlotDTO{
		ID:          s.ID,
		DayOfWeek:   strings.ToLower(s.Day.String()),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		IsRecurring: s.IsRecurring,
		Location:    s.Location,
		MaxStudents: s.MaxStudents,
		BookedCount: s.BookedCount,
		TeacherID:   s.TeacherID,
	}
}

func SlotFromDTO(dto OfficeHourSlotDTO) (OfficeHourSlot, error) {
	day, err := parseWeekday(dto.DayOfWeek)
	if err != nil {
		return OfficeHourSlot{}, err
	}
	if _, err := MinutesOfDay(dto.StartTime); err != nil {
		return OfficeHourSlot{}, err
	}
	if _, err := MinutesOfDay(dto.EndTime); err != nil {
		return OfficeHourSlot{}, err
	}
	return OfficeHourSlot{
		ID:          dto.ID,
		Day:         day,
		StartTime:   dto.StartTime,
		EndTime:     dto.EndTime,
		IsRecurring: dto.IsRecurring,
		Location:    dto.Location,
		MaxStudents: dto.MaxStudents,
		BookedCount: dto.BookedCount,
		TeacherID:   dto.TeacherID,
	}, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(name)]
	if !ok {
		return time.Sunday, fmt.Errorf("invalid day of week %q", name)
	}
	return day, nil
}
