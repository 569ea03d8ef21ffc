// Package channel defines the push-channel wire protocol and the websocket
// client used to speak it. Every message is a tagged JSON envelope.
package channel

import (
	"encoding/json"
	"fmt"

	"github.com/lektio/lektio/pkg/schedule"
)

type MessageType string

// Client to server.
const (
	TypeGetEvents        MessageType = "getEvents"
	TypeGetOfficeHours   MessageType = "getOfficeHours"
	TypeCreateEvent      MessageType = "createEvent"
	TypeUpdateEvent      MessageType = "updateEvent"
	TypeDeleteEvent      MessageType = "deleteEvent"
	TypeUpdateOfficeHour MessageType = "updateOfficeHour"
)

// Server to client.
const (
	TypeEventsLoaded      MessageType = "eventsLoaded"
	TypeOfficeHoursLoaded MessageType = "officeHoursLoaded"
	TypeEventCreated      MessageType = "eventCreated"
	TypeEventUpdated      MessageType = "eventUpdated"
	TypeEventDeleted      MessageType = "eventDeleted"
	TypeOfficeHourUpdated MessageType = "officeHourUpdated"
)

// Envelope is the wire frame for every push-channel message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(messageType MessageType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: messageType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", messageType, err)
	}
	return Envelope{Type: messageType, Payload: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// OwnerPayload identifies whose data a load request is for.
type OwnerPayload struct {
	TeacherID string `json:"teacherId"`
}

// EventIDPayload carries a bare event id, used by delete messages.
type EventIDPayload struct {
	ID string `json:"id"`
}

// EventsPayload is the full snapshot sent in eventsLoaded.
type EventsPayload struct {
	Events []schedule.EventDTO `json:"events"`
}

// OfficeHoursPayload is the full snapshot sent in officeHoursLoaded.
type OfficeHoursPayload struct {
	Slots []schedule.OfficeHourSlotDTO `json:"officeHours"`
}
