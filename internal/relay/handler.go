package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lektio/lektio/pkg/channel"
	"github.com/lektio/lektio/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	owner   string
}

func (s *session) send(env channel.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *session) close(reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

// Handler upgrades push-channel connections and serves the message catalog.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		// The relay trusts the upstream proxy for origin policy.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// HandleChannel is the websocket endpoint. The owner id is presented at
// connection time; authorization is enforced upstream.
func (h *Handler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "missing owner", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Push channel upgrade failed: %v", err)
		return
	}

	sess := &session{conn: conn, owner: owner}
	h.hub.register(sess)
	defer func() {
		h.hub.unregister(sess)
		_ = conn.Close()
	}()

	for {
		var env channel.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Debugf("Relay session for teacher %s ended: %v", owner, err)
			return
		}
		h.handle(sess, env)
	}
}

func (h *Handler) handle(sess *session, env channel.Envelope) {
	switch env.Type {
	case channel.TypeGetEvents:
		events := h.hub.eventsFor(sess.owner)
		dtos := make([]schedule.EventDTO, 0, len(events))
		for _, event := range events {
			dtos = append(dtos, schedule.EventToDTO(event))
		}
		h.reply(sess, channel.TypeEventsLoaded, channel.EventsPayload{Events: dtos})

	case channel.TypeGetOfficeHours:
		slots := h.hub.officeHoursFor(sess.owner)
		dtos := make([]schedule.OfficeHourSlotDTO, 0, len(slots))
		for _, slot := range slots {
			dtos = append(dtos, schedule.SlotToDTO(slot))
		}
		h.reply(sess, channel.TypeOfficeHoursLoaded, channel.OfficeHoursPayload{Slots: dtos})

	case channel.TypeCreateEvent, channel.TypeUpdateEvent:
		var dto schedule.EventDTO
		if err := env.Decode(&dto); err != nil {
			h.drop(sess, env, err)
			return
		}
		event, err := schedule.EventFromDTO(dto)
		if err != nil {
			h.drop(sess, env, err)
			return
		}
		stored := h.hub.storeEvent(sess.owner, event)
		outType := channel.TypeEventUpdated
		if env.Type == channel.TypeCreateEvent {
			outType = channel.TypeEventCreated
		}
		h.fanOut(sess, outType, schedule.EventToDTO(stored))

	case channel.TypeDeleteEvent:
		var payload channel.EventIDPayload
		if err := env.Decode(&payload); err != nil {
			h.drop(sess, env, err)
			return
		}
		h.hub.deleteEvent(sess.owner, payload.ID)
		h.fanOut(sess, channel.TypeEventDeleted, payload)

	case channel.TypeUpdateOfficeHour:
		var dto schedule.OfficeHourSlotDTO
		if err := env.Decode(&dto); err != nil {
			h.drop(sess, env, err)
			return
		}
		slot, err := schedule.SlotFromDTO(dto)
		if err != nil {
			h.drop(sess, env, err)
			return
		}
		stored := h.hub.storeOfficeHour(sess.owner, slot)
		h.fanOut(sess, channel.TypeOfficeHourUpdated, schedule.SlotToDTO(stored))

	default:
		log.Warnf("Relay dropping unknown message type %q from teacher %s", env.Type, sess.owner)
	}
}

func (h *Handler) reply(sess *session, messageType channel.MessageType, payload any) {
	env, err := channel.NewEnvelope(messageType, payload)
	if err != nil {
		log.Errorf("Relay failed to encode %s: %v", messageType, err)
		return
	}
	if err := sess.send(env); err != nil {
		log.Warnf("Relay reply to teacher %s failed: %v", sess.owner, err)
	}
}

func (h *Handler) fanOut(sess *session, messageType channel.MessageType, payload any) {
	env, err := channel.NewEnvelope(messageType, payload)
	if err != nil {
		log.Errorf("Relay failed to encode %s: %v", messageType, err)
		return
	}
	h.hub.broadcast(sess.owner, env)
}

func (h *Handler) drop(sess *session, env channel.Envelope, err error) {
	log.Warnf("Relay dropping malformed %s from teacher %s: %v", env.Type, sess.owner, err)
}
