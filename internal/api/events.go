package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/whisper-remote/internal/live"
)

// LiveFeed is satisfied by *live.EventBus.
type LiveFeed interface {
	Subscribe(filter live.Filter) (<-chan live.Event, func())
	ReplaySince(lastEventID string, filter live.Filter) []live.Event
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	live LiveFeed
}

func NewEventsHandler(feed LiveFeed) *EventsHandler {
	return &EventsHandler{live: feed}
}

func parseFilter(r *http.Request) live.Filter {
	return live.Filter{
		Types: QueryStringList(r, "types"),
		Jobs:  QueryStringList(r, "jobs"),
	}
}

// StreamEvents opens an SSE connection and pushes filtered events.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := parseFilter(r)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := h.live.Subscribe(filter)
	defer cancel()

	// Replay missed events if Last-Event-ID is provided
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		for _, e := range h.live.ReplaySince(lastEventID, filter) {
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// StreamWebSocket pushes the same filtered events as JSON text frames.
func (h *EventsHandler) StreamWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	log := hlog.FromRequest(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := h.live.Subscribe(parseFilter(r))
	defer cancel()

	// Reader: drains control frames and notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	log.Info().Msg("websocket client connected")
	for {
		select {
		case <-closed:
			log.Info().Msg("websocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// Routes registers event routes on the given router.
func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/events/stream", h.StreamEvents)
	r.Get("/events/ws", h.StreamWebSocket)
}
