// Package realtime fans new messages out to websocket readers.
//
// Delivery is at-most-once: a reader only sees messages published while it
// is connected, and a reader whose queue is full is disconnected. Readers
// catch up by listing the wall again.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/message"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Send pings with this period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Readers never need to send anything bigger than a close frame
	maxMessageSize = 512

	// Events queued per reader before it counts as slow
	sendBufferSize = 64
)

// EventMessageCreated is the only event type.
const EventMessageCreated = "message.created"

// Event is the frame sent to readers.
type Event struct {
	Type string          `json:"type"`
	Data message.Message `json:"data"`
}

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wall_realtime_subscribers",
		Help: "The number of connected live readers",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_realtime_slow_subscribers_dropped_total",
		Help: "The total number of live readers disconnected for falling behind",
	})
)

type subscriber struct {
	send chan []byte
}

// Hub tracks connected readers and publishes to them.
type Hub struct {
	lock     sync.RWMutex
	subs     map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subs: map[*subscriber]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is public and read-only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribers is the number of connected readers.
func (h *Hub) Subscribers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subs)
}

// Publish sends msg to every connected reader without blocking.
func (h *Hub) Publish(msg message.Message) {
	data, err := json.Marshal(Event{Type: EventMessageCreated, Data: msg})
	if err != nil {
		slog.Error("can't encode realtime event", "err", err, "id", msg.ID)
		return
	}

	var slow []*subscriber

	h.lock.RLock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.lock.RUnlock()

	for _, s := range slow {
		if h.remove(s) {
			eventsDropped.Inc()
		}
	}
}

// Close disconnects every reader and refuses new ones.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
		subscribersGauge.Dec()
	}
}

func (h *Hub) add(s *subscriber) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.closed {
		return false
	}

	h.subs[s] = struct{}{}
	subscribersGauge.Inc()

	return true
}

// remove unregisters s and closes its queue. It reports whether s was still
// registered.
func (h *Hub) remove(s *subscriber) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.subs[s]; !ok {
		return false
	}

	delete(h.subs, s)
	close(s.send)
	subscribersGauge.Dec()

	return true
}

// ServeHTTP upgrades the request to a websocket and streams events to it
// until either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		lg.Debug("can't upgrade live feed connection", "err", err)
		return
	}

	s := &subscriber{send: make(chan []byte, sendBufferSize)}
	if !h.add(s) {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	lg.Debug("live reader connected")

	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump discards anything the reader sends and notices when it leaves.
func (h *Hub) readPump(conn *websocket.Conn, s *subscriber) {
	defer func() {
		h.remove(s)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(s)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(s)
				return
			}
		}
	}
}
