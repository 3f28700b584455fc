package sink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bazelment/yoloswe/acprelay/coalesce"
	"github.com/bazelment/yoloswe/acprelay/projection"
)

// Hub event types.
const (
	EventText    = "text"
	EventMessage = "message"
	EventEdit    = "edit"
	EventAbort   = "abort"
)

// ErrHubClosed is returned by sends after Close.
var ErrHubClosed = errors.New("hub closed")

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

// Event is one JSON frame exchanged with websocket clients.
type Event struct {
	Time    time.Time `json:"ts"`
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Session string    `json:"session,omitempty"`
	Content string    `json:"content,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// InboundFunc handles an event sent by a client, such as an abort.
type InboundFunc func(ctx context.Context, ev Event)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts projected output to every connected websocket client and
// forwards client events to an InboundFunc. Messages carry uuid ids so
// clients can apply edits in place.
type Hub struct {
	clients  map[*hubClient]struct{}
	logger   *slog.Logger
	inbound  InboundFunc
	upgrader websocket.Upgrader
	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
}

// NewHub returns an empty hub. inbound may be nil.
func NewHub(logger *slog.Logger, inbound InboundFunc) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		logger:  logger,
		inbound: inbound,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) readLoop(ctx context.Context, c *hubClient) {
	defer h.drop(c)
	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "err", err)
			}
			return
		}
		if h.inbound != nil {
			h.inbound(ctx, ev)
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	defer h.wg.Done()
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", "err", err)
			go h.drop(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// drop unregisters c and ends its write loop.
func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) error {
	ev.Time = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("websocket client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
	return nil
}

// Send implements projection.Sender.
func (h *Hub) Send(_ context.Context, dest projection.Destination, content string) (projection.Handle, error) {
	id := uuid.NewString()
	if err := h.broadcast(Event{Type: EventMessage, ID: id, Session: dest.Target, Content: content}); err != nil {
		return projection.Handle{}, err
	}
	return projection.Handle{Destination: dest, MessageID: id}, nil
}

// Edit implements projection.Sender.
func (h *Hub) Edit(_ context.Context, handle projection.Handle, content string) error {
	return h.broadcast(Event{Type: EventEdit, ID: handle.MessageID, Session: handle.Target, Content: content})
}

// CanEdit implements projection.Sender.
func (h *Hub) CanEdit(projection.Destination) bool { return true }

// TextSink returns a segment sink that broadcasts assistant text for session.
func (h *Hub) TextSink(session string) coalesce.SegmentSink {
	return coalesce.SinkFunc(func(_ context.Context, segment string) error {
		return h.broadcast(Event{Type: EventText, Session: session, Content: segment})
	})
}

// Close disconnects every client and waits for their write loops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
