package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"taskboard/internal/models"
	"taskboard/internal/policy"
	"taskboard/pkg/logger"
)

// writeWait bounds how long one slow client may hold up the broadcast loop.
const writeWait = 10 * time.Second

// eventQueueSize bounds the pending-event queue; events beyond it are
// dropped rather than blocking the handler that published them.
const eventQueueSize = 256

// Conn is the slice of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Event is pushed to connected clients when a task changes. A client only
// receives events for tasks it could read over HTTP: its own, or all of
// them for an admin.
type Event struct {
	Event string      `json:"event"`
	Task  models.Task `json:"task"`
}

// Client wraps one WebSocket connection and the identity that opened it.
type Client struct {
	Conn  Conn
	Ident policy.Identity
	Mu    sync.Mutex
}

type broadcast struct {
	owner   int
	payload []byte
}

// Hub fans task events out to connected clients.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	broadcasts chan broadcast
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcasts: make(chan broadcast, eventQueueSize),
	}
}

// PublishTask queues a task event for fan-out. It never blocks the calling
// handler: when the queue is full the event is dropped.
func (h *Hub) PublishTask(event string, task models.Task) {
	data, err := json.Marshal(Event{Event: event, Task: task})
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task event", zap.Error(err))
		return
	}
	select {
	case h.broadcasts <- broadcast{owner: task.Owner, payload: data}:
	default:
		logger.ErrorLogger.Error("Task event queue full, dropping event",
			zap.String("event", event), zap.Int("task_id", task.ID))
	}
}

// Run manages register, unregister and broadcast until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Conn.Close()
			}
		case msg := <-h.broadcasts:
			for client := range h.Clients {
				// Events honor the same owner-or-admin rule as task reads.
				if !policy.CanAccess(msg.owner, client.Ident) {
					continue
				}
				client.Mu.Lock()
				_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := client.Conn.WriteMessage(websocket.TextMessage, msg.payload)
				client.Mu.Unlock()
				if err != nil {
					delete(h.Clients, client)
					client.Conn.Close()
				}
			}
		}
	}
}
