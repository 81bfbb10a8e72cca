package websocket

import (
	"sonata/types"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ProgressMessage is pushed to connected clients on every job change
type ProgressMessage struct {
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	Speed     string    `json:"speed,omitempty"`
	ETA       string    `json:"eta,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts job updates to them
type Hub interface {
	Run()
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	BroadcastJob(job types.Job)
}

type hub struct {
	// clients subscribed per job ID, plus the AllJobs key
	clients map[string]map[*Client]bool

	broadcast  chan ProgressMessage
	register   chan *Client
	unregister chan *Client

	logger *log.Logger
	mu     sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *log.Logger) Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.jobID] == nil {
				h.clients[client.jobID] = make(map[*Client]bool)
			}
			h.clients[client.jobID][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "job", client.jobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.jobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.jobID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "job", client.jobID)

		case message := <-h.broadcast:
			h.mu.RLock()
			h.deliver(h.clients[message.JobID], message)
			h.deliver(h.clients[AllJobs], message)
			h.mu.RUnlock()
		}
	}
}

// deliver sends a message to each client, dropping clients whose send
// buffer is full
func (h *hub) deliver(clients map[*Client]bool, message ProgressMessage) {
	for client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient removes a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// BroadcastJob pushes a job snapshot to the clients watching it. The send
// is non-blocking; updates are dropped when the broadcast buffer is full.
func (h *hub) BroadcastJob(job types.Job) {
	msg := ProgressMessage{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Speed:     job.Speed,
		ETA:       job.ETA,
		Filename:  job.ResultFilename,
		Message:   job.Error,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast buffer full, dropping update", "job", job.ID)
	}
}
