// Package realtime pushes slot-change notifications to websocket clients.
// Clients subscribe to topics; the outbox deliverer publishes into the hub.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

// EventSlotsChanged tells subscribers to refetch the slot grid.
const EventSlotsChanged = "slots.changed"

// Event is one notification sent to clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Cause     string          `json:"cause"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound subscribe or unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// PractitionerTopic receives every change for a practitioner.
func PractitionerTopic(practitionerID uuid.UUID) string {
	return "practitioner:" + practitionerID.String()
}

// DayTopic receives changes to one practitioner's slot grid for one day.
func DayTopic(practitionerID uuid.UUID, d scheduling.Date) string {
	return PractitionerTopic(practitionerID) + ":" + d.String()
}

// Client is one websocket connection. Send is closed by Unregister.
type Client struct {
	ID     string
	Send   chan []byte
	topics map[string]struct{}
}

func NewClient(buffer int) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Send:   make(chan []byte, buffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister drops every subscription of client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for topic := range client.topics {
		h.removeLocked(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
		client.topics[topic] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		h.removeLocked(client, topic)
	}
}

func (h *Hub) removeLocked(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
	delete(client.topics, topic)
}

// ProcessMessage dispatches a client request; unknown actions are ignored.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends event to the subscribers of its topic and returns how many
// received it. Clients with a full buffer are skipped.
func (h *Hub) Broadcast(event Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal realtime event", "topic", event.Topic, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
			sent++
		default:
			h.logger.Warn("realtime client buffer full", "client_id", client.ID, "topic", event.Topic)
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
