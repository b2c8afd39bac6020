// Package live pushes player state to browsers over WebSocket.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashureev/pick27/internal/game"
)

const sendQueueSize = 8

// Event is one pushed message.
type Event struct {
	Type  string     `json:"type"`
	State game.State `json:"state"`
}

// client is one connected tab.
type client struct {
	send chan []byte
}

func newClient() *client {
	return &client{send: make(chan []byte, sendQueueSize)}
}

// enqueue queues msg, dropping the oldest queued message when the tab is
// too slow. Every message carries the full state so only the newest matters.
func (c *client) enqueue(msg []byte) {
	for {
		select {
		case c.send <- msg:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// Manager tracks the open connections of every user and tab.
type Manager struct {
	mu     sync.RWMutex
	active map[string]map[string]*client
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]map[string]*client)}
}

// register adds a tab, replacing an older connection with the same session.
func (m *Manager) register(userID, sessionID string, c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[userID]; !ok {
		m.active[userID] = make(map[string]*client)
	}
	if existing, ok := m.active[userID][sessionID]; ok && existing != c {
		close(existing.send)
	}
	m.active[userID][sessionID] = c
	slog.Info("Live session registered", "user_id", userID, "session_id", sessionID)
}

// unregister removes c if it is still the tab's current connection.
func (m *Manager) unregister(userID, sessionID string, c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	if current, exists := sessions[sessionID]; exists && current == c {
		delete(sessions, sessionID)
		close(c.send)
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
		slog.Info("Live session unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// Connections returns how many tabs userID has open.
func (m *Manager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// Publish sends state to every tab of userID. It matches game.Listener.
func (m *Manager) Publish(userID string, state game.State) {
	data, err := json.Marshal(Event{Type: "state", State: state})
	if err != nil {
		slog.Error("failed to encode live event", "user_id", userID, "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.active[userID] {
		c.enqueue(data)
	}
}
