// Package presence tracks which users currently hold a live connection.
package presence

import (
	"sort"
	"sync"
)

// Registry maps a user to at most one live connection id. The most recent
// connection wins; a reconnect overwrites the previous entry.
type Registry interface {
	Connect(userID, connID string) []string
	Disconnect(userID, connID string) bool
	Lookup(userID string) (string, bool)
	ListOnline() []string
}

// Map is the in-memory Registry. Every operation is atomic to concurrent callers.
type Map struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMap creates an empty registry.
func NewMap() *Map {
	return &Map{entries: make(map[string]string)}
}

// Connect records connID as the live connection of userID and returns the
// online set as observed right after the write.
func (m *Map) Connect(userID, connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = connID
	return m.online()
}

// Disconnect clears the entry for userID only while it still points at connID.
// A disconnect from a connection that was already superseded is a no-op.
func (m *Map) Disconnect(userID, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entries[userID]
	if !ok || current != connID {
		return false
	}
	delete(m.entries, userID)
	return true
}

// Lookup returns the live connection of userID.
func (m *Map) Lookup(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	connID, ok := m.entries[userID]
	return connID, ok
}

// ListOnline returns the online user ids, sorted.
func (m *Map) ListOnline() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online()
}

func (m *Map) online() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
