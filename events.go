package docstore

import (
	"sync"
)

// EventType names a change of the stored data.
type EventType string

const (
	DocumentCreated EventType = "document.created"
	DocumentUpdated EventType = "document.updated"
	DocumentDeleted EventType = "document.deleted"
	DatabaseCreated EventType = "database.created"
	DatabaseDeleted EventType = "database.deleted"
)

// Event is emitted once a change has been applied and persisted.
type Event struct {
	Type     EventType
	Database string
	// Document is empty for database events.
	Document string
}

// EventHandler receives events synchronously, on the goroutine serving the
// request, while the database lock is held.
type EventHandler func(Event)

type emitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func (e *emitter) on(h EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
