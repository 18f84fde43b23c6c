// Package events allows for the registering and receiving of events.
package events

import (
	"sync"
)

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	clients map[string]chan string
	mu      sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		clients: make(map[string]chan string),
	}
}

// Shutdown closes and removes all the channels being used by clients.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, channel := range evt.clients {
		delete(evt.clients, id)
		close(channel)
	}
}

// Acquire takes ownership of the specified unique id and returns a
// channel for receiving events.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if channel, exists := evt.clients[id]; exists {
		return channel
	}

	evt.clients[id] = make(chan string, 100)
	return evt.clients[id]
}

// Release releases the unique id and the associated channel.
func (evt *Events) Release(id string) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	channel, exists := evt.clients[id]
	if !exists {
		return
	}

	delete(evt.clients, id)
	close(channel)
}

// Send signals the event to all registered clients. If a client's
// channel is full, the event is dropped for that client.
func (evt *Events) Send(event string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, channel := range evt.clients {
		select {
		case channel <- event:
		default:
		}
	}
}
