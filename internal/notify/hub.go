package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned when publishing on a closed endpoint.
var ErrClosed = errors.New("notify: endpoint closed")

// endpointBuffer bounds how many announcements may queue for one endpoint.
const endpointBuffer = 64

// Hub is an in-process broadcast channel. Every Endpoint opened on it receives
// the messages published by the others, never its own.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[*Endpoint]struct{}
	logger    *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		endpoints: make(map[*Endpoint]struct{}),
		logger:    logger,
	}
}

// Open attaches a new endpoint.
func (h *Hub) Open() *Endpoint {
	e := &Endpoint{
		hub:       h,
		id:        uuid.NewString(),
		inbox:     make(chan Message, endpointBuffer),
		listeners: make(map[uint64]func(Message)),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	h.endpoints[e] = struct{}{}
	h.mu.Unlock()
	go e.loop()
	return e
}

func (h *Hub) publish(from *Endpoint, msg Message) {
	msg.Origin = from.id
	h.mu.RLock()
	defer h.mu.RUnlock()
	for e := range h.endpoints {
		if e == from {
			continue
		}
		select {
		case e.inbox <- msg:
		default:
			// Receivers re-read the full collection, so a dropped announcement
			// is recovered by the next one.
			h.logger.WithField("code", msg.Payload).Warn("notify hub: endpoint inbox full, dropping message")
		}
	}
}

func (h *Hub) detach(e *Endpoint) {
	h.mu.Lock()
	delete(h.endpoints, e)
	h.mu.Unlock()
}

// Endpoint is one context's view of a Hub. It implements Notifier.
type Endpoint struct {
	hub   *Hub
	id    string
	inbox chan Message

	mu        sync.Mutex
	listeners map[uint64]func(Message)
	nextID    uint64

	closeOnce sync.Once
	done      chan struct{}
}

// Publish delivers msg to every other endpoint on the hub.
func (e *Endpoint) Publish(_ context.Context, msg Message) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	e.hub.publish(e, msg)
	return nil
}

// Listen registers fn for incoming messages.
func (e *Endpoint) Listen(_ context.Context, fn func(Message)) (func(), error) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}, nil
}

// Close detaches the endpoint; queued messages are discarded.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.hub.detach(e)
		close(e.done)
	})
	return nil
}

func (e *Endpoint) loop() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.inbox:
			if msg.Type != TypeLobbyUpdated {
				continue
			}
			e.mu.Lock()
			fns := make([]func(Message), 0, len(e.listeners))
			for _, fn := range e.listeners {
				fns = append(fns, fn)
			}
			e.mu.Unlock()
			for _, fn := range fns {
				fn(msg)
			}
		}
	}
}
