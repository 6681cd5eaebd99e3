package view

import (
	"context"
	"sync"

	"github.com/ButyrinIA/feed/internal/models"
)

type EventType string

const (
	EventAnnotated EventType = "annotated"
	EventReloaded  EventType = "reloaded"
	EventVoted     EventType = "voted"
)

type Event struct {
	Type       EventType     `json:"type"`
	View       string        `json:"view"`
	Generation uint64        `json:"generation"`
	Node       string        `json:"node,omitempty"`
	Votes      *models.Votes `json:"votes,omitempty"`
}

// Hub рассылает события представлений подписчикам.
type Hub struct {
	subscribers map[string]map[chan Event]struct{}
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan Event]struct{})}
}

// Subscribe возвращает канал событий представления viewID. Канал
// закрывается после отмены ctx.
func (h *Hub) Subscribe(ctx context.Context, viewID string) <-chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	if _, exists := h.subscribers[viewID]; !exists {
		h.subscribers[viewID] = make(map[chan Event]struct{})
	}
	h.subscribers[viewID][ch] = struct{}{}
	h.mu.Unlock()

	// Очистка канала после завершения подписки
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subscribers[viewID], ch)
		if len(h.subscribers[viewID]) == 0 {
			delete(h.subscribers, viewID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish не блокируется: медленный подписчик теряет события.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[ev.View] {
		select {
		case ch <- ev:
		default:
		}
	}
}
