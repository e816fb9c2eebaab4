package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const EventMessageCreated = "message.created"

// Event is pushed to stream subscribers. It never carries message content;
// clients fetch history to read it.
type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId,omitempty"`
	SenderID       string    `json:"senderId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Hub fans events out to the live subscribers of each conversation.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    zerolog.Logger
}

// Subscription receives the events of one conversation until Close.
type Subscription struct {
	hub            *Hub
	conversationID string
	ch             chan Event
	closeOnce      sync.Once
}

func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Subscribe(conversationID string) *Subscription {
	sub := &Subscription{
		hub:            h,
		conversationID: conversationID,
		ch:             make(chan Event, h.buffer),
	}
	h.mu.Lock()
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*Subscription]struct{})
	}
	h.subs[conversationID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers e to every subscriber of its conversation without
// blocking. A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[e.ConversationID] {
		select {
		case sub.ch <- e:
		default:
			h.log.Warn().
				Str("conversation_id", e.ConversationID).
				Str("message_id", e.MessageID).
				Msg("subscriber too slow, event dropped")
		}
	}
}

// Subscribers returns the number of live subscriptions for a conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// CloseConversation ends every subscription of a deleted conversation.
func (h *Hub) CloseConversation(conversationID string) {
	h.mu.Lock()
	subs := h.subs[conversationID]
	delete(h.subs, conversationID)
	h.mu.Unlock()
	for sub := range subs {
		sub.closeOnce.Do(func() { close(sub.ch) })
	}
}

func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes and closes the event channel. Safe to call twice.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		h := s.hub
		h.mu.Lock()
		if subs, ok := h.subs[s.conversationID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.subs, s.conversationID)
			}
		}
		close(s.ch)
		h.mu.Unlock()
	})
}
