package hub

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ekkarat74/Message-Chat/internal/store"
)

const persistTimeout = 5 * time.Second

// HandleSendMessage relays a chat message. Peers in the room receive
// it immediately, before persistence; the store's canonical record is
// then acked back to the sender only, carrying the client's local id
// so it can reconcile its optimistic entry. A failed save is logged
// and the ack is simply never sent; the broadcast is not rolled back.
func (h *Hub) HandleSendMessage(s *Session, p MessagePayload) {
	h.mu.Lock()
	if s.Room == "" || s.Room != p.Room {
		h.mu.Unlock()
		return
	}
	broadcast := p
	broadcast.ID = ""
	broadcast.LocalID = ""
	for _, id := range h.roomOrder[p.Room] {
		if id == s.ID {
			continue
		}
		if member, ok := h.sessions[id]; ok {
			member.SendJSON(EventReceiveMessage, broadcast)
		}
	}
	h.mu.Unlock()

	go h.persistAndAck(s, p)
}

func (h *Hub) persistAndAck(s *Session, p MessagePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	saved, err := h.store.Save(ctx, store.Message{
		Room:   p.Room,
		Author: p.Author,
		Avatar: p.Avatar,
		Body:   p.Body,
		Kind:   p.Kind,
		Time:   p.Time,
	})
	if err != nil {
		// Peers already saw the message; the sender just never gets
		// its placeholder reconciled.
		log.Printf("persist message failed: room=%s author=%s err=%v", p.Room, p.Author, err)
		return
	}

	s.SendJSON(EventMessageSaved, MessageSavedPayload{
		LocalID: p.LocalID,
		Message: MessagePayload{
			ID:     saved.ID,
			Room:   saved.Room,
			Author: saved.Author,
			Avatar: saved.Avatar,
			Body:   saved.Body,
			Kind:   saved.Kind,
			Time:   saved.Time,
		},
	})
}

// HandleDeleteMessage looks the message up in the store, deletes it,
// and notifies the whole room it belonged to, requester included.
// An unknown id is a silent no-op so retried deletes stay idempotent.
func (h *Hub) HandleDeleteMessage(s *Session, id string) {
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	room, err := h.store.FindRoomAndDelete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("delete ignored, message not found: id=%s", id)
		} else {
			log.Printf("delete message failed: id=%s err=%v", id, err)
		}
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, connID := range h.roomOrder[room] {
		if member, ok := h.sessions[connID]; ok {
			member.SendJSON(EventMessageDeleted, id)
		}
	}
}
