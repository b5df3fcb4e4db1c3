package hub

import (
	"log"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/ekkarat74/Message-Chat/internal/store"
)

// Hub owns all live connection state: the session registry, per-room
// presence, the voice-call rosters, and the signaling relay. A single
// mutex serializes every membership and roster mutation together with
// the snapshot broadcast it triggers, so clients never observe a
// partially applied update. Persistence calls run without the lock.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*Session  // connID -> session
	roomOrder map[string][]string  // room -> conn IDs, join order
	voice     map[string][]string  // room -> conn IDs in the room's call, join order
	voiceRoom map[string]string    // connID -> room whose call it is in

	store      store.MessageStore
	capacity   int
	iceServers []webrtc.ICEServer
}

// NewHub creates a hub backed by the given message store. capacity is
// the per-room call limit; stunURLs seed the call_config payload.
func NewHub(st store.MessageStore, capacity int, stunURLs []string) *Hub {
	var servers []webrtc.ICEServer
	if len(stunURLs) > 0 {
		servers = []webrtc.ICEServer{{URLs: stunURLs}}
	}
	return &Hub{
		sessions:   make(map[string]*Session),
		roomOrder:  make(map[string][]string),
		voice:      make(map[string][]string),
		voiceRoom:  make(map[string]string),
		store:      st,
		capacity:   capacity,
		iceServers: servers,
	}
}

// Register adds a freshly connected session to the registry.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// HandleJoinRoom moves the session into a room. If it was in a
// different room before, that room is left (and its members notified)
// first. Re-joining the same room only refreshes username and avatar.
func (h *Hub) HandleJoinRoom(s *Session, p JoinRoomPayload) {
	if p.Room == "" {
		s.SendError(ErrInvalidMessage, "room is required")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	oldRoom := s.Room
	if oldRoom != "" && oldRoom != p.Room {
		h.removeFromRoomLocked(oldRoom, s.ID)
		h.broadcastRoomUsersLocked(oldRoom)
	}

	s.Name = p.Username
	s.Avatar = p.Avatar
	s.Room = p.Room

	if !contains(h.roomOrder[p.Room], s.ID) {
		h.roomOrder[p.Room] = append(h.roomOrder[p.Room], s.ID)
	}
	h.broadcastRoomUsersLocked(p.Room)

	log.Printf("session %s (%s) joined room %s", s.ID, p.Username, p.Room)
}

// HandleTyping forwards a typing notice to the other members of the
// sender's room. Notices for rooms the sender is not in are dropped.
func (h *Hub) HandleTyping(s *Session, p TypingPayload) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if s.Room == "" || s.Room != p.Room {
		return
	}
	for _, id := range h.roomOrder[p.Room] {
		if id == s.ID {
			continue
		}
		if member, ok := h.sessions[id]; ok {
			member.SendJSON(EventDisplayTyping, p)
		}
	}
}

// RemoveSession runs the disconnect cascade: clear the registry entry,
// notify the chat room it left (if any), then leave the call roster it
// was in (if any). After it returns the connection is absent from
// every snapshot.
func (h *Hub) RemoveSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, s.ID)

	if room := s.Room; room != "" {
		s.Room = ""
		h.removeFromRoomLocked(room, s.ID)
		h.broadcastRoomUsersLocked(room)
	}

	h.leaveVoiceLocked(s.ID)
}

// Snapshot returns the current presence snapshot for a room.
func (h *Hub) Snapshot(room string) []RoomUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked(room)
}

// snapshotLocked derives the presence list from live sessions:
// ordered by first appearance, deduplicated by username with the
// last-joined connection's avatar winning.
func (h *Hub) snapshotLocked(room string) []RoomUser {
	users := make([]RoomUser, 0, len(h.roomOrder[room]))
	index := make(map[string]int)
	for _, id := range h.roomOrder[room] {
		s, ok := h.sessions[id]
		if !ok || s.Name == "" {
			continue
		}
		if i, dup := index[s.Name]; dup {
			users[i].Avatar = s.Avatar
			continue
		}
		index[s.Name] = len(users)
		users = append(users, RoomUser{Username: s.Name, Avatar: s.Avatar})
	}
	return users
}

func (h *Hub) broadcastRoomUsersLocked(room string) {
	members := h.roomOrder[room]
	if len(members) == 0 {
		return
	}
	users := h.snapshotLocked(room)
	for _, id := range members {
		if s, ok := h.sessions[id]; ok {
			s.SendJSON(EventRoomUsers, users)
		}
	}
}

func (h *Hub) removeFromRoomLocked(room, connID string) {
	h.roomOrder[room] = remove(h.roomOrder[room], connID)
	if len(h.roomOrder[room]) == 0 {
		delete(h.roomOrder, room)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
