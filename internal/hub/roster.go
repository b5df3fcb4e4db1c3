package hub

import "log"

// HandleJoinVoice adds the session to a room's call roster and replies
// with the peers it should start signaling to. The capacity check and
// the append are one critical section, so the roster can never exceed
// the limit. A duplicate join re-sends the current peer list so a
// client can recover from a dropped reply.
func (h *Hub) HandleJoinVoice(s *Session, room string) {
	if room == "" {
		s.SendError(ErrInvalidMessage, "room is required")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// A connection is in at most one room's call; joining a new one
	// leaves the old call first.
	if prev, ok := h.voiceRoom[s.ID]; ok && prev != room {
		h.leaveVoiceLocked(s.ID)
	}

	roster, exists := h.voice[room]
	switch {
	case !exists:
		h.voice[room] = []string{s.ID}
	case len(roster) >= h.capacity && !contains(roster, s.ID):
		s.SendJSON(EventRoomFull, struct{}{})
		return
	case !contains(roster, s.ID):
		h.voice[room] = append(roster, s.ID)
	}
	h.voiceRoom[s.ID] = room

	others := make([]string, 0, len(h.voice[room])-1)
	for _, id := range h.voice[room] {
		if id != s.ID {
			others = append(others, id)
		}
	}
	s.SendJSON(EventAllUsersInCall, others)
	s.SendJSON(EventCallConfig, CallConfigPayload{ICEServers: h.iceServers})

	log.Printf("session %s joined call room=%s size=%d", s.ID, room, len(h.voice[room]))
}

// HandleLeaveVoice removes the session from whatever call it is in.
func (h *Hub) HandleLeaveVoice(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveVoiceLocked(s.ID)
}

// leaveVoiceLocked removes the connection from its call roster, if
// any, and tells the remaining roster members. No-op for connections
// that never joined a call.
func (h *Hub) leaveVoiceLocked(connID string) {
	room, ok := h.voiceRoom[connID]
	if !ok {
		return
	}
	delete(h.voiceRoom, connID)

	roster := remove(h.voice[room], connID)
	if len(roster) == 0 {
		delete(h.voice, room)
	} else {
		h.voice[room] = roster
	}

	for _, id := range roster {
		if member, ok := h.sessions[id]; ok {
			member.SendJSON(EventUserLeftCall, connID)
		}
	}
	log.Printf("session %s left call room=%s size=%d", connID, room, len(roster))
}

// HandleSendingSignal relays a call offer to the target connection.
// Unknown targets are dropped; the eventual user_left_call broadcast
// tells the caller the peer is gone.
func (h *Hub) HandleSendingSignal(s *Session, p SendingSignalPayload) {
	h.mu.RLock()
	target, ok := h.sessions[p.UserToSignal]
	h.mu.RUnlock()
	if !ok {
		log.Printf("signal dropped, target gone: from=%s to=%s", s.ID, p.UserToSignal)
		return
	}
	target.SendJSON(EventUserJoinedCall, UserJoinedCallPayload{
		Signal:   p.Signal,
		CallerID: p.CallerID,
	})
}

// HandleReturningSignal relays a handshake answer back to the caller.
func (h *Hub) HandleReturningSignal(s *Session, p ReturningSignalPayload) {
	h.mu.RLock()
	target, ok := h.sessions[p.CallerID]
	h.mu.RUnlock()
	if !ok {
		log.Printf("answer dropped, caller gone: from=%s to=%s", s.ID, p.CallerID)
		return
	}
	target.SendJSON(EventReturnedSignal, ReturnedSignalPayload{
		Signal: p.Signal,
		ID:     s.ID,
	})
}

// CallRoster returns the ordered connection IDs in a room's call.
func (h *Hub) CallRoster(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.voice[room]...)
}
