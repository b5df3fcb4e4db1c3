package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is the per-connection record. ID is assigned at connect;
// Name, Avatar and Room are set by join_room. All fields except the
// write path are guarded by the owning Hub's mutex.
type Session struct {
	ID     string
	Name   string
	Avatar string
	Room   string
	Conn   Conn

	writeMu sync.Mutex
}

func (s *Session) SendJSON(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("session %s: marshal error: %v", s.ID, err)
		return
	}

	env := Envelope{
		Type:    msgType,
		Payload: json.RawMessage(data),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Conn == nil {
		return
	}
	if err := s.Conn.WriteJSON(env); err != nil {
		log.Printf("session %s: write error: %v", s.ID, err)
	}
}

func (s *Session) SendError(code, message string) {
	s.SendJSON("error", ErrorPayload{Code: code, Message: message})
}

func (s *Session) WritePing(deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Conn == nil {
		return nil
	}
	s.Conn.SetWriteDeadline(deadline)
	err := s.Conn.WriteMessage(websocket.PingMessage, nil)
	s.Conn.SetWriteDeadline(time.Time{}) // clear deadline so SendJSON writes aren't affected
	return err
}
