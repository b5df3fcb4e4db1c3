package hub

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// Envelope wraps every message exchanged over a connection.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound event types.
const (
	EventJoinRoom          = "join_room"
	EventTyping            = "typing"
	EventSendMessage       = "send_message"
	EventDeleteMessage     = "delete_message"
	EventJoinVoiceChannel  = "join_voice_channel"
	EventSendingSignal     = "sending_signal"
	EventReturningSignal   = "returning_signal"
	EventLeaveVoiceChannel = "leave_voice_channel"
)

// Outbound event types.
const (
	EventRoomUsers        = "room_users"
	EventReceiveMessage   = "receive_message"
	EventMessageSaved     = "message_saved"
	EventMessageDeleted   = "message_deleted"
	EventDisplayTyping    = "display_typing"
	EventAllUsersInCall   = "all_users_in_call"
	EventCallConfig       = "call_config"
	EventUserJoinedCall   = "user_joined_call"
	EventReturnedSignal   = "receiving_returned_signal"
	EventUserLeftCall     = "user_left_call"
	EventRoomFull         = "room_full"
)

type JoinRoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type TypingPayload struct {
	Room     string `json:"room"`
	Author   string `json:"author"`
	IsTyping bool   `json:"isTyping"`
}

// MessagePayload mirrors the stored message schema. ID is assigned by
// the store; LocalID is the client's temporary identifier, echoed back
// only in the message_saved ack.
type MessagePayload struct {
	ID      string `json:"id,omitempty"`
	LocalID string `json:"localId,omitempty"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Avatar  string `json:"avatar"`
	Body    string `json:"message"`
	Kind    string `json:"type"`
	Time    string `json:"time"`
}

type DeleteMessagePayload struct {
	ID string `json:"id"`
}

type JoinVoicePayload struct {
	Room string `json:"room"`
}

type SendingSignalPayload struct {
	UserToSignal string          `json:"userToSignal"`
	CallerID     string          `json:"callerID"`
	Signal       json.RawMessage `json:"signal"`
}

type ReturningSignalPayload struct {
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID"`
}

// RoomUser is one entry of a room_users snapshot.
type RoomUser struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type MessageSavedPayload struct {
	LocalID string         `json:"localId"`
	Message MessagePayload `json:"message"`
}

type UserJoinedCallPayload struct {
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID"`
}

type ReturnedSignalPayload struct {
	Signal json.RawMessage `json:"signal"`
	ID     string          `json:"id"`
}

// CallConfigPayload carries the ICE servers a joiner should use when
// negotiating its mesh links.
type CallConfigPayload struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrInternalError  = "INTERNAL_ERROR"
)
