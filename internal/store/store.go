package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Message is a persisted chat message.
type Message struct {
	ID      string
	Room    string
	Author  string
	Avatar  string
	Body    string
	Kind    string // "text" or "image"
	Time    string // display time, HH:MM
	SavedAt time.Time
}

// User represents a persisted account record.
type User struct {
	ID        string
	Username  string
	Password  string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room represents a persisted password-gated room.
type Room struct {
	ID        string
	Name      string
	Password  string
	CreatedAt time.Time
}

// MessageStore defines the persistence operations the hub depends on.
type MessageStore interface {
	// Save persists the message and returns the canonical record with
	// its store-assigned identifier.
	Save(ctx context.Context, msg Message) (Message, error)
	// FindRoomAndDelete removes the message and returns the room it
	// belonged to, or ErrNotFound.
	FindRoomAndDelete(ctx context.Context, id string) (string, error)
	// ListByRoom returns the stored history for a room, oldest first.
	ListByRoom(ctx context.Context, room string) ([]Message, error)
}

// UserStore defines account persistence operations.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateAvatar(ctx context.Context, username, avatar string) error
}

// RoomStore defines room persistence operations.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoomByName(ctx context.Context, name string) (*Room, error)
}

// Store aggregates all persistence concerns behind one handle.
type Store interface {
	MessageStore
	UserStore
	RoomStore

	Close() error
	Migrate(ctx context.Context) error
}
