package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekkarat74/Message-Chat/internal/auth"
	"github.com/ekkarat74/Message-Chat/internal/config"
	"github.com/ekkarat74/Message-Chat/internal/hub"
	"github.com/ekkarat74/Message-Chat/internal/store"
)

// APIHandler serves the credential and history endpoints the client
// calls before it ever opens the websocket. The hub trusts join_room
// only after a successful /api/join-room-verify.
type APIHandler struct {
	store store.Store
	cfg   config.Config
}

func NewAPIHandler(st store.Store, cfg config.Config) *APIHandler {
	return &APIHandler{store: st, cfg: cfg}
}

// Register mounts all API routes on the mux.
func (a *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/update-profile", a.handleUpdateProfile)
	mux.HandleFunc("POST /api/create-room", a.handleCreateRoom)
	mux.HandleFunc("POST /api/join-room-verify", a.handleJoinRoomVerify)
	mux.HandleFunc("GET /api/messages/{room}", a.handleMessages)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type roomRequest struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (a *APIHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if _, err := a.store.GetUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("register lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}

	user := &store.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Password:  hashed,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		log.Printf("create user failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registered"})
}

func (a *APIHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := a.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil || auth.ComparePassword(user.Password, req.Password) != nil {
		writeError(w, http.StatusBadRequest, "Invalid username or password")
		return
	}

	token, err := auth.NewToken(a.cfg.JWT, user.ID, user.Username)
	if err != nil {
		log.Printf("issue token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": user.Username,
		"avatar":   user.Avatar,
	})
}

func (a *APIHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.store.UpdateAvatar(r.Context(), req.Username, req.Avatar); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "User not found")
			return
		}
		log.Printf("update avatar failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

func (a *APIHandler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.RoomName = strings.TrimSpace(req.RoomName)
	if req.RoomName == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Room name and password are required")
		return
	}

	if _, err := a.store.GetRoomByName(r.Context(), req.RoomName); err == nil {
		writeError(w, http.StatusBadRequest, "Room name already taken")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("room lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}
	room := &store.Room{
		ID:        uuid.NewString(),
		Name:      req.RoomName,
		Password:  hashed,
		CreatedAt: time.Now(),
	}
	if err := a.store.CreateRoom(r.Context(), room); err != nil {
		log.Printf("create room failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room created"})
}

func (a *APIHandler) handleJoinRoomVerify(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	room, err := a.store.GetRoomByName(r.Context(), req.RoomName)
	if err != nil || auth.ComparePassword(room.Password, req.Password) != nil {
		writeError(w, http.StatusBadRequest, "Room not found or wrong password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *APIHandler) handleMessages(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	messages, err := a.store.ListByRoom(r.Context(), room)
	if err != nil {
		log.Printf("list messages failed: room=%s err=%v", room, err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	out := make([]hub.MessagePayload, len(messages))
	for i, m := range messages {
		out[i] = hub.MessagePayload{
			ID:     m.ID,
			Room:   m.Room,
			Author: m.Author,
			Avatar: m.Avatar,
			Body:   m.Body,
			Kind:   m.Kind,
			Time:   m.Time,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
