package handlers

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ekkarat74/Message-Chat/internal/config"
	"github.com/ekkarat74/Message-Chat/internal/hub"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxMessageBytes = 10 << 20 // image payloads travel inline as data URIs
	maxSignalBytes  = 100_000
)

type rateLimiter struct {
	tokens    int
	lastReset time.Time
	maxRate   int
}

func newRateLimiter(maxRate int) *rateLimiter {
	return &rateLimiter{
		tokens:    maxRate,
		lastReset: time.Now(),
		maxRate:   maxRate,
	}
}

func (rl *rateLimiter) allow() bool {
	now := time.Now()
	elapsed := now.Sub(rl.lastReset)
	if elapsed >= time.Second {
		rl.tokens = rl.maxRate
		rl.lastReset = now
	}
	if rl.tokens <= 0 {
		return false
	}
	rl.tokens--
	return true
}

type connLimiterEntry struct {
	limiter  *rateLimiter
	lastSeen time.Time
}

// WSHandler upgrades HTTP requests and feeds inbound events to the hub.
type WSHandler struct {
	hub *hub.Hub
	cfg config.Config

	upgrader websocket.Upgrader

	connLimiters   map[string]*connLimiterEntry
	connLimitersMu sync.Mutex
}

// NewWSHandler wires the websocket endpoint to a hub.
func NewWSHandler(h *hub.Hub, cfg config.Config) *WSHandler {
	wh := &WSHandler{
		hub:          h,
		cfg:          cfg,
		connLimiters: make(map[string]*connLimiterEntry),
	}
	wh.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(cfg.AllowedOrigins) > 0 {
				for _, o := range cfg.AllowedOrigins {
					if origin == o {
						return true
					}
				}
				return false
			}
			host := r.Host
			return origin == "http://"+host || origin == "https://"+host
		},
	}
	go wh.sweepLimiters()
	return wh
}

func (wh *WSHandler) sweepLimiters() {
	for range time.Tick(5 * time.Minute) {
		wh.connLimitersMu.Lock()
		now := time.Now()
		for ip, entry := range wh.connLimiters {
			if now.Sub(entry.lastSeen) > 5*time.Minute {
				delete(wh.connLimiters, ip)
			}
		}
		wh.connLimitersMu.Unlock()
	}
}

func (wh *WSHandler) allowConnection(ip string) bool {
	wh.connLimitersMu.Lock()
	defer wh.connLimitersMu.Unlock()

	entry, ok := wh.connLimiters[ip]
	if !ok {
		entry = &connLimiterEntry{
			limiter: newRateLimiter(3),
		}
		wh.connLimiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.allow()
}

func (wh *WSHandler) extractIP(r *http.Request) string {
	if wh.cfg.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.Index(xff, ","); i > 0 {
				return strings.TrimSpace(xff[:i])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (wh *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := wh.extractIP(r)

	if !wh.allowConnection(ip) {
		log.Printf("SECURITY: conn_rate_limit ip=%s", ip)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	session := &hub.Session{
		ID:   uuid.New().String(),
		Conn: conn,
	}
	wh.hub.Register(session)

	log.Printf("session connected: %s ip=%s", session.ID, ip)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := session.WritePing(time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-pingDone:
				return
			}
		}
	}()

	defer func() {
		close(pingDone)
		wh.hub.RemoveSession(session)
		conn.Close()
		log.Printf("session disconnected: %s", session.ID)
	}()

	limiter := newRateLimiter(30)
	violations := 0

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("session %s: read error: %v", session.ID, err)
			}
			break
		}

		if !limiter.allow() {
			violations++
			if violations >= 50 {
				log.Printf("SECURITY: rate_abuse ip=%s session=%s violations=%d", ip, session.ID, violations)
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Too many requests"),
					time.Now().Add(time.Second),
				)
				break
			}
			session.SendError(hub.ErrInvalidMessage, "Rate limit exceeded")
			continue
		}

		var env hub.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("SECURITY: malformed_json ip=%s session=%s", ip, session.ID)
			session.SendError(hub.ErrInvalidMessage, "Invalid JSON message")
			continue
		}

		wh.dispatch(session, env)
	}
}

func (wh *WSHandler) dispatch(session *hub.Session, env hub.Envelope) {
	switch env.Type {
	case hub.EventJoinRoom:
		var p hub.JoinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid join_room payload")
			return
		}
		if !validUsername(p.Username) {
			session.SendError(hub.ErrInvalidMessage, "Username must be 1-24 characters")
			return
		}
		wh.hub.HandleJoinRoom(session, p)

	case hub.EventTyping:
		var p hub.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid typing payload")
			return
		}
		wh.hub.HandleTyping(session, p)

	case hub.EventSendMessage:
		var p hub.MessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid send_message payload")
			return
		}
		if p.Kind != "text" && p.Kind != "image" {
			session.SendError(hub.ErrInvalidMessage, "Message type must be text or image")
			return
		}
		if p.Body == "" {
			return
		}
		wh.hub.HandleSendMessage(session, p)

	case hub.EventDeleteMessage:
		var p hub.DeleteMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid delete_message payload")
			return
		}
		wh.hub.HandleDeleteMessage(session, p.ID)

	case hub.EventJoinVoiceChannel:
		var p hub.JoinVoicePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid join_voice_channel payload")
			return
		}
		wh.hub.HandleJoinVoice(session, p.Room)

	case hub.EventSendingSignal:
		var p hub.SendingSignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid sending_signal payload")
			return
		}
		if len(p.Signal) > maxSignalBytes {
			log.Printf("SECURITY: oversized_signal session=%s size=%d", session.ID, len(p.Signal))
			session.SendError(hub.ErrInvalidMessage, "Signal too large")
			return
		}
		wh.hub.HandleSendingSignal(session, p)

	case hub.EventReturningSignal:
		var p hub.ReturningSignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			session.SendError(hub.ErrInvalidMessage, "Invalid returning_signal payload")
			return
		}
		if len(p.Signal) > maxSignalBytes {
			log.Printf("SECURITY: oversized_signal session=%s size=%d", session.ID, len(p.Signal))
			session.SendError(hub.ErrInvalidMessage, "Signal too large")
			return
		}
		wh.hub.HandleReturningSignal(session, p)

	case hub.EventLeaveVoiceChannel:
		wh.hub.HandleLeaveVoice(session)

	default:
		session.SendError(hub.ErrInvalidMessage, "Unknown message type: "+env.Type)
	}
}

func validUsername(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && utf8.RuneCountInString(name) <= 24
}
