package chat

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Session is the server-side state bound to one live connection. Nickname is
// set exactly once at a successful join; CurrentRoomID is empty until then and
// after the session leaves General without a destination.
type Session struct {
	Conn          ConnID
	UserID        string
	Nickname      string
	CurrentRoomID string
}

// SessionTable maps live connections to their identities. It is the only
// place the connection-to-identity binding lives; user ids are assigned once
// at registration and never reused, even after disconnect.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[ConnID]*Session
}

// NewSessionTable returns an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[ConnID]*Session)}
}

// Register creates a session for a new connection with nickname and room
// unset, and returns its user id.
func (t *SessionTable) Register(conn ConnID) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Session{Conn: conn, UserID: uuid.NewString()}
	t.sessions[conn] = s
	return s.UserID
}

// SetNickname assigns a nickname to the session. The comparison is exact and
// case-sensitive after trimming; a collision with any live session fails with
// a duplicate error and leaves both sessions untouched.
func (t *SessionTable) SetNickname(conn ConnID, nickname string) error {
	trimmed := strings.TrimSpace(nickname)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sessions {
		if s.Conn != conn && s.Nickname == trimmed {
			return newError(ErrDuplicate, "Nickname already taken")
		}
	}
	if s, ok := t.sessions[conn]; ok {
		s.Nickname = trimmed
	}
	return nil
}

// SetRoom updates the session's current room. An empty id means no room.
func (t *SessionTable) SetRoom(conn ConnID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[conn]; ok {
		s.CurrentRoomID = roomID
	}
}

// Get returns a copy of the session, or false if the connection is unknown.
func (t *SessionTable) Get(conn ConnID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[conn]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Remove discards the session for a closed connection.
func (t *SessionTable) Remove(conn ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, conn)
}

// Nicknames resolves the given connections to their nicknames, skipping
// sessions that never joined. The result preserves no particular order.
func (t *SessionTable) Nicknames(conns []ConnID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(conns))
	for _, conn := range conns {
		if s, ok := t.sessions[conn]; ok && s.Nickname != "" {
			names = append(names, s.Nickname)
		}
	}
	return names
}

// Conns returns a snapshot of every live connection id.
func (t *SessionTable) Conns() []ConnID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := make([]ConnID, 0, len(t.sessions))
	for conn := range t.sessions {
		conns = append(conns, conn)
	}
	return conns
}

// ActiveNicknames returns the set of nicknames held by live sessions.
func (t *SessionTable) ActiveNicknames() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]struct{})
	for _, s := range t.sessions {
		if s.Nickname != "" {
			out[s.Nickname] = struct{}{}
		}
	}
	return out
}
