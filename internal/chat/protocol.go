package chat

import (
	"github.com/goccy/go-json"

	"github.com/roomrelay/roomrelay/internal/logging"
)

// Intent is the decoded form of a single inbound frame. Type selects the
// operation; the remaining fields are populated per type and ignored
// otherwise, matching the loosely-typed frames the web client sends.
type Intent struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname,omitempty"`
	Content  string `json:"content,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	Since    string `json:"since,omitempty"`
}

// Intent type discriminators.
const (
	IntentJoin             = "join"
	IntentMessage          = "message"
	IntentCreateRoom       = "create-room"
	IntentJoinRoom         = "join-room"
	IntentLeaveRoom        = "leave-room"
	IntentListRooms        = "list-rooms"
	IntentGetMessages      = "get-messages"
	IntentGetMessagesSince = "get-messages-since"
	IntentLeave            = "leave"
)

// Event type discriminators.
const (
	EventJoined         = "joined"
	EventMessage        = "message"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventUserJoinedRoom = "user-joined-room"
	EventUserLeftRoom   = "user-left-room"
	EventRoomList       = "room-list"
	EventRoomCreated    = "room-created"
	EventRoomJoined     = "room-joined"
	EventMessageHistory = "message-history"
	EventMessagesSync   = "messages-sync"
	EventError          = "error"
)

// RoomSummary is the public view of a room carried in room-list, room-created,
// and joined frames.
type RoomSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
	UserCount int    `json:"userCount"`
}

// StoredMessage is a durably persisted chat message. The id is assigned by the
// store and strictly increases in insertion order; timestamps are ISO-8601 and
// serve as the retrieval ordering key with id as the tiebreak.
type StoredMessage struct {
	ID        int64  `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type joinedEvent struct {
	Type        string        `json:"type"`
	UserID      string        `json:"userId"`
	CurrentRoom string        `json:"currentRoom"`
	Rooms       []RoomSummary `json:"rooms"`
	Users       []string      `json:"users"`
}

type messageEvent struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type userJoinedEvent struct {
	Type     string   `json:"type"`
	Nickname string   `json:"nickname"`
	Users    []string `json:"users"`
}

type userLeftEvent struct {
	Type     string   `json:"type"`
	Nickname string   `json:"nickname"`
	Users    []string `json:"users"`
}

type userJoinedRoomEvent struct {
	Type     string   `json:"type"`
	Nickname string   `json:"nickname"`
	RoomID   string   `json:"roomId"`
	Users    []string `json:"users"`
}

type userLeftRoomEvent struct {
	Type     string   `json:"type"`
	Nickname string   `json:"nickname"`
	RoomID   string   `json:"roomId"`
	Users    []string `json:"users"`
}

type roomListEvent struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

type roomCreatedEvent struct {
	Type string      `json:"type"`
	Room RoomSummary `json:"room"`
}

type roomJoinedEvent struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

type messageHistoryEvent struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	Messages []StoredMessage `json:"messages"`
	Offset   int             `json:"offset"`
	HasMore  bool            `json:"hasMore"`
}

type messagesSyncEvent struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	Messages []StoredMessage `json:"messages"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encode marshals an event frame. Event structs contain only marshalable
// fields, so a failure indicates a programming error; it is logged and an
// empty frame suppressed by the sender is returned.
func encode(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode event frame")
		return nil
	}
	return payload
}

// DecodeIntent parses one inbound frame.
func DecodeIntent(raw []byte) (Intent, error) {
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return Intent{}, validationf("Invalid message format")
	}
	return in, nil
}

func nonNilMessages(msgs []StoredMessage) []StoredMessage {
	if msgs == nil {
		return []StoredMessage{}
	}
	return msgs
}
