package chat

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roomrelay/roomrelay/internal/logging"
	"github.com/roomrelay/roomrelay/internal/metrics"
)

// TimestampLayout is the ISO-8601 layout for message timestamps. Nanoseconds
// are zero-padded so that lexicographic order on the rendered string equals
// chronological order, which the store relies on for key ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const minNicknameLen = 2

// Sender is the gateway's fan-out primitive. Send must never block on a slow
// recipient: the gateway buffers per connection and drops the connection on
// persistent backpressure. Sends to unknown or closed connections are
// silently skipped. Close asks the gateway to tear the connection down.
type Sender interface {
	Send(conn ConnID, payload []byte)
	Close(conn ConnID)
}

// MessageStore is the persistence adapter the router writes through. Append
// must be durable before it returns; the router never broadcasts a message
// the store did not accept.
type MessageStore interface {
	Append(roomID, userID, nickname, content, timestamp string) (StoredMessage, error)
	Page(roomID string, limit, offset int) ([]StoredMessage, error)
	Since(roomID, since string) ([]StoredMessage, error)
	Count(roomID string) (int, error)
}

// Router is the protocol state machine. Each connection moves through
// connected (registered, no nickname), joined (nickname set, in a room), and
// closed (session discarded). Every intent is validated against session state
// before any mutation, and all mutations of the registry, session table, and
// store are serialized behind one mutex so no observer sees a half-updated
// membership set. Broadcast delivery itself is non-blocking per recipient.
type Router struct {
	mu       sync.Mutex
	rooms    *Registry
	sessions *SessionTable
	store    MessageStore
	sender   Sender
	pageSize int
	nextConn ConnID
	now      func() time.Time
}

// NewRouter wires the router to its collaborators. pageSize is the history
// limit applied when a get-messages intent omits one.
func NewRouter(rooms *Registry, sessions *SessionTable, store MessageStore, sender Sender, pageSize int) *Router {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Router{
		rooms:    rooms,
		sessions: sessions,
		store:    store,
		sender:   sender,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Connect registers a new connection and returns its opaque id. The session
// starts with nickname and room unset.
func (r *Router) Connect() ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextConn++
	conn := r.nextConn
	userID := r.sessions.Register(conn)
	logging.Debug().Int64("conn", int64(conn)).Str("user_id", userID).Msg("connection registered")
	return conn
}

// Disconnect removes the connection's room membership and session, and
// notifies the departed room. A session that never joined leaves no trace.
// Safe to call more than once for the same connection.
func (r *Router) Disconnect(conn ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardown(conn)
}

// Dispatch decodes one inbound frame and runs the matching operation. Errors
// are reported to the originating connection only; no error is fatal to the
// process or to other connections.
func (r *Router) Dispatch(conn ConnID, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, err := DecodeIntent(raw)
	if err != nil {
		r.sendError(conn, err)
		return
	}
	metrics.IntentsTotal.WithLabelValues(intentLabel(in.Type)).Inc()

	switch in.Type {
	case IntentJoin:
		err = r.join(conn, in.Nickname)
	case IntentMessage:
		err = r.message(conn, in.Content)
	case IntentCreateRoom:
		err = r.createRoom(conn, in.RoomName)
	case IntentJoinRoom:
		err = r.joinRoom(conn, in.RoomID)
	case IntentLeaveRoom:
		err = r.leaveRoom(conn, in.RoomID)
	case IntentListRooms:
		err = r.listRooms(conn)
	case IntentGetMessages:
		err = r.getMessages(conn, in.RoomID, in.Limit, in.Offset)
	case IntentGetMessagesSince:
		err = r.getMessagesSince(conn, in.RoomID, in.Since)
	case IntentLeave:
		r.teardown(conn)
		r.sender.Close(conn)
	default:
		err = newError(ErrUnknownType, "Unknown message type")
	}

	if err != nil {
		r.sendError(conn, err)
	}
}

// join is valid only before a nickname is set. On success the session lands
// in the General room and its other members are notified.
func (r *Router) join(conn ConnID, nickname string) error {
	s, ok := r.sessions.Get(conn)
	if !ok {
		return validationf("Connection is not registered")
	}
	if s.Nickname != "" {
		return validationf("Already joined")
	}

	trimmed := strings.TrimSpace(nickname)
	if len(trimmed) < minNicknameLen {
		return validationf("Nickname must be at least %d characters", minNicknameLen)
	}
	if err := r.sessions.SetNickname(conn, trimmed); err != nil {
		return err
	}

	generalID := r.rooms.GeneralRoomID()
	if err := r.rooms.AddMember(generalID, conn); err != nil {
		return err
	}
	r.sessions.SetRoom(conn, generalID)

	users := r.roomUsers(generalID)
	r.send(conn, joinedEvent{
		Type:        EventJoined,
		UserID:      s.UserID,
		CurrentRoom: generalID,
		Rooms:       r.rooms.ListRooms(),
		Users:       users,
	})
	r.broadcastRoomExcept(generalID, conn, encode(userJoinedEvent{
		Type:     EventUserJoined,
		Nickname: trimmed,
		Users:    users,
	}))
	logging.Info().Str("nickname", trimmed).Str("user_id", s.UserID).Msg("user joined")
	return nil
}

// message persists the content for the session's current room, then fans the
// stored message out to every member including the sender. Content that trims
// to empty is dropped without an error. A failed append suppresses the
// broadcast entirely.
func (r *Router) message(conn ConnID, content string) error {
	s, err := r.requireJoined(conn)
	if err != nil {
		return err
	}
	if s.CurrentRoomID == "" {
		return validationf("You are not in a room")
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	timestamp := r.now().UTC().Format(TimestampLayout)
	msg, err := r.store.Append(s.CurrentRoomID, s.UserID, s.Nickname, trimmed, timestamp)
	if err != nil {
		metrics.StoreErrors.Inc()
		return storeErr("save message", err)
	}
	metrics.MessagesStored.Inc()

	r.broadcastRoom(s.CurrentRoomID, encode(messageEvent{
		Type:      EventMessage,
		ID:        msg.ID,
		UserID:    msg.UserID,
		Nickname:  msg.Nickname,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}))
	return nil
}

// createRoom delegates to the registry and announces the new room to every
// connected session regardless of current room. The creator does not move.
func (r *Router) createRoom(conn ConnID, name string) error {
	s, err := r.requireJoined(conn)
	if err != nil {
		return err
	}

	summary, err := r.rooms.CreateRoom(name, s.UserID)
	if err != nil {
		return err
	}

	r.broadcastAll(encode(roomCreatedEvent{Type: EventRoomCreated, Room: summary}))
	logging.Info().Str("room_id", summary.ID).Str("name", summary.Name).Msg("room created")
	return nil
}

// joinRoom moves the session between rooms: the prior room sees a left
// notice with its post-removal member list, the requester gets the new
// room's member list, and the new room's other members see a joined notice.
// Joining the current room is a no-op.
func (r *Router) joinRoom(conn ConnID, roomID string) error {
	s, err := r.requireJoined(conn)
	if err != nil {
		return err
	}
	if roomID == s.CurrentRoomID {
		return nil
	}
	if !r.rooms.RoomExists(roomID) {
		return newError(ErrNotFound, "Room not found")
	}

	if s.CurrentRoomID != "" {
		r.departRoom(s.CurrentRoomID, conn, s.Nickname, false)
	}

	if err := r.rooms.AddMember(roomID, conn); err != nil {
		return err
	}
	r.sessions.SetRoom(conn, roomID)

	users := r.roomUsers(roomID)
	r.send(conn, roomJoinedEvent{Type: EventRoomJoined, RoomID: roomID, Users: users})
	r.broadcastRoomExcept(roomID, conn, encode(userJoinedRoomEvent{
		Type:     EventUserJoinedRoom,
		Nickname: s.Nickname,
		RoomID:   roomID,
		Users:    users,
	}))
	return nil
}

// leaveRoom removes the session from its current room and re-homes it into
// General. Leaving General itself parks the session with no current room
// until the next join-room.
func (r *Router) leaveRoom(conn ConnID, roomID string) error {
	s, err := r.requireJoined(conn)
	if err != nil {
		return err
	}
	if !r.rooms.RoomExists(roomID) {
		return newError(ErrNotFound, "Room not found")
	}
	if roomID != s.CurrentRoomID {
		return validationf("You are not in that room")
	}

	r.departRoom(roomID, conn, s.Nickname, false)

	generalID := r.rooms.GeneralRoomID()
	if roomID == generalID {
		r.sessions.SetRoom(conn, "")
		return nil
	}

	if err := r.rooms.AddMember(generalID, conn); err != nil {
		return err
	}
	r.sessions.SetRoom(conn, generalID)

	users := r.roomUsers(generalID)
	r.send(conn, roomJoinedEvent{Type: EventRoomJoined, RoomID: generalID, Users: users})
	r.broadcastRoomExcept(generalID, conn, encode(userJoinedRoomEvent{
		Type:     EventUserJoinedRoom,
		Nickname: s.Nickname,
		RoomID:   generalID,
		Users:    users,
	}))
	return nil
}

// listRooms replies with the current room list snapshot. Valid from any live
// session, joined or not.
func (r *Router) listRooms(conn ConnID) error {
	if _, ok := r.sessions.Get(conn); !ok {
		return validationf("Connection is not registered")
	}
	r.send(conn, roomListEvent{Type: EventRoomList, Rooms: r.rooms.ListRooms()})
	return nil
}

// getMessages replies with one page of history, oldest-first within the page.
func (r *Router) getMessages(conn ConnID, roomID string, limit, offset int) error {
	if _, ok := r.sessions.Get(conn); !ok {
		return validationf("Connection is not registered")
	}
	if !r.rooms.RoomExists(roomID) {
		return newError(ErrNotFound, "Room not found")
	}
	if limit <= 0 {
		limit = r.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := r.store.Page(roomID, limit, offset)
	if err != nil {
		metrics.StoreErrors.Inc()
		return storeErr("load messages", err)
	}
	count, err := r.store.Count(roomID)
	if err != nil {
		metrics.StoreErrors.Inc()
		return storeErr("count messages", err)
	}

	r.send(conn, messageHistoryEvent{
		Type:     EventMessageHistory,
		RoomID:   roomID,
		Messages: nonNilMessages(msgs),
		Offset:   offset,
		HasMore:  count > offset+limit,
	})
	return nil
}

// getMessagesSince replies with every stored message strictly newer than the
// given timestamp, for reconnect catch-up.
func (r *Router) getMessagesSince(conn ConnID, roomID, since string) error {
	if _, ok := r.sessions.Get(conn); !ok {
		return validationf("Connection is not registered")
	}
	if !r.rooms.RoomExists(roomID) {
		return newError(ErrNotFound, "Room not found")
	}

	parsed, err := time.Parse(time.RFC3339Nano, since)
	if err != nil {
		return validationf("Invalid since timestamp")
	}

	msgs, err := r.store.Since(roomID, parsed.UTC().Format(TimestampLayout))
	if err != nil {
		metrics.StoreErrors.Inc()
		return storeErr("load messages", err)
	}

	r.send(conn, messagesSyncEvent{
		Type:     EventMessagesSync,
		RoomID:   roomID,
		Messages: nonNilMessages(msgs),
	})
	return nil
}

// teardown is the shared implicit-leave path for disconnects and the leave
// intent. Callers hold r.mu.
func (r *Router) teardown(conn ConnID) {
	s, ok := r.sessions.Get(conn)
	if !ok {
		return
	}

	if s.CurrentRoomID != "" {
		r.departRoom(s.CurrentRoomID, conn, s.Nickname, true)
	}
	r.sessions.Remove(conn)
	if s.Nickname != "" {
		logging.Info().Str("nickname", s.Nickname).Msg("user left")
	}
}

// departRoom removes the member and broadcasts the left notice with the
// post-removal member list. Room switches always use the room-scoped
// user-left-room event; disconnects from General use the legacy user-left
// form the original web client understands, selected by legacy.
func (r *Router) departRoom(roomID string, conn ConnID, nickname string, legacy bool) {
	r.rooms.RemoveMember(roomID, conn)
	if nickname == "" {
		return
	}

	users := r.roomUsers(roomID)
	if legacy && roomID == r.rooms.GeneralRoomID() {
		r.broadcastRoom(roomID, encode(userLeftEvent{
			Type:     EventUserLeft,
			Nickname: nickname,
			Users:    users,
		}))
		return
	}
	r.broadcastRoom(roomID, encode(userLeftRoomEvent{
		Type:     EventUserLeftRoom,
		Nickname: nickname,
		RoomID:   roomID,
		Users:    users,
	}))
}

// intentLabel collapses unrecognized intent types into a single metric label
// so clients cannot inflate label cardinality.
func intentLabel(t string) string {
	switch t {
	case IntentJoin, IntentMessage, IntentCreateRoom, IntentJoinRoom,
		IntentLeaveRoom, IntentListRooms, IntentGetMessages,
		IntentGetMessagesSince, IntentLeave:
		return t
	default:
		return "unknown"
	}
}

func (r *Router) requireJoined(conn ConnID) (Session, error) {
	s, ok := r.sessions.Get(conn)
	if !ok {
		return Session{}, validationf("Connection is not registered")
	}
	if s.Nickname == "" {
		return Session{}, validationf("Please join first")
	}
	return s, nil
}

// roomUsers returns the room's member nicknames, sorted for stable output.
func (r *Router) roomUsers(roomID string) []string {
	users := r.sessions.Nicknames(r.rooms.Members(roomID))
	sort.Strings(users)
	return users
}

func (r *Router) send(conn ConnID, event any) {
	if payload := encode(event); payload != nil {
		r.sender.Send(conn, payload)
	}
}

func (r *Router) sendError(conn ConnID, err error) {
	if errors.Is(err, ErrStore) {
		logging.Error().Err(err).Int64("conn", int64(conn)).Msg("store error")
	} else {
		logging.Debug().Err(err).Int64("conn", int64(conn)).Msg("intent rejected")
	}
	r.send(conn, errorEvent{Type: EventError, Message: err.Error()})
}

func (r *Router) broadcastRoom(roomID string, payload []byte) {
	r.broadcastRoomExcept(roomID, 0, payload)
}

// broadcastRoomExcept fans a frame out to the room's current members, skipping
// except when non-zero. Delivery per recipient is best-effort and never
// blocks the caller.
func (r *Router) broadcastRoomExcept(roomID string, except ConnID, payload []byte) {
	if payload == nil {
		return
	}
	for _, conn := range r.rooms.Members(roomID) {
		if conn == except {
			continue
		}
		r.sender.Send(conn, payload)
		metrics.BroadcastFrames.Inc()
	}
}

// broadcastAll fans a frame out to every live session regardless of room.
func (r *Router) broadcastAll(payload []byte) {
	if payload == nil {
		return
	}
	for _, conn := range r.sessions.Conns() {
		r.sender.Send(conn, payload)
		metrics.BroadcastFrames.Inc()
	}
}
