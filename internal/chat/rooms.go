package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ConnID is the opaque handle for one physical connection. The gateway
// assigns it at registration; the registry and session table use it as an
// ordinary comparable map key instead of raw connection pointers.
type ConnID int64

// GeneralRoomName is the room every joiner lands in. It is created at
// construction and protected from deletion.
const GeneralRoomName = "General"

// Room name length bounds, applied after trimming.
const (
	minRoomNameLen = 2
	maxRoomNameLen = 50
)

// systemUserID owns the General room and may delete any room.
const systemUserID = "system"

type room struct {
	id        string
	name      string
	createdBy string
	createdAt string
	members   map[ConnID]struct{}
}

// Registry owns room definitions and live membership sets. Membership is
// tracked by connection id; identity lives in the session table. All methods
// are safe for concurrent use, though the router serializes every mutation.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*room
	order     []string // room ids in creation order
	counter   int64
	generalID string
}

// NewRegistry creates a registry with the General room already present.
func NewRegistry() *Registry {
	r := &Registry{rooms: make(map[string]*room)}
	summary, err := r.CreateRoom(GeneralRoomName, systemUserID)
	if err != nil {
		// Creating a constant-named room cannot fail validation.
		panic(fmt.Sprintf("create %s room: %v", GeneralRoomName, err))
	}
	r.generalID = summary.ID
	return r
}

// CreateRoom validates the name and creates a room with no members. Room ids
// are formatted from a counter that never repeats for the life of the process.
func (r *Registry) CreateRoom(name, creatorID string) (RoomSummary, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < minRoomNameLen {
		return RoomSummary{}, validationf("Room name must be at least %d characters", minRoomNameLen)
	}
	if len(trimmed) > maxRoomNameLen {
		return RoomSummary{}, validationf("Room name must be at most %d characters", maxRoomNameLen)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	rm := &room{
		id:        fmt.Sprintf("room-%d", r.counter),
		name:      trimmed,
		createdBy: creatorID,
		createdAt: time.Now().UTC().Format(time.RFC3339),
		members:   make(map[ConnID]struct{}),
	}
	r.rooms[rm.id] = rm
	r.order = append(r.order, rm.id)

	return summarize(rm), nil
}

// DeleteRoom removes a room. Only the creator (or system) may delete, and the
// General room is protected. Membership cleanup is the caller's concern.
func (r *Registry) DeleteRoom(roomID, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return newError(ErrNotFound, "Room not found")
	}
	if rm.id == r.generalID {
		return newError(ErrForbidden, "Cannot delete %s room", GeneralRoomName)
	}
	if rm.createdBy != requesterID && requesterID != systemUserID {
		return newError(ErrForbidden, "Only room creator can delete the room")
	}

	delete(r.rooms, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddMember adds a connection to a room's member set.
func (r *Registry) AddMember(roomID string, conn ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return newError(ErrNotFound, "Room not found")
	}
	rm.members[conn] = struct{}{}
	return nil
}

// RemoveMember removes a connection from a room. Absent members and missing
// rooms are no-ops.
func (r *Registry) RemoveMember(roomID string, conn ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		delete(rm.members, conn)
	}
}

// Members returns a snapshot of a room's member set.
func (r *Registry) Members(roomID string) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]ConnID, 0, len(rm.members))
	for conn := range rm.members {
		members = append(members, conn)
	}
	return members
}

// ListRooms returns summaries in room-creation order.
func (r *Registry) ListRooms() []RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		if rm, ok := r.rooms[id]; ok {
			out = append(out, summarize(rm))
		}
	}
	return out
}

// RoomExists reports whether the room id is known.
func (r *Registry) RoomExists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID]
	return ok
}

// GeneralRoomID returns the id of the General room.
func (r *Registry) GeneralRoomID() string {
	return r.generalID
}

func summarize(rm *room) RoomSummary {
	return RoomSummary{
		ID:        rm.id,
		Name:      rm.name,
		CreatedBy: rm.createdBy,
		CreatedAt: rm.createdAt,
		UserCount: len(rm.members),
	}
}
