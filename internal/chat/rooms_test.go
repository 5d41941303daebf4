package chat_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/roomrelay/roomrelay/internal/chat"
)

func TestNewRegistryCreatesGeneral(t *testing.T) {
	r := chat.NewRegistry()

	rooms := r.ListRooms()
	if len(rooms) != 1 {
		t.Fatalf("new registry has %d rooms, want 1", len(rooms))
	}
	if rooms[0].Name != chat.GeneralRoomName {
		t.Errorf("bootstrap room = %q, want %q", rooms[0].Name, chat.GeneralRoomName)
	}
	if rooms[0].ID != r.GeneralRoomID() {
		t.Errorf("GeneralRoomID() = %q, want %q", r.GeneralRoomID(), rooms[0].ID)
	}
	if !r.RoomExists(r.GeneralRoomID()) {
		t.Error("General room does not exist")
	}
}

func TestCreateRoomValidatesName(t *testing.T) {
	r := chat.NewRegistry()

	cases := []struct {
		name    string
		roomArg string
		wantErr bool
	}{
		{"too short", "a", true},
		{"whitespace only", "   ", true},
		{"trimmed too short", " b ", true},
		{"minimum length", "ab", false},
		{"trimmed ok", "  Dev  ", false},
		{"maximum length", strings.Repeat("x", 50), false},
		{"too long", strings.Repeat("x", 51), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := r.CreateRoom(tc.roomArg, "u1")
			if tc.wantErr {
				if !errors.Is(err, chat.ErrValidation) {
					t.Errorf("CreateRoom(%q) error = %v, want validation error", tc.roomArg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateRoom(%q) failed: %v", tc.roomArg, err)
			}
			if summary.Name != strings.TrimSpace(tc.roomArg) {
				t.Errorf("stored name = %q, want trimmed input", summary.Name)
			}
			if summary.UserCount != 0 {
				t.Errorf("new room userCount = %d, want 0", summary.UserCount)
			}
		})
	}
}

func TestRoomIDsAreUniquePerProcess(t *testing.T) {
	r := chat.NewRegistry()

	a, _ := r.CreateRoom("Dev", "u1")
	if err := r.DeleteRoom(a.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	b, _ := r.CreateRoom("Dev", "u1")
	if a.ID == b.ID {
		t.Errorf("room id %q reused after deletion", a.ID)
	}
}

func TestDeleteRoomProtections(t *testing.T) {
	r := chat.NewRegistry()
	dev, _ := r.CreateRoom("Dev", "creator")

	if err := r.DeleteRoom("room-404", "creator"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("deleting unknown room: err = %v, want not-found", err)
	}
	if err := r.DeleteRoom(r.GeneralRoomID(), "creator"); !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("deleting General: err = %v, want forbidden", err)
	}
	if err := r.DeleteRoom(dev.ID, "someone-else"); !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("delete by non-creator: err = %v, want forbidden", err)
	}
	if err := r.DeleteRoom(dev.ID, "creator"); err != nil {
		t.Errorf("delete by creator failed: %v", err)
	}
	if r.RoomExists(dev.ID) {
		t.Error("room still exists after deletion")
	}
}

func TestMembershipCounting(t *testing.T) {
	r := chat.NewRegistry()
	dev, _ := r.CreateRoom("Dev", "u1")

	if err := r.AddMember(dev.ID, 1); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := r.AddMember(dev.ID, 2); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := r.AddMember("room-404", 3); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("AddMember to unknown room: err = %v, want not-found", err)
	}

	if got := len(r.Members(dev.ID)); got != 2 {
		t.Errorf("members = %d, want 2", got)
	}

	r.RemoveMember(dev.ID, 1)
	r.RemoveMember(dev.ID, 99)    // absent member: no-op
	r.RemoveMember("room-404", 2) // missing room: no-op

	if got := len(r.Members(dev.ID)); got != 1 {
		t.Errorf("members after removal = %d, want 1", got)
	}

	// Room survives its membership going empty.
	r.RemoveMember(dev.ID, 2)
	if !r.RoomExists(dev.ID) {
		t.Error("room destroyed when members became empty")
	}
}

func TestListRoomsCreationOrderAndCounts(t *testing.T) {
	r := chat.NewRegistry()
	dev, _ := r.CreateRoom("Dev", "u1")
	_, _ = r.CreateRoom("Ops", "u2")
	_ = r.AddMember(dev.ID, 7)

	rooms := r.ListRooms()
	var names []string
	for _, rm := range rooms {
		names = append(names, rm.Name)
	}
	want := []string{chat.GeneralRoomName, "Dev", "Ops"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("rooms = %v, want %v", names, want)
		}
	}
	if rooms[1].UserCount != 1 {
		t.Errorf("Dev userCount = %d, want 1", rooms[1].UserCount)
	}
}
