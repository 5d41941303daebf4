package chat_test

import (
	"errors"
	"testing"

	"github.com/roomrelay/roomrelay/internal/chat"
)

func TestRegisterAssignsUniqueUserIDs(t *testing.T) {
	table := chat.NewSessionTable()

	u1 := table.Register(1)
	u2 := table.Register(2)
	if u1 == "" || u2 == "" {
		t.Fatal("Register returned an empty user id")
	}
	if u1 == u2 {
		t.Error("two sessions share a user id")
	}

	s, ok := table.Get(1)
	if !ok {
		t.Fatal("registered session not found")
	}
	if s.Nickname != "" || s.CurrentRoomID != "" {
		t.Errorf("fresh session has nickname %q room %q, want unset", s.Nickname, s.CurrentRoomID)
	}
}

func TestUserIDsNotReusedAfterDisconnect(t *testing.T) {
	table := chat.NewSessionTable()

	first := table.Register(1)
	table.Remove(1)
	second := table.Register(1)
	if first == second {
		t.Error("user id reused after disconnect")
	}
}

func TestSetNicknameUniqueness(t *testing.T) {
	table := chat.NewSessionTable()
	table.Register(1)
	table.Register(2)
	table.Register(3)

	if err := table.SetNickname(1, "alice"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := table.SetNickname(2, "  alice  "); !errors.Is(err, chat.ErrDuplicate) {
		t.Errorf("trimmed collision: err = %v, want duplicate", err)
	}
	// Case-sensitive comparison: a different casing is a different name.
	if err := table.SetNickname(2, "Alice"); err != nil {
		t.Errorf("differently-cased nickname rejected: %v", err)
	}

	// Releasing a session frees its nickname.
	table.Remove(1)
	if err := table.SetNickname(3, "alice"); err != nil {
		t.Errorf("nickname still reserved after session removal: %v", err)
	}
}

func TestSetRoomAndGet(t *testing.T) {
	table := chat.NewSessionTable()
	table.Register(1)

	table.SetRoom(1, "room-1")
	if s, _ := table.Get(1); s.CurrentRoomID != "room-1" {
		t.Errorf("CurrentRoomID = %q, want room-1", s.CurrentRoomID)
	}

	table.SetRoom(1, "")
	if s, _ := table.Get(1); s.CurrentRoomID != "" {
		t.Errorf("CurrentRoomID = %q, want cleared", s.CurrentRoomID)
	}

	if _, ok := table.Get(42); ok {
		t.Error("Get returned a session for an unknown connection")
	}
}

func TestNicknamesSkipsUnjoinedSessions(t *testing.T) {
	table := chat.NewSessionTable()
	table.Register(1)
	table.Register(2)
	_ = table.SetNickname(1, "alice")

	names := table.Nicknames([]chat.ConnID{1, 2, 99})
	if len(names) != 1 || names[0] != "alice" {
		t.Errorf("Nicknames = %v, want [alice]", names)
	}

	active := table.ActiveNicknames()
	if _, ok := active["alice"]; !ok || len(active) != 1 {
		t.Errorf("ActiveNicknames = %v, want {alice}", active)
	}
}
