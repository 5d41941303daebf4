// Package store persists chat messages in BadgerDB. The store is the durable
// append-only log behind the router: keys order by (room, timestamp, id) so
// history pages and catch-up syncs are plain prefix scans.
package store

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/roomrelay/roomrelay/internal/chat"
)

const (
	messageKeyPrefix = "msg:"
	idSequenceKey    = "seq:message"

	// sequenceBandwidth is how many ids a Badger sequence leases at a time.
	// Unused ids in a lease are lost on restart, which keeps ids strictly
	// increasing without requiring them to be contiguous.
	sequenceBandwidth = 128
)

// MessageStore implements chat.MessageStore on top of a BadgerDB handle. The
// caller owns the handle; Close releases only the id sequence.
type MessageStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// New creates a message store over an open BadgerDB.
func New(db *badger.DB) (*MessageStore, error) {
	seq, err := db.GetSequence([]byte(idSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	return &MessageStore{db: db, seq: seq}, nil
}

// Close releases the id sequence lease.
func (s *MessageStore) Close() error {
	return s.seq.Release()
}

// Append durably writes one message and returns it with its assigned id.
// Ids are strictly increasing in insertion order for the life of the store.
func (s *MessageStore) Append(roomID, userID, nickname, content, timestamp string) (chat.StoredMessage, error) {
	n, err := s.seq.Next()
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("next message id: %w", err)
	}

	msg := chat.StoredMessage{
		ID:        int64(n) + 1,
		RoomID:    roomID,
		UserID:    userID,
		Nickname:  nickname,
		Content:   content,
		Timestamp: timestamp,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("marshal message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, msg.Timestamp, msg.ID), data)
	})
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("write message: %w", err)
	}
	return msg, nil
}

// Page returns one window of a room's history. The scan walks keys newest
// first (the store-native direction for "latest N"), applies offset and
// limit, then reverses so the returned page is ascending by timestamp.
func (s *MessageStore) Page(roomID string, limit, offset int) ([]chat.StoredMessage, error) {
	if limit <= 0 {
		return []chat.StoredMessage{}, nil
	}

	prefix := roomPrefix(roomID)
	var msgs []chat.StoredMessage

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key under the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(msgs) == limit {
				break
			}
			var msg chat.StoredMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return fmt.Errorf("read message: %w", err)
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Since returns every message in the room with timestamp strictly greater
// than since, ascending. since must use the router's timestamp layout so the
// comparison can ride on key order.
func (s *MessageStore) Since(roomID, since string) ([]chat.StoredMessage, error) {
	prefix := roomPrefix(roomID)
	var msgs []chat.StoredMessage

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys for timestamps equal to since sort after prefix+since because
		// of the ":<id>" suffix, so filter on the stored timestamp.
		seekKey := append(append([]byte{}, prefix...), since...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var msg chat.StoredMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return fmt.Errorf("read message: %w", err)
			}
			if msg.Timestamp <= since {
				continue
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Count returns the number of messages stored for a room using a key-only
// scan.
func (s *MessageStore) Count(roomID string) (int, error) {
	prefix := roomPrefix(roomID)
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func roomPrefix(roomID string) []byte {
	var b strings.Builder
	b.WriteString(messageKeyPrefix)
	b.WriteString(roomID)
	b.WriteString(":")
	return []byte(b.String())
}

func messageKey(roomID, timestamp string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%020d", messageKeyPrefix, roomID, timestamp, id))
}
