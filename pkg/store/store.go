// Package store persists interview sessions in an embedded Badger database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/meansend/ladder/pkg/models"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the durable side of the session layer. Snapshots, stimuli order,
// and interaction records each live under their own key prefix.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens the database at path. An empty path opens an in-memory
// database, used by tests.
func Open(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	seq, err := db.GetSequence([]byte("seq/interaction"), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: interaction sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the interaction sequence and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		slog.Warn("Releasing interaction sequence failed", "error", err)
	}
	return s.db.Close()
}

func sessionKey(id string) []byte { return []byte("session/" + id) }
func orderKey(id string) []byte   { return []byte("order/" + id) }

func interactionKey(sessionID string, id int64) []byte {
	return []byte(fmt.Sprintf("interaction/%s/%020d", sessionID, id))
}

func (s *Store) put(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

func (s *Store) get(key []byte, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// SaveSession writes a session snapshot.
func (s *Store) SaveSession(id string, state any) error {
	return s.put(sessionKey(id), state)
}

// LoadSession reads a session snapshot into state.
func (s *Store) LoadSession(id string, state any) error {
	return s.get(sessionKey(id), state)
}

// SaveOrder persists the stimuli presentation order of a session.
func (s *Store) SaveOrder(id string, order []string) error {
	return s.put(orderKey(id), order)
}

// LoadOrder returns the stored stimuli order, or ErrNotFound.
func (s *Store) LoadOrder(id string) ([]string, error) {
	var order []string
	if err := s.get(orderKey(id), &order); err != nil {
		return nil, err
	}
	return order, nil
}

// AppendInteraction stores one question/answer pair and returns it with its
// assigned ID. IDs start at 1 so 0 stays the "no interaction" sentinel in
// node traces.
func (s *Store) AppendInteraction(sessionID, question, answer string) (models.Interaction, error) {
	num, err := s.seq.Next()
	if err != nil {
		return models.Interaction{}, fmt.Errorf("store: next interaction id: %w", err)
	}
	it := models.Interaction{
		ID:             int64(num) + 1,
		SystemQuestion: question,
		UserAnswer:     answer,
		CreatedNS:      time.Now().UnixNano(),
	}
	if err := s.put(interactionKey(sessionID, it.ID), it); err != nil {
		return models.Interaction{}, err
	}
	return it, nil
}

// GetInteractions resolves interaction records by ID. Missing IDs are
// skipped.
func (s *Store) GetInteractions(sessionID string, ids []int64) ([]models.Interaction, error) {
	var out []models.Interaction
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(interactionKey(sessionID, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var it models.Interaction
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &it)
			}); err != nil {
				return err
			}
			out = append(out, it)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get interactions: %w", err)
	}
	return out, nil
}

// DeleteSession removes the snapshot, order, and every interaction of a
// session.
func (s *Store) DeleteSession(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(orderKey(id)); err != nil {
			return err
		}
		prefix := []byte("interaction/" + id + "/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// HasSession reports whether a snapshot exists for the ID.
func (s *Store) HasSession(id string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(sessionKey(id))
		return err
	})
	return err == nil
}

// badgerLogger routes Badger's internal logging through slog at debug level
// for the chatty parts.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}
