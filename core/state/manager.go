package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftescrow/storage"
)

var errSessionClosed = errors.New("state: session already committed or discarded")

// Manager owns the persistent key-value store backing escrow and registry
// records.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a write session. Reads fall back to the database while writes
// stay buffered until Commit.
func (m *Manager) Begin() *Session {
	return &Session{db: m.db, writes: make(map[string][]byte)}
}

// Session is a buffered overlay over the database. A session is single-use:
// after Commit or Discard every method fails.
type Session struct {
	db     storage.Database
	writes map[string][]byte
	closed bool
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (s *Session) get(hashed []byte) ([]byte, error) {
	if s.closed {
		return nil, errSessionClosed
	}
	if value, ok := s.writes[string(hashed)]; ok {
		return value, nil
	}
	value, err := s.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (s *Session) put(hashed []byte, value []byte) error {
	if s.closed {
		return errSessionClosed
	}
	s.writes[string(hashed)] = value
	return nil
}

// Commit atomically writes every buffered key.
func (s *Session) Commit() error {
	if s.closed {
		return errSessionClosed
	}
	keys := make([]string, 0, len(s.writes))
	for k := range s.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := s.db.NewBatch()
	for _, k := range keys {
		batch.Put([]byte(k), s.writes[k])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.closed = true
	s.writes = nil
	return nil
}

// Discard drops every buffered write.
func (s *Session) Discard() {
	s.closed = true
	s.writes = nil
}

// KVPut stores the RLP encoding of value under the supplied key.
func (s *Session) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (s *Session) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := s.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
