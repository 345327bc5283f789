package state

import (
	"errors"
	"fmt"
	"math"

	"nftescrow/storage"
)

// StateVersion identifies the expected on-disk schema layout. Increment it
// whenever breaking changes are made to the stored records.
const StateVersion uint32 = 1

// ErrStateVersionMismatch indicates the stored schema version does not match
// the version supported by the current binary.
var ErrStateVersionMismatch = errors.New("state: schema version mismatch")

// SetStateVersion records the provided schema version in the session.
func (s *Session) SetStateVersion(version uint32) error {
	return s.KVPut(stateVersionKeyBytes, uint64(version))
}

// StateVersion returns the stored schema version and whether it was present.
func (s *Session) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := s.KVGet(stateVersionKeyBytes, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion stamps a fresh database with StateVersion and rejects a
// database written by an incompatible binary.
func EnsureStateVersion(db storage.Database) error {
	if db == nil {
		return fmt.Errorf("state: database must not be nil")
	}
	session := NewManager(db).Begin()
	version, ok, err := session.StateVersion()
	if err != nil {
		session.Discard()
		return err
	}
	if !ok {
		if err := session.SetStateVersion(StateVersion); err != nil {
			session.Discard()
			return err
		}
		return session.Commit()
	}
	session.Discard()
	if version != StateVersion {
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
