package version

import (
	"encoding/json"
	"fmt"

	"revisiond/internal/kv"
)

const snapshotKeyPrefix = "snapshot:"

func snapshotKey(manuscriptID, versionID string) string {
	return fmt.Sprintf("%s%s:%s", snapshotKeyPrefix, manuscriptID, versionID)
}

func snapshotManuscriptPrefix(manuscriptID string) string {
	return fmt.Sprintf("%s%s:", snapshotKeyPrefix, manuscriptID)
}

// SnapshotStore persists immutable Snapshot records in the key-value
// store. Snapshots are never updated in place; a record is written once
// and later either read or deleted by retention cleanup.
type SnapshotStore struct {
	store kv.Store
}

// NewSnapshotStore returns a SnapshotStore over the given key-value store.
func NewSnapshotStore(store kv.Store) *SnapshotStore {
	return &SnapshotStore{store: store}
}

// Put persists a snapshot record.
func (s *SnapshotStore) Put(snap *Snapshot) error {
	key := snapshotKey(snap.ManuscriptID, snap.ID)
	data, err := json.Marshal(snap)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := s.store.Put(key, data); err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Get loads a snapshot, or returns (nil, nil) if it does not exist. The
// record is schema-validated before decoding so corruption surfaces here
// rather than as a half-decoded snapshot downstream.
func (s *SnapshotStore) Get(manuscriptID, versionID string) (*Snapshot, error) {
	key := snapshotKey(manuscriptID, versionID)
	data, err := s.store.Get(key)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if data == nil {
		return nil, nil
	}

	if err := validateRecord("snapshot", data); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return &snap, nil
}

// ListByManuscript loads every snapshot of a manuscript, in no particular
// order. Callers sort by timestamp as needed.
func (s *SnapshotStore) ListByManuscript(manuscriptID string) ([]*Snapshot, error) {
	prefix := snapshotManuscriptPrefix(manuscriptID)
	keys, err := s.store.ListKeys(prefix)
	if err != nil {
		return nil, &StorageError{Op: "list", Key: prefix, Err: err}
	}

	snaps := make([]*Snapshot, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(key)
		if err != nil {
			return nil, &StorageError{Op: "get", Key: key, Err: err}
		}
		if data == nil {
			// Deleted between list and get; skip.
			continue
		}
		if err := validateRecord("snapshot", data); err != nil {
			return nil, &StorageError{Op: "decode", Key: key, Err: err}
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, &StorageError{Op: "decode", Key: key, Err: err}
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

// Delete removes a snapshot record.
func (s *SnapshotStore) Delete(manuscriptID, versionID string) error {
	key := snapshotKey(manuscriptID, versionID)
	if err := s.store.Delete(key); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
