package version

import (
	"encoding/json"
	"fmt"

	"revisiond/internal/kv"
)

const branchKeyPrefix = "branch:"

func branchKey(manuscriptID, branchID string) string {
	return fmt.Sprintf("%s%s:%s", branchKeyPrefix, manuscriptID, branchID)
}

func branchManuscriptPrefix(manuscriptID string) string {
	return fmt.Sprintf("%s%s:", branchKeyPrefix, manuscriptID)
}

// BranchStore persists Branch records. Unlike snapshots, branch records
// are mutable: each Put is a full overwrite of the record, which is how
// CurrentVersionID and IsActive advance. Branches are never hard-deleted;
// retention cleanup only targets snapshots.
type BranchStore struct {
	store kv.Store
}

// NewBranchStore returns a BranchStore over the given key-value store.
func NewBranchStore(store kv.Store) *BranchStore {
	return &BranchStore{store: store}
}

// Put writes a branch record, overwriting any previous state.
func (s *BranchStore) Put(branch *Branch) error {
	key := branchKey(branch.ManuscriptID, branch.ID)
	data, err := json.Marshal(branch)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := s.store.Put(key, data); err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Get loads a branch, or returns (nil, nil) if it does not exist.
func (s *BranchStore) Get(manuscriptID, branchID string) (*Branch, error) {
	key := branchKey(manuscriptID, branchID)
	data, err := s.store.Get(key)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	if data == nil {
		return nil, nil
	}

	if err := validateRecord("branch", data); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	var branch Branch
	if err := json.Unmarshal(data, &branch); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return &branch, nil
}

// ListByManuscript loads every branch of a manuscript.
func (s *BranchStore) ListByManuscript(manuscriptID string) ([]*Branch, error) {
	prefix := branchManuscriptPrefix(manuscriptID)
	keys, err := s.store.ListKeys(prefix)
	if err != nil {
		return nil, &StorageError{Op: "list", Key: prefix, Err: err}
	}

	branches := make([]*Branch, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(key)
		if err != nil {
			return nil, &StorageError{Op: "get", Key: key, Err: err}
		}
		if data == nil {
			continue
		}
		if err := validateRecord("branch", data); err != nil {
			return nil, &StorageError{Op: "decode", Key: key, Err: err}
		}
		var branch Branch
		if err := json.Unmarshal(data, &branch); err != nil {
			return nil, &StorageError{Op: "decode", Key: key, Err: err}
		}
		branches = append(branches, &branch)
	}
	return branches, nil
}
