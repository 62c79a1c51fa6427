// Package version implements the manuscript version-control engine:
// deduplicated snapshots, manual save points, named branches, semantic
// diffs between snapshots, merge with conflict detection, and retention.
package version

import (
	"time"

	"revisiond/internal/scene"
	"revisiond/internal/textdiff"
)

// Kind classifies how a snapshot came to exist.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindManual Kind = "manual"
	KindBranch Kind = "branch"
	KindMerge  Kind = "merge"
)

// Metadata summarizes a snapshot's scene set.
type Metadata struct {
	TotalWordCount      int    `json:"total_word_count"`
	SceneCount          int    `json:"scene_count"`
	LastModifiedSceneID string `json:"last_modified_scene_id,omitempty"`
}

// Snapshot is an immutable full capture of a manuscript's scene set at one
// point in time. Once persisted it is never modified; its lifecycle ends
// only when retention cleanup deletes it.
type Snapshot struct {
	ID              string        `json:"id"`
	ManuscriptID    string        `json:"manuscript_id"`
	Timestamp       time.Time     `json:"timestamp"`
	Kind            Kind          `json:"kind"`
	Description     string        `json:"description,omitempty"`
	BranchName      string        `json:"branch_name,omitempty"`
	ParentVersionID string        `json:"parent_version_id,omitempty"`
	Scenes          []scene.Scene `json:"scenes"`
	Metadata        Metadata      `json:"metadata"`
	ContentHash     string        `json:"content_hash"`
}

// Branch is a named, mutable pointer into a manuscript's snapshot lineage.
// CurrentVersionID advances as the branch receives new snapshots; at most
// one branch per manuscript is active, enforced by the engine.
type Branch struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ManuscriptID     string    `json:"manuscript_id"`
	CreatedAt        time.Time `json:"created_at"`
	Description      string    `json:"description,omitempty"`
	CurrentVersionID string    `json:"current_version_id"`
	ParentVersionID  string    `json:"parent_version_id,omitempty"`
	IsActive         bool      `json:"is_active"`
}

// ConflictType classifies a merge conflict.
type ConflictType string

const (
	ConflictContent  ConflictType = "content"
	ConflictOrder    ConflictType = "order"
	ConflictMetadata ConflictType = "metadata"
)

// Resolution names which side of a conflict wins.
type Resolution string

const (
	ResolutionLocal  Resolution = "local"
	ResolutionRemote Resolution = "remote"
	ResolutionMerged Resolution = "merged"
)

// ConflictResolution describes one conflicting scene found during a merge.
// It is transient: produced by conflict detection, consumed by the caller,
// never persisted. ResolvedVersion defaults to the target branch's copy
// with ResolutionLocal so a UI can offer one-click acceptance; the engine
// itself never picks a winner.
type ConflictResolution struct {
	SceneID         string       `json:"scene_id"`
	Type            ConflictType `json:"conflict_type"`
	LocalVersion    scene.Scene  `json:"local_version"`
	RemoteVersion   scene.Scene  `json:"remote_version"`
	ResolvedVersion scene.Scene  `json:"resolved_version"`
	Resolution      Resolution   `json:"resolution"`
}

// MergeOutcome is the tagged result of MergeBranches: either a merged
// version id, or the conflicts that blocked the merge (in which case no
// writes happened).
type MergeOutcome struct {
	MergedVersionID string               `json:"merged_version_id,omitempty"`
	Conflicts       []ConflictResolution `json:"conflicts,omitempty"`
}

// HasConflicts reports whether the merge was blocked by conflicts.
func (o *MergeOutcome) HasConflicts() bool {
	return len(o.Conflicts) > 0
}

// DiffResult reports the changes to a single scene between two snapshots.
// Unchanged scenes never appear in diff output.
type DiffResult struct {
	SceneID          string          `json:"scene_id"`
	SceneLabel       string          `json:"scene_label"`
	Changes          []textdiff.Span `json:"changes"`
	ChangeCount      int             `json:"change_count"`
	AddedWordCount   int             `json:"added_word_count"`
	RemovedWordCount int             `json:"removed_word_count"`
}
