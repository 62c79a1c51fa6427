package version

import (
	"sort"

	"revisiond/internal/scene"
)

// MergeBranches merges the source branch into the target branch.
//
// Conflict detection is ancestor-aware: the common ancestor of the two
// heads (found by walking parent_version_id chains) serves as the merge
// base. A scene conflicts only when both branches changed its text, in
// different ways, since the base. A scene changed on one side only takes
// that side's copy without conflict; a scene deleted on one side and
// untouched on the other stays deleted. Each conflict carries the target's
// copy prefilled as the proposed resolution (local wins by default, for
// the caller to override) — the engine never silently picks a winner.
//
// If any conflict exists the outcome carries the conflict list and nothing
// is written: the target branch pointer and the snapshot store are
// untouched. On a clean merge the snapshot is written before the branch
// pointer advances, so a snapshot write failure aborts the whole merge.
func (e *Engine) MergeBranches(manuscriptID, sourceBranchID, targetBranchID, description string) (*MergeOutcome, error) {
	if description == "" {
		return nil, &ValidationError{Field: "description", Message: "merge description is required"}
	}
	if sourceBranchID == targetBranchID {
		return nil, &ValidationError{Field: "branch_id", Message: "cannot merge a branch into itself"}
	}

	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	source, err := e.branches.Get(manuscriptID, sourceBranchID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &NotFoundError{Resource: "branch", ID: sourceBranchID}
	}
	target, err := e.branches.Get(manuscriptID, targetBranchID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &NotFoundError{Resource: "branch", ID: targetBranchID}
	}

	sourceHead, err := e.snapshots.Get(manuscriptID, source.CurrentVersionID)
	if err != nil {
		return nil, err
	}
	if sourceHead == nil {
		return nil, &NotFoundError{Resource: "version", ID: source.CurrentVersionID}
	}
	targetHead, err := e.snapshots.Get(manuscriptID, target.CurrentVersionID)
	if err != nil {
		return nil, err
	}
	if targetHead == nil {
		return nil, &NotFoundError{Resource: "version", ID: target.CurrentVersionID}
	}

	base, err := e.commonAncestor(manuscriptID, sourceHead, targetHead)
	if err != nil {
		return nil, err
	}

	merged, conflicts := mergeSceneSets(baseScenes(base), sourceHead.Scenes, targetHead.Scenes)
	if len(conflicts) > 0 {
		e.log.Info("merge blocked by conflicts",
			"manuscript", manuscriptID,
			"source", source.Name, "target", target.Name,
			"conflicts", len(conflicts))
		return &MergeOutcome{Conflicts: conflicts}, nil
	}

	snap := e.buildSnapshot(manuscriptID, merged, KindMerge, description, ContentHash(merged), targetHead)
	if err := e.snapshots.Put(snap); err != nil {
		// Snapshot write failed; the branch pointer was never touched.
		return nil, err
	}

	target.CurrentVersionID = snap.ID
	if err := e.branches.Put(target); err != nil {
		return nil, err
	}

	e.log.Info("branches merged",
		"manuscript", manuscriptID,
		"source", source.Name, "target", target.Name, "version", snap.ID)
	return &MergeOutcome{MergedVersionID: snap.ID}, nil
}

// commonAncestor walks both heads' parent chains and returns the first
// snapshot they share, or nil when the lineages never meet (then the merge
// degrades to a two-way comparison with an empty base). A chain ends when
// a parent was removed by retention cleanup.
func (e *Engine) commonAncestor(manuscriptID string, a, b *Snapshot) (*Snapshot, error) {
	seen := make(map[string]bool)
	for cur := a; cur != nil; {
		seen[cur.ID] = true
		if cur.ParentVersionID == "" {
			break
		}
		next, err := e.snapshots.Get(manuscriptID, cur.ParentVersionID)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	for cur := b; cur != nil; {
		if seen[cur.ID] {
			return cur, nil
		}
		if cur.ParentVersionID == "" {
			break
		}
		next, err := e.snapshots.Get(manuscriptID, cur.ParentVersionID)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return nil, nil
}

func baseScenes(base *Snapshot) []scene.Scene {
	if base == nil {
		return nil
	}
	return base.Scenes
}

// mergeSceneSets performs the three-way merge. remote is the source
// branch's scene set, local the target's. The merged set is ordered by
// manuscript index.
func mergeSceneSets(base, remote, local []scene.Scene) ([]scene.Scene, []ConflictResolution) {
	baseByID := indexScenes(base)
	remoteByID := indexScenes(remote)
	localByID := indexScenes(local)

	ids := make(map[string]bool, len(base)+len(remote)+len(local))
	for id := range baseByID {
		ids[id] = true
	}
	for id := range remoteByID {
		ids[id] = true
	}
	for id := range localByID {
		ids[id] = true
	}

	var merged []scene.Scene
	var conflicts []ConflictResolution
	for id := range ids {
		b, inBase := baseByID[id]
		r, inRemote := remoteByID[id]
		l, inLocal := localByID[id]

		switch {
		case inRemote && inLocal:
			switch {
			case r.Text == l.Text:
				merged = append(merged, scene.Clone(l))
			case inBase && r.Text == b.Text:
				// Only the target changed it.
				merged = append(merged, scene.Clone(l))
			case inBase && l.Text == b.Text:
				// Only the source changed it.
				merged = append(merged, scene.Clone(r))
			default:
				conflicts = append(conflicts, ConflictResolution{
					SceneID:         id,
					Type:            ConflictContent,
					LocalVersion:    scene.Clone(l),
					RemoteVersion:   scene.Clone(r),
					ResolvedVersion: scene.Clone(l),
					Resolution:      ResolutionLocal,
				})
			}
		case inLocal:
			// Absent from the source. Deleted there if the base had it
			// unchanged; kept if the target modified it meanwhile.
			if !inBase || l.Text != b.Text {
				merged = append(merged, scene.Clone(l))
			}
		case inRemote:
			if !inBase || r.Text != b.Text {
				merged = append(merged, scene.Clone(r))
			}
		}
	}

	scene.SortByIndex(merged)
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].SceneID < conflicts[j].SceneID
	})
	return merged, conflicts
}

func indexScenes(scenes []scene.Scene) map[string]scene.Scene {
	m := make(map[string]scene.Scene, len(scenes))
	for _, s := range scenes {
		m[s.ID] = s
	}
	return m
}
