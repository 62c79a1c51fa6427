package version

import (
	"fmt"
	"sort"

	"revisiond/internal/scene"
	"revisiond/internal/textdiff"
)

// GenerateDiff compares two snapshots scene by scene. Output is sparse:
// a scene appears only if it was added, removed, or its text changed.
// A scene present only in the second snapshot reports one whole-scene
// Insert span; present only in the first, one whole-scene Delete span;
// present in both with differing text, the semantic edit script.
func (e *Engine) GenerateDiff(manuscriptID, versionID1, versionID2 string) ([]DiffResult, error) {
	snap1, err := e.snapshots.Get(manuscriptID, versionID1)
	if err != nil {
		return nil, err
	}
	if snap1 == nil {
		return nil, &NotFoundError{Resource: "version", ID: versionID1}
	}
	snap2, err := e.snapshots.Get(manuscriptID, versionID2)
	if err != nil {
		return nil, err
	}
	if snap2 == nil {
		return nil, &NotFoundError{Resource: "version", ID: versionID2}
	}

	before := make(map[string]scene.Scene, len(snap1.Scenes))
	for _, s := range snap1.Scenes {
		before[s.ID] = s
	}
	after := make(map[string]scene.Scene, len(snap2.Scenes))
	for _, s := range snap2.Scenes {
		after[s.ID] = s
	}

	ids := sceneIDUnion(snap1.Scenes, snap2.Scenes)

	var results []DiffResult
	for _, id := range ids {
		o, inOld := before[id]
		n, inNew := after[id]

		switch {
		case inOld && inNew:
			if o.Text == n.Text {
				continue
			}
			spans := e.differ.Diff(o.Text, n.Text)
			if !textdiff.HasChanges(spans) {
				continue
			}
			added, removed := textdiff.WordDelta(spans)
			results = append(results, DiffResult{
				SceneID:          id,
				SceneLabel:       sceneLabel(n),
				Changes:          spans,
				ChangeCount:      countChanges(spans),
				AddedWordCount:   added,
				RemovedWordCount: removed,
			})
		case inNew:
			results = append(results, DiffResult{
				SceneID:          id,
				SceneLabel:       sceneLabel(n),
				Changes:          []textdiff.Span{{Kind: textdiff.Insert, Text: n.Text, Pos: 0}},
				ChangeCount:      1,
				AddedWordCount:   scene.CountWords(n.Text),
			})
		default:
			results = append(results, DiffResult{
				SceneID:          id,
				SceneLabel:       sceneLabel(o),
				Changes:          []textdiff.Span{{Kind: textdiff.Delete, Text: o.Text, Pos: 0}},
				ChangeCount:      1,
				RemovedWordCount: scene.CountWords(o.Text),
			})
		}
	}
	return results, nil
}

// sceneIDUnion orders the combined id set by manuscript position,
// preferring the second snapshot's position when a scene moved.
func sceneIDUnion(a, b []scene.Scene) []string {
	position := make(map[string]int, len(a)+len(b))
	for _, s := range a {
		position[s.ID] = s.IndexInManuscript
	}
	for _, s := range b {
		position[s.ID] = s.IndexInManuscript
	}

	ids := make([]string, 0, len(position))
	for id := range position {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if position[ids[i]] != position[ids[j]] {
			return position[ids[i]] < position[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func sceneLabel(s scene.Scene) string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Scene %d", s.IndexInManuscript+1)
}

func countChanges(spans []textdiff.Span) int {
	n := 0
	for _, s := range spans {
		if s.Kind != textdiff.Equal {
			n++
		}
	}
	return n
}
