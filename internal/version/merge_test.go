package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revisiond/internal/scene"
)

func threeScenes() []scene.Scene {
	return []scene.Scene{
		{ID: "s1", ManuscriptID: "m1", Title: "Opening", Text: "It was a dark night", IndexInManuscript: 0, UpdatedAt: 100},
		{ID: "s2", ManuscriptID: "m1", Title: "Middle", Text: "The plot thickens", IndexInManuscript: 1, UpdatedAt: 100},
		{ID: "s3", ManuscriptID: "m1", Title: "Ending", Text: "They all went home", IndexInManuscript: 2, UpdatedAt: 100},
	}
}

// forkedBranches writes a common save point and forks two branches from it,
// each holding its own scene set. Returns (sourceBranchID, targetBranchID).
func forkedBranches(t *testing.T, e *Engine, sourceScenes, targetScenes []scene.Scene) (string, string) {
	t.Helper()

	base, err := e.CreateSavePoint("m1", threeScenes(), "fork point")
	require.NoError(t, err)

	source, err := e.CreateBranch("m1", sourceScenes, "source", "", base)
	require.NoError(t, err)
	target, err := e.CreateBranch("m1", targetScenes, "target", "", base)
	require.NoError(t, err)
	return source, target
}

func TestMergeDisjointEdits(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	// Source: edits s2, deletes s3, adds s4.
	sourceScenes := threeScenes()[:2]
	sourceScenes[1].Text = "The plot thickens considerably"
	sourceScenes = append(sourceScenes, scene.Scene{
		ID: "s4", ManuscriptID: "m1", Title: "Epilogue", Text: "Years later", IndexInManuscript: 3,
	})

	// Target: edits s1 only.
	targetScenes := threeScenes()
	targetScenes[0].Text = "It was a bright morning"

	source, target := forkedBranches(t, e, sourceScenes, targetScenes)

	outcome, err := e.MergeBranches("m1", source, target, "merge the rewrite")
	require.NoError(t, err)
	require.False(t, outcome.HasConflicts())
	require.NotEmpty(t, outcome.MergedVersionID)

	snap, err := e.snapshots.Get("m1", outcome.MergedVersionID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, KindMerge, snap.Kind)

	byID := indexScenes(snap.Scenes)
	assert.Equal(t, "It was a bright morning", byID["s1"].Text, "target-only edit kept")
	assert.Equal(t, "The plot thickens considerably", byID["s2"].Text, "source-only edit kept")
	assert.NotContains(t, byID, "s3", "deletion on source propagates")
	assert.Contains(t, byID, "s4", "scene added on source arrives")
}

func TestMergeConflictOnDivergentEdits(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	sourceScenes := threeScenes()
	sourceScenes[0].Text = "It was a stormy evening"
	targetScenes := threeScenes()
	targetScenes[0].Text = "It was a bright morning"

	source, target := forkedBranches(t, e, sourceScenes, targetScenes)

	outcome, err := e.MergeBranches("m1", source, target, "try to merge")
	require.NoError(t, err)
	require.True(t, outcome.HasConflicts())
	assert.Empty(t, outcome.MergedVersionID)

	require.Len(t, outcome.Conflicts, 1)
	c := outcome.Conflicts[0]
	assert.Equal(t, "s1", c.SceneID)
	assert.Equal(t, ConflictContent, c.Type)
	assert.Equal(t, "It was a bright morning", c.LocalVersion.Text)
	assert.Equal(t, "It was a stormy evening", c.RemoteVersion.Text)
	assert.Equal(t, ResolutionLocal, c.Resolution)
	assert.Equal(t, c.LocalVersion.Text, c.ResolvedVersion.Text, "local wins by default")
}

func TestMergeConflictWritesNothing(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	sourceScenes := threeScenes()
	sourceScenes[0].Text = "one way"
	targetScenes := threeScenes()
	targetScenes[0].Text = "another way"

	source, target := forkedBranches(t, e, sourceScenes, targetScenes)

	before, err := e.History("m1")
	require.NoError(t, err)
	targetBefore, err := e.branches.Get("m1", target)
	require.NoError(t, err)

	outcome, err := e.MergeBranches("m1", source, target, "doomed merge")
	require.NoError(t, err)
	require.True(t, outcome.HasConflicts())

	after, err := e.History("m1")
	require.NoError(t, err)
	assert.Len(t, after, len(before), "a blocked merge must not create snapshots")

	targetAfter, err := e.branches.Get("m1", target)
	require.NoError(t, err)
	assert.Equal(t, targetBefore.CurrentVersionID, targetAfter.CurrentVersionID,
		"a blocked merge must not move the branch pointer")
}

func TestMergeAdvancesTargetPointer(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	sourceScenes := threeScenes()
	sourceScenes[1].Text = "rewritten on the branch"
	source, target := forkedBranches(t, e, sourceScenes, threeScenes())

	targetBefore, err := e.branches.Get("m1", target)
	require.NoError(t, err)

	outcome, err := e.MergeBranches("m1", source, target, "take the rewrite")
	require.NoError(t, err)
	require.False(t, outcome.HasConflicts())

	targetAfter, err := e.branches.Get("m1", target)
	require.NoError(t, err)
	assert.Equal(t, outcome.MergedVersionID, targetAfter.CurrentVersionID)

	// The merge snapshot descends from the target's previous head.
	snap, err := e.snapshots.Get("m1", outcome.MergedVersionID)
	require.NoError(t, err)
	assert.Equal(t, targetBefore.CurrentVersionID, snap.ParentVersionID)

	// The source branch is untouched.
	sourceAfter, err := e.branches.Get("m1", source)
	require.NoError(t, err)
	assert.NotEqual(t, outcome.MergedVersionID, sourceAfter.CurrentVersionID)
}

func TestMergeSnapshotLastModifiedAgainstTargetHead(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	sourceScenes := threeScenes()
	sourceScenes[1].Text = "The plot thickens considerably"
	sourceScenes[1].UpdatedAt = 200

	source, target := forkedBranches(t, e, sourceScenes, threeScenes())

	outcome, err := e.MergeBranches("m1", source, target, "take the rewrite")
	require.NoError(t, err)
	require.False(t, outcome.HasConflicts())

	snap, err := e.snapshots.Get("m1", outcome.MergedVersionID)
	require.NoError(t, err)
	assert.Equal(t, "s2", snap.Metadata.LastModifiedSceneID,
		"last-modified is derived against the target's prior head")
}

func TestMergeIdenticalEditsDoNotConflict(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	sourceScenes := threeScenes()
	sourceScenes[0].Text = "the same fix"
	targetScenes := threeScenes()
	targetScenes[0].Text = "the same fix"

	source, target := forkedBranches(t, e, sourceScenes, targetScenes)

	outcome, err := e.MergeBranches("m1", source, target, "convergent edits")
	require.NoError(t, err)
	assert.False(t, outcome.HasConflicts())
}

func TestMergeValidation(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	source, target := forkedBranches(t, e, threeScenes(), threeScenes())

	_, err := e.MergeBranches("m1", source, target, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.MergeBranches("m1", source, source, "self merge")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeUnknownBranch(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	_, target := forkedBranches(t, e, threeScenes(), threeScenes())

	_, err := e.MergeBranches("m1", "missing", target, "merge")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.MergeBranches("m1", target, "missing", "merge")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeSceneSetsWithoutBase(t *testing.T) {
	// With no common ancestor the merge degrades to a two-way comparison:
	// shared scenes with differing text conflict, one-sided scenes are kept.
	remote := []scene.Scene{
		{ID: "s1", Text: "remote text", IndexInManuscript: 0},
		{ID: "s2", Text: "only remote", IndexInManuscript: 1},
	}
	local := []scene.Scene{
		{ID: "s1", Text: "local text", IndexInManuscript: 0},
		{ID: "s3", Text: "only local", IndexInManuscript: 2},
	}

	merged, conflicts := mergeSceneSets(nil, remote, local)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "s1", conflicts[0].SceneID)

	byID := indexScenes(merged)
	assert.Contains(t, byID, "s2")
	assert.Contains(t, byID, "s3")
	assert.NotContains(t, byID, "s1", "conflicted scene is reported, not merged")
}

func TestMergeSceneSetsOrdering(t *testing.T) {
	base := []scene.Scene{
		{ID: "s1", Text: "a", IndexInManuscript: 0},
		{ID: "s2", Text: "b", IndexInManuscript: 1},
	}
	remote := []scene.Scene{
		{ID: "s1", Text: "a", IndexInManuscript: 0},
		{ID: "s2", Text: "b", IndexInManuscript: 1},
		{ID: "s0", Text: "prologue", IndexInManuscript: -1},
	}

	merged, conflicts := mergeSceneSets(base, remote, base)
	require.Empty(t, conflicts)
	require.Len(t, merged, 3)
	assert.Equal(t, "s0", merged[0].ID, "merged set is ordered by manuscript index")
}
