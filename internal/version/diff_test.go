package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revisiond/internal/scene"
	"revisiond/internal/textdiff"
)

func TestGenerateDiffSingleSceneEdit(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)

	edited := manuscriptScenes()
	edited[1].Text = "Goodbye now"
	edited[1].UpdatedAt = 200
	v2, _, err := e.AutoSave("m1", edited)
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	require.Len(t, results, 1, "unchanged scenes are omitted")

	r := results[0]
	assert.Equal(t, "s2", r.SceneID)
	assert.Equal(t, 1, r.AddedWordCount)
	assert.Zero(t, r.RemovedWordCount)

	var inserted string
	for _, span := range r.Changes {
		if span.Kind == textdiff.Insert {
			inserted += span.Text
		}
	}
	assert.Equal(t, " now", inserted)
}

func TestGenerateDiffSceneAdded(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)

	grown := append(manuscriptScenes(), scene.Scene{
		ID: "s3", ManuscriptID: "m1", Title: "Epilogue", Text: "Years later they met", IndexInManuscript: 2,
	})
	v2, _, err := e.AutoSave("m1", grown)
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "s3", r.SceneID)
	assert.Equal(t, "Epilogue", r.SceneLabel)
	require.Len(t, r.Changes, 1)
	assert.Equal(t, textdiff.Insert, r.Changes[0].Kind)
	assert.Equal(t, "Years later they met", r.Changes[0].Text)
	assert.Equal(t, 4, r.AddedWordCount)
}

func TestGenerateDiffSceneRemoved(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)

	v2, _, err := e.AutoSave("m1", manuscriptScenes()[:1])
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "s2", r.SceneID)
	require.Len(t, r.Changes, 1)
	assert.Equal(t, textdiff.Delete, r.Changes[0].Kind)
	assert.Equal(t, "Goodbye", r.Changes[0].Text)
	assert.Equal(t, 1, r.RemovedWordCount)
}

func TestGenerateDiffIdenticalSnapshots(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	scenes := manuscriptScenes()

	v1, err := e.CreateSavePoint("m1", scenes, "first")
	require.NoError(t, err)
	v2, err := e.CreateSavePoint("m1", scenes, "second")
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGenerateDiffOrderedByPosition(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)

	edited := manuscriptScenes()
	edited[0].Text = "Hello there world"
	edited[1].Text = "Goodbye forever"
	v2, _, err := e.AutoSave("m1", edited)
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].SceneID)
	assert.Equal(t, "s2", results[1].SceneID)
}

func TestGenerateDiffSceneLabelFallback(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	// Untitled scenes are labeled by position.
	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)
	edited := manuscriptScenes()
	edited[0].Text = "changed"
	v2, _, err := e.AutoSave("m1", edited)
	require.NoError(t, err)

	results, err := e.GenerateDiff("m1", v1, v2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Scene 1", results[0].SceneLabel)
}

func TestGenerateDiffUnknownVersion(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	v1, _, err := e.AutoSave("m1", manuscriptScenes())
	require.NoError(t, err)

	_, err = e.GenerateDiff("m1", v1, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.GenerateDiff("m1", "missing", v1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
