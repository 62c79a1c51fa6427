// Package scene defines the manuscript scene model consumed by the
// version-control engine.
//
// Scenes are produced by the external scene parser and arrive fully
// annotated (chapter boundaries, hooks, POV). The engine never re-derives
// those annotations; it only clones scenes into snapshots and hands clones
// back out on restore.
package scene

import (
	"sort"
	"strings"
)

// Scene is one ordered unit of a manuscript.
type Scene struct {
	ID                   string `json:"id"`
	ManuscriptID         string `json:"manuscript_id"`
	Title                string `json:"title,omitempty"`
	Text                 string `json:"text"`
	WordCount            int    `json:"word_count"`
	IndexInManuscript    int    `json:"index_in_manuscript"`
	ChapterNumber        int    `json:"chapter_number,omitempty"`
	SceneNumberInChapter int    `json:"scene_number_in_chapter,omitempty"`
	IsOpening            bool   `json:"is_opening,omitempty"`
	IsChapterEnd         bool   `json:"is_chapter_end,omitempty"`
	OpensWithHook        bool   `json:"opens_with_hook,omitempty"`
	EndsWithHook         bool   `json:"ends_with_hook,omitempty"`
	POVCharacter         string `json:"pov_character,omitempty"`
	Location             string `json:"location,omitempty"`
	TimeMarker           string `json:"time_marker,omitempty"`
	CreatedAt            int64  `json:"created_at"`
	UpdatedAt            int64  `json:"updated_at"`
}

// Clone returns a deep copy of the scene.
func Clone(s Scene) Scene {
	// All fields are value types; a struct copy is a full copy.
	return s
}

// CloneAll returns a deep copy of the scene slice.
func CloneAll(scenes []Scene) []Scene {
	if scenes == nil {
		return nil
	}
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	return out
}

// SortByIndex sorts scenes in place by their manuscript position.
// The sort is stable so equal indices keep their incoming order.
func SortByIndex(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].IndexInManuscript < scenes[j].IndexInManuscript
	})
}

// CountWords counts whitespace-delimited tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// TotalWordCount sums CountWords over all scene texts.
func TotalWordCount(scenes []Scene) int {
	total := 0
	for _, s := range scenes {
		total += CountWords(s.Text)
	}
	return total
}
