// Package textdiff computes semantic text diffs with a bounded time budget.
//
// The heavy lifting is done by diff-match-patch (Myers diff plus a semantic
// cleanup pass that folds character-level noise into word-sized edits). The
// time budget is enforced by the library itself: when a pathological input
// pair exceeds the budget, DiffMain returns the best edit script found so
// far instead of blocking. That script is less precise but still valid —
// it always reconstructs both inputs — so callers on the editor's thread
// get a usable result no matter the manuscript size.
package textdiff

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultTimeout bounds a single diff computation.
const DefaultTimeout = 2 * time.Second

// Kind labels a span of the edit script.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

var kindNames = map[Kind]string{
	Equal:  "equal",
	Insert: "insert",
	Delete: "delete",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Span is one contiguous run of the edit script. Pos is the rune offset of
// the span: in the new text for Equal and Insert spans, in the old text for
// Delete spans.
type Span struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	Pos  int    `json:"pos"`
}

// Differ computes edit scripts between two strings.
type Differ struct {
	// Timeout is the per-diff time budget. Zero means DefaultTimeout;
	// negative disables the budget entirely.
	Timeout time.Duration
}

// New returns a Differ with the default time budget.
func New() *Differ {
	return &Differ{Timeout: DefaultTimeout}
}

// Diff computes the edit script that transforms a into b.
//
// Round-trip guarantee: concatenating the Equal and Delete spans in order
// yields a; concatenating the Equal and Insert spans yields b. This holds
// for partial scripts produced under time pressure as well.
func (d *Differ) Diff(a, b string) []Span {
	dmp := diffmatchpatch.New()
	switch {
	case d.Timeout < 0:
		dmp.DiffTimeout = 0
	case d.Timeout == 0:
		dmp.DiffTimeout = DefaultTimeout
	default:
		dmp.DiffTimeout = d.Timeout
	}

	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	spans := make([]Span, 0, len(diffs))
	posOld, posNew := 0, 0
	for _, df := range diffs {
		n := len([]rune(df.Text))
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			spans = append(spans, Span{Kind: Equal, Text: df.Text, Pos: posNew})
			posOld += n
			posNew += n
		case diffmatchpatch.DiffInsert:
			spans = append(spans, Span{Kind: Insert, Text: df.Text, Pos: posNew})
			posNew += n
		case diffmatchpatch.DiffDelete:
			spans = append(spans, Span{Kind: Delete, Text: df.Text, Pos: posOld})
			posOld += n
		}
	}
	return spans
}

// HasChanges reports whether the script contains any non-Equal span.
func HasChanges(spans []Span) bool {
	for _, s := range spans {
		if s.Kind != Equal {
			return true
		}
	}
	return false
}

// WordDelta counts whitespace-delimited tokens inside Insert and Delete
// spans. Equal spans contribute nothing.
func WordDelta(spans []Span) (added, removed int) {
	for _, s := range spans {
		switch s.Kind {
		case Insert:
			added += len(strings.Fields(s.Text))
		case Delete:
			removed += len(strings.Fields(s.Text))
		}
	}
	return added, removed
}

// Apply reconstructs both sides of the edit script: the old text from
// Equal+Delete spans, the new text from Equal+Insert spans.
func Apply(spans []Span) (oldText, newText string) {
	var ob, nb strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case Equal:
			ob.WriteString(s.Text)
			nb.WriteString(s.Text)
		case Insert:
			nb.WriteString(s.Text)
		case Delete:
			ob.WriteString(s.Text)
		}
	}
	return ob.String(), nb.String()
}
