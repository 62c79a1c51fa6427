package version

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"revisiond/internal/kv"
	"revisiond/internal/scene"
	"revisiond/internal/textdiff"
)

// Defaults for retention and the diff time budget.
const (
	DefaultRetainAuto = 10
	DefaultKeepCount  = 50
)

// Options configures an Engine.
type Options struct {
	// RetainAuto is how many auto snapshots to keep per manuscript.
	// Zero means DefaultRetainAuto.
	RetainAuto int

	// DiffTimeout is the per-diff time budget. Zero means the textdiff
	// default.
	DiffTimeout time.Duration

	// Logger receives operational logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Engine orchestrates snapshot creation, branching, merging, diffing,
// restore, and retention over an injected key-value store. All writes to a
// given manuscript are serialized by a per-manuscript mutex; the host may
// drive AutoSave from a timer while the user triggers other operations.
type Engine struct {
	snapshots *SnapshotStore
	branches  *BranchStore
	differ    *textdiff.Differ
	log       *slog.Logger

	retainAuto int

	// Per-manuscript write locks.
	locks sync.Map // manuscript id -> *sync.Mutex

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewEngine builds an Engine over the given key-value store.
func NewEngine(store kv.Store, opts Options) *Engine {
	retain := opts.RetainAuto
	if retain <= 0 {
		retain = DefaultRetainAuto
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		snapshots:  NewSnapshotStore(store),
		branches:   NewBranchStore(store),
		differ:     &textdiff.Differ{Timeout: opts.DiffTimeout},
		log:        log,
		retainAuto: retain,
		now:        time.Now,
	}
}

func newID() string {
	return uuid.NewString()
}

func (e *Engine) lockManuscript(manuscriptID string) func() {
	value, _ := e.locks.LoadOrStore(manuscriptID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AutoSave captures the current scene set if it differs from the latest
// snapshot. It returns the new version id and saved=true on a write, or
// saved=false when the content hash matched and nothing was persisted.
// After a successful write, auto snapshots beyond the retention count are
// pruned oldest-first.
func (e *Engine) AutoSave(manuscriptID string, scenes []scene.Scene) (versionID string, saved bool, err error) {
	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	scenes = canonicalScenes(scenes)
	hash := ContentHash(scenes)

	latest, err := e.latestSnapshot(manuscriptID)
	if err != nil {
		return "", false, err
	}
	if latest != nil && latest.ContentHash == hash {
		e.log.Debug("autosave skipped, content unchanged",
			"manuscript", manuscriptID, "hash", hash[:8])
		return "", false, nil
	}

	snap := e.buildSnapshot(manuscriptID, scenes, KindAuto, "", hash, latest)
	if err := e.snapshots.Put(snap); err != nil {
		return "", false, err
	}
	e.log.Info("autosave created snapshot",
		"manuscript", manuscriptID, "version", snap.ID, "scenes", len(snap.Scenes))

	if err := e.pruneAutoSnapshots(manuscriptID); err != nil {
		return "", false, err
	}
	return snap.ID, true, nil
}

// CreateSavePoint always creates a Manual snapshot, even when the content
// hash matches the latest snapshot: an explicit save overrides dedup.
func (e *Engine) CreateSavePoint(manuscriptID string, scenes []scene.Scene, description string) (string, error) {
	if description == "" {
		return "", &ValidationError{Field: "description", Message: "save point description is required"}
	}

	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	scenes = canonicalScenes(scenes)

	latest, err := e.latestSnapshot(manuscriptID)
	if err != nil {
		return "", err
	}

	snap := e.buildSnapshot(manuscriptID, scenes, KindManual, description, ContentHash(scenes), latest)
	if err := e.snapshots.Put(snap); err != nil {
		return "", err
	}
	e.log.Info("save point created",
		"manuscript", manuscriptID, "version", snap.ID, "description", description)
	return snap.ID, nil
}

// RestoreToVersion returns a deep copy of a snapshot's scene set. Nothing
// in the store changes; if the caller wants the restored state persisted
// as current, they save it explicitly.
func (e *Engine) RestoreToVersion(manuscriptID, versionID string) ([]scene.Scene, error) {
	snap, err := e.snapshots.Get(manuscriptID, versionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &NotFoundError{Resource: "version", ID: versionID}
	}
	return scene.CloneAll(snap.Scenes), nil
}

// History returns a manuscript's snapshots sorted newest first.
func (e *Engine) History(manuscriptID string) ([]*Snapshot, error) {
	snaps, err := e.snapshots.ListByManuscript(manuscriptID)
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
	return snaps, nil
}

// Cleanup enforces retention: auto and non-auto snapshots are each kept to
// the newest keepCount/2, the rest deleted. A snapshot referenced by any
// branch's CurrentVersionID is never deleted, whatever its age or kind,
// so every branch head stays resolvable.
func (e *Engine) Cleanup(manuscriptID string, keepCount int) error {
	if keepCount <= 0 {
		keepCount = DefaultKeepCount
	}

	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	snaps, err := e.snapshots.ListByManuscript(manuscriptID)
	if err != nil {
		return err
	}
	branches, err := e.branches.ListByManuscript(manuscriptID)
	if err != nil {
		return err
	}

	protected := make(map[string]bool, len(branches))
	for _, b := range branches {
		protected[b.CurrentVersionID] = true
	}

	var auto, other []*Snapshot
	for _, s := range snaps {
		if s.Kind == KindAuto {
			auto = append(auto, s)
		} else {
			other = append(other, s)
		}
	}

	keepEach := keepCount / 2
	deleted := 0
	for _, group := range [][]*Snapshot{auto, other} {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.After(group[j].Timestamp)
		})
		for i := keepEach; i < len(group); i++ {
			if protected[group[i].ID] {
				continue
			}
			if err := e.snapshots.Delete(manuscriptID, group[i].ID); err != nil {
				return err
			}
			deleted++
		}
	}
	if deleted > 0 {
		e.log.Info("retention cleanup",
			"manuscript", manuscriptID, "deleted", deleted, "keep", keepCount)
	}
	return nil
}

// canonicalScenes clones a scene set and orders it by manuscript index.
// Hashes and snapshots are always taken over this canonical order, so the
// content hash is a function of content alone, never of the caller's
// slice order.
func canonicalScenes(scenes []scene.Scene) []scene.Scene {
	c := scene.CloneAll(scenes)
	scene.SortByIndex(c)
	return c
}

// buildSnapshot assembles a snapshot record from the current scene set.
// prev may be nil; it feeds the parent link and last-modified detection.
func (e *Engine) buildSnapshot(manuscriptID string, scenes []scene.Scene, kind Kind, description, hash string, prev *Snapshot) *Snapshot {
	cloned := scene.CloneAll(scenes)
	scene.SortByIndex(cloned)

	snap := &Snapshot{
		ID:           newID(),
		ManuscriptID: manuscriptID,
		Timestamp:    e.now(),
		Kind:         kind,
		Description:  description,
		Scenes:       cloned,
		Metadata: Metadata{
			TotalWordCount:      scene.TotalWordCount(cloned),
			SceneCount:          len(cloned),
			LastModifiedSceneID: lastModifiedSceneID(cloned, prev),
		},
		ContentHash: hash,
	}
	if prev != nil {
		snap.ParentVersionID = prev.ID
	}
	return snap
}

// lastModifiedSceneID finds the first scene that changed relative to the
// previous snapshot: either absent from the prior set or carrying a newer
// UpdatedAt than its prior copy.
func lastModifiedSceneID(current []scene.Scene, prev *Snapshot) string {
	if prev == nil {
		if len(current) > 0 {
			return current[0].ID
		}
		return ""
	}

	prior := make(map[string]scene.Scene, len(prev.Scenes))
	for _, s := range prev.Scenes {
		prior[s.ID] = s
	}
	for _, s := range current {
		old, ok := prior[s.ID]
		if !ok || s.UpdatedAt > old.UpdatedAt {
			return s.ID
		}
	}
	return ""
}

// latestSnapshot returns the newest snapshot of any kind, or nil when the
// manuscript has none.
func (e *Engine) latestSnapshot(manuscriptID string) (*Snapshot, error) {
	snaps, err := e.snapshots.ListByManuscript(manuscriptID)
	if err != nil {
		return nil, err
	}
	var latest *Snapshot
	for _, s := range snaps {
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	return latest, nil
}

// pruneAutoSnapshots keeps the newest retainAuto auto snapshots and
// deletes the rest. Manual, branch, and merge snapshots are untouched.
func (e *Engine) pruneAutoSnapshots(manuscriptID string) error {
	snaps, err := e.snapshots.ListByManuscript(manuscriptID)
	if err != nil {
		return err
	}

	var auto []*Snapshot
	for _, s := range snaps {
		if s.Kind == KindAuto {
			auto = append(auto, s)
		}
	}
	if len(auto) <= e.retainAuto {
		return nil
	}

	sort.Slice(auto, func(i, j int) bool {
		return auto[i].Timestamp.After(auto[j].Timestamp)
	})
	for _, s := range auto[e.retainAuto:] {
		if err := e.snapshots.Delete(manuscriptID, s.ID); err != nil {
			return err
		}
	}
	e.log.Debug("pruned auto snapshots",
		"manuscript", manuscriptID, "deleted", len(auto)-e.retainAuto)
	return nil
}
