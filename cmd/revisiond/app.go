package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"revisiond/internal/config"
	"revisiond/internal/kv"
	"revisiond/internal/logging"
	"revisiond/internal/scene"
	"revisiond/internal/version"
	"revisiond/internal/watcher"
)

// app wires the engine to its store and the manuscript file for one run.
type app struct {
	cfg            *config.Config
	log            *logging.Logger
	store          kv.Store
	engine         *version.Engine
	manuscriptPath string
	manuscriptID   string
}

func newApp(cfg *config.Config, log *logging.Logger, manuscriptPath, manuscriptID string) (*app, error) {
	var store kv.Store
	var err error
	switch cfg.Storage.Type {
	case "memory":
		store = kv.NewMemoryStore()
	default:
		store, err = kv.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
	}

	engine := version.NewEngine(store, version.Options{
		RetainAuto:  cfg.Autosave.RetainAuto,
		DiffTimeout: time.Duration(cfg.Diff.TimeoutMs) * time.Millisecond,
		Logger:      log.Logger,
	})

	return &app{
		cfg:            cfg,
		log:            log,
		store:          store,
		engine:         engine,
		manuscriptPath: manuscriptPath,
		manuscriptID:   manuscriptID,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadScenes reads the manuscript file the scene parser maintains: a JSON
// array of scene records.
func (a *app) loadScenes() (string, []scene.Scene, error) {
	data, err := os.ReadFile(a.manuscriptPath)
	if err != nil {
		return "", nil, fmt.Errorf("read manuscript: %w", err)
	}

	var scenes []scene.Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		return "", nil, fmt.Errorf("parse manuscript: %w", err)
	}
	scene.SortByIndex(scenes)

	id := a.manuscriptID
	if id == "" && len(scenes) > 0 {
		id = scenes[0].ManuscriptID
	}
	if id == "" {
		return "", nil, fmt.Errorf("manuscript id unknown: no -id flag and no manuscript_id in %s", a.manuscriptPath)
	}
	return id, scenes, nil
}

// cmdDaemon runs the autosave loop: a ticker at the configured interval,
// plus (when enabled) a debounced file watcher that saves as soon as the
// manuscript settles after an edit.
func (a *app) cmdDaemon() error {
	interval := time.Duration(a.cfg.Autosave.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var w *watcher.Watcher
	var watchEvents <-chan watcher.Event
	var watchErrors <-chan error
	if a.cfg.Watch.Enabled {
		var err error
		w, err = watcher.New(a.manuscriptPath, time.Duration(a.cfg.Watch.DebounceMs)*time.Millisecond)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		watchEvents = w.Events()
		watchErrors = w.Errors()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info("daemon started",
		"manuscript", a.manuscriptPath, "interval", interval, "watch", a.cfg.Watch.Enabled)

	// Save once at startup so a fresh manuscript gets its first snapshot
	// without waiting a full interval.
	a.autoSaveOnce()

	for {
		select {
		case <-ticker.C:
			a.autoSaveOnce()
		case <-watchEvents:
			a.autoSaveOnce()
		case err := <-watchErrors:
			a.log.Warn("watcher error", "error", err)
		case sig := <-sigs:
			a.log.Info("daemon stopping", "signal", sig.String())
			return nil
		}
	}
}

func (a *app) autoSaveOnce() {
	id, scenes, err := a.loadScenes()
	if err != nil {
		a.log.Warn("autosave skipped", "error", err)
		return
	}
	if _, _, err := a.engine.AutoSave(id, scenes); err != nil {
		a.log.Error("autosave failed", "manuscript", id, "error", err)
	}
}

func (a *app) cmdSave(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: revisiond save <description>")
	}
	id, scenes, err := a.loadScenes()
	if err != nil {
		return err
	}
	versionID, err := a.engine.CreateSavePoint(id, scenes, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Save point %s created\n", versionID)
	return nil
}

func (a *app) cmdBranch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: revisiond branch <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	id, scenes, err := a.loadScenes()
	if err != nil {
		return err
	}
	branchID, err := a.engine.CreateBranch(id, scenes, args[0], description, "")
	if err != nil {
		return err
	}
	fmt.Printf("Branch %q created (%s)\n", args[0], branchID)
	return nil
}

// resolveBranch accepts a branch name or id.
func (a *app) resolveBranch(manuscriptID, ref string) (*version.Branch, error) {
	branches, err := a.engine.ListBranches(manuscriptID)
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		if b.Name == ref || b.ID == ref {
			return b, nil
		}
	}
	return nil, fmt.Errorf("branch %q not found", ref)
}

func (a *app) cmdSwitch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: revisiond switch <branch>")
	}
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	branch, err := a.resolveBranch(id, args[0])
	if err != nil {
		return err
	}
	scenes, err := a.engine.SwitchToBranch(id, branch.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Switched to %q (%d scenes at head %s)\n",
		branch.Name, len(scenes), branch.CurrentVersionID)
	return nil
}

func (a *app) cmdMerge(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: revisiond merge <source> <target> <description>")
	}
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	source, err := a.resolveBranch(id, args[0])
	if err != nil {
		return err
	}
	target, err := a.resolveBranch(id, args[1])
	if err != nil {
		return err
	}

	outcome, err := a.engine.MergeBranches(id, source.ID, target.ID, args[2])
	if err != nil {
		return err
	}
	if outcome.HasConflicts() {
		fmt.Printf("Merge blocked: %d conflicting scene(s)\n", len(outcome.Conflicts))
		for _, c := range outcome.Conflicts {
			fmt.Printf("  %s (%s): resolve %s vs %s\n",
				c.SceneID, c.Type, source.Name, target.Name)
		}
		return nil
	}
	fmt.Printf("Merged %q into %q as %s\n", source.Name, target.Name, outcome.MergedVersionID)
	return nil
}

func (a *app) cmdLog() error {
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	snaps, err := a.engine.History(id)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		desc := s.Description
		if desc == "" && s.BranchName != "" {
			desc = "branch " + s.BranchName
		}
		fmt.Printf("%s  %-6s  %s  %4d scenes  %6d words  %s\n",
			s.ID[:8], s.Kind, s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Metadata.SceneCount, s.Metadata.TotalWordCount, desc)
	}
	return nil
}

// resolveVersion accepts a full version id or an unambiguous prefix.
func (a *app) resolveVersion(manuscriptID, ref string) (string, error) {
	snaps, err := a.engine.History(manuscriptID)
	if err != nil {
		return "", err
	}
	var match string
	for _, s := range snaps {
		if s.ID == ref {
			return s.ID, nil
		}
		if len(ref) >= 4 && len(s.ID) >= len(ref) && s.ID[:len(ref)] == ref {
			if match != "" {
				return "", fmt.Errorf("version prefix %q is ambiguous", ref)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("version %q not found", ref)
	}
	return match, nil
}

func (a *app) cmdDiff(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: revisiond diff <version1> <version2>")
	}
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	v1, err := a.resolveVersion(id, args[0])
	if err != nil {
		return err
	}
	v2, err := a.resolveVersion(id, args[1])
	if err != nil {
		return err
	}

	results, err := a.engine.GenerateDiff(id, v1, v2)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No scene changes")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s (+%d/-%d words, %d changes)\n",
			r.SceneLabel, r.AddedWordCount, r.RemovedWordCount, r.ChangeCount)
	}
	return nil
}

func (a *app) cmdRestore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: revisiond restore <version>")
	}
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	versionID, err := a.resolveVersion(id, args[0])
	if err != nil {
		return err
	}
	scenes, err := a.engine.RestoreToVersion(id, versionID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(scenes)
}

func (a *app) cmdCleanup(args []string) error {
	keep := a.cfg.Retention.KeepCount
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("keep count must be a positive integer, got %q", args[0])
		}
		keep = n
	}
	id, _, err := a.loadScenes()
	if err != nil {
		return err
	}
	if err := a.engine.Cleanup(id, keep); err != nil {
		return err
	}
	fmt.Printf("Cleanup done (keep %d)\n", keep)
	return nil
}

func (a *app) cmdStatus() error {
	id, scenes, err := a.loadScenes()
	if err != nil {
		return err
	}
	snaps, err := a.engine.History(id)
	if err != nil {
		return err
	}
	branches, err := a.engine.ListBranches(id)
	if err != nil {
		return err
	}

	fmt.Printf("Manuscript: %s (%d scenes, %d words)\n",
		id, len(scenes), scene.TotalWordCount(scenes))
	fmt.Printf("Snapshots:  %d\n", len(snaps))
	for _, b := range branches {
		marker := " "
		if b.IsActive {
			marker = "*"
		}
		fmt.Printf("  %s %-20s head %s\n", marker, b.Name, b.CurrentVersionID[:8])
	}
	return nil
}
