package version

import (
	"revisiond/internal/scene"
)

// CreateBranch captures the current scenes as a Branch snapshot and
// creates a branch record pointing at it. The new branch starts inactive;
// activation is an explicit SwitchToBranch. parentVersionID may be empty,
// in which case the manuscript's latest snapshot is the fork point.
func (e *Engine) CreateBranch(manuscriptID string, scenes []scene.Scene, name, description, parentVersionID string) (string, error) {
	if name == "" {
		return "", &ValidationError{Field: "branch_name", Message: "branch name is required"}
	}

	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	scenes = canonicalScenes(scenes)

	existing, err := e.branches.ListByManuscript(manuscriptID)
	if err != nil {
		return "", err
	}
	for _, b := range existing {
		if b.Name == name {
			return "", &ValidationError{Field: "branch_name", Message: "branch " + name + " already exists"}
		}
	}

	latest, err := e.latestSnapshot(manuscriptID)
	if err != nil {
		return "", err
	}

	// The fork point feeds both the parent link and last-modified
	// detection, so an explicit parent older than the latest snapshot must
	// be loaded rather than approximated by the trunk head.
	forkPoint := latest
	if parentVersionID == "" {
		if latest != nil {
			parentVersionID = latest.ID
		}
	} else if latest == nil || parentVersionID != latest.ID {
		parent, err := e.snapshots.Get(manuscriptID, parentVersionID)
		if err != nil {
			return "", err
		}
		if parent == nil {
			return "", &NotFoundError{Resource: "version", ID: parentVersionID}
		}
		forkPoint = parent
	}

	snap := e.buildSnapshot(manuscriptID, scenes, KindBranch, description, ContentHash(scenes), forkPoint)
	snap.BranchName = name
	if err := e.snapshots.Put(snap); err != nil {
		return "", err
	}

	branch := &Branch{
		ID:               newID(),
		Name:             name,
		ManuscriptID:     manuscriptID,
		CreatedAt:        e.now(),
		Description:      description,
		CurrentVersionID: snap.ID,
		ParentVersionID:  parentVersionID,
		IsActive:         false,
	}
	if err := e.branches.Put(branch); err != nil {
		return "", err
	}

	e.log.Info("branch created",
		"manuscript", manuscriptID, "branch", name, "id", branch.ID, "head", snap.ID)
	return branch.ID, nil
}

// SwitchToBranch makes the target branch the manuscript's single active
// branch and returns the scene set at its head. Every other branch is
// deactivated.
func (e *Engine) SwitchToBranch(manuscriptID, branchID string) ([]scene.Scene, error) {
	unlock := e.lockManuscript(manuscriptID)
	defer unlock()

	target, err := e.branches.Get(manuscriptID, branchID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.ManuscriptID != manuscriptID {
		return nil, &NotFoundError{Resource: "branch", ID: branchID}
	}

	head, err := e.snapshots.Get(manuscriptID, target.CurrentVersionID)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, &NotFoundError{Resource: "version", ID: target.CurrentVersionID}
	}

	all, err := e.branches.ListByManuscript(manuscriptID)
	if err != nil {
		return nil, err
	}

	// The kv store offers no multi-record atomicity. Deactivate first and
	// activate the target last, so a write failure anywhere in the
	// sequence can leave zero active branches but never two.
	for _, b := range all {
		if b.ID == branchID || !b.IsActive {
			continue
		}
		b.IsActive = false
		if err := e.branches.Put(b); err != nil {
			return nil, err
		}
	}
	if !target.IsActive {
		target.IsActive = true
		if err := e.branches.Put(target); err != nil {
			return nil, err
		}
	}

	e.log.Info("switched branch",
		"manuscript", manuscriptID, "branch", target.Name, "head", target.CurrentVersionID)
	return scene.CloneAll(head.Scenes), nil
}

// ListBranches returns all branch records for a manuscript.
func (e *Engine) ListBranches(manuscriptID string) ([]*Branch, error) {
	return e.branches.ListByManuscript(manuscriptID)
}
