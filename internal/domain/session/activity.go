package session

import "time"

// ActivityKind labels an entry in a session's activity trail.
type ActivityKind string

const (
	ActivityBlockAppended  ActivityKind = "block_appended"
	ActivityBlockLocked    ActivityKind = "block_locked"
	ActivityBlockUnlocked  ActivityKind = "block_unlocked"
	ActivityChainLocked    ActivityKind = "chain_locked"
	ActivityChainUnlocked  ActivityKind = "chain_unlocked"
	ActivitySceneLocked    ActivityKind = "scene_locked"
	ActivitySceneUnlocked  ActivityKind = "scene_unlocked"
	ActivitySceneEdited    ActivityKind = "scene_edited"
	ActivitySceneGenerated ActivityKind = "scene_generated"
	ActivityContextCleared ActivityKind = "context_cleared"
)

// maxActivityEntries bounds the in-document trail; the oldest entries roll off.
const maxActivityEntries = 50

// ActivityEntry records one mutation of the session document.
type ActivityEntry struct {
	Kind   ActivityKind `json:"kind"`
	Target string       `json:"target,omitempty"`
	Detail string       `json:"detail,omitempty"`
	At     time.Time    `json:"at"`
}

func (d *Document) recordActivity(kind ActivityKind, target, detail string, now time.Time) {
	d.Activity = append(d.Activity, ActivityEntry{Kind: kind, Target: target, Detail: detail, At: now})
	if len(d.Activity) > maxActivityEntries {
		d.Activity = d.Activity[len(d.Activity)-maxActivityEntries:]
	}
}
