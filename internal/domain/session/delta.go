package session

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
)

// affectedWindow bounds how many downstream scenes a single edit flags.
// Flagging every later scene turns one tweak into "regenerate everything";
// the immediately following scenes are where the impact lands.
const affectedWindow = 2

// AnalyzeDelta diffs two versions of a scene detail over the semantically
// meaningful contextOut fields. Pure prose edits produce an empty delta.
// Changes to keyEvents or revealedInfo, and entries added to or removed from
// plotThreads, are hard; value-only changes inside stateChanges and
// npcRelationships are soft, while adding or removing keys there is hard.
// The function never mutates its inputs.
func AnalyzeDelta(oldDetail, newDetail *SceneDetail) Delta {
	var oldCtx, newCtx ContextOut
	if oldDetail != nil {
		oldCtx = oldDetail.ContextOut
	}
	if newDetail != nil {
		newCtx = newDetail.ContextOut
	}

	var keys []string
	hard := false
	record := func(key string, isHard bool) {
		keys = append(keys, key)
		hard = hard || isHard
	}

	if !slices.Equal(oldCtx.KeyEvents, newCtx.KeyEvents) {
		record("keyEvents", true)
	}
	if !slices.Equal(oldCtx.RevealedInfo, newCtx.RevealedInfo) {
		record("revealedInfo", true)
	}
	if entrySetChanged(oldCtx.PlotThreads, newCtx.PlotThreads) {
		record("plotThreads", true)
	}
	diffMapKeys("stateChanges", oldCtx.StateChanges, newCtx.StateChanges, record)
	diffMapKeys("npcRelationships", oldCtx.NPCRelationships, newCtx.NPCRelationships, record)

	if len(keys) == 0 {
		return Delta{}
	}
	severity := SeveritySoft
	if hard {
		severity = SeverityHard
	}
	return Delta{
		KeysChanged: keys,
		Summary:     fmt.Sprintf("changed %s", strings.Join(keys, ", ")),
		Severity:    severity,
	}
}

// diffMapKeys compares two contextOut maps key by key in sorted order. A key
// present on only one side is a hard change; a differing value is soft.
func diffMapKeys(prefix string, oldMap, newMap map[string]any, record func(key string, isHard bool)) {
	names := make(map[string]struct{}, len(oldMap)+len(newMap))
	for k := range oldMap {
		names[k] = struct{}{}
	}
	for k := range newMap {
		names[k] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		oldV, inOld := oldMap[k]
		newV, inNew := newMap[k]
		switch {
		case !inOld || !inNew:
			record(prefix+"."+k, true)
		case !reflect.DeepEqual(oldV, newV):
			record(prefix+"."+k, false)
		}
	}
}

// entrySetChanged compares two lists as multisets, so reordering alone does
// not count as a change.
func entrySetChanged(oldList, newList []string) bool {
	if len(oldList) != len(newList) {
		return true
	}
	counts := make(map[string]int, len(oldList))
	for _, v := range oldList {
		counts[v]++
	}
	for _, v := range newList {
		if counts[v] == 0 {
			return true
		}
		counts[v]--
	}
	return false
}

// affectedBy selects the downstream scenes an edit invalidates: the nearest
// scenes by order after the edited one, bounded to affectedWindow. Drafts are
// skipped, there is nothing generated in them to invalidate. Every affected
// scene carries the delta's severity.
func (d *Document) affectedBy(delta Delta, editedOrder int) []AffectedScene {
	if len(delta.KeysChanged) == 0 {
		return nil
	}
	reason := "upstream scene changed " + strings.Join(delta.KeysChanged, ", ")
	var affected []AffectedScene
	for _, sc := range d.scenesByOrder() {
		if sc.Order <= editedOrder || sc.Status == SceneDraft {
			continue
		}
		affected = append(affected, AffectedScene{SceneID: sc.ID, Reason: reason, Severity: delta.Severity})
		if len(affected) == affectedWindow {
			break
		}
	}
	return affected
}
