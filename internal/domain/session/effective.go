package session

import "sort"

// sortScenes orders scene details by order, ties broken by ID.
func sortScenes(scenes []*SceneDetail) {
	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].Order != scenes[j].Order {
			return scenes[i].Order < scenes[j].Order
		}
		return scenes[i].ID < scenes[j].ID
	})
}

// buildEffective merges the locked upstream artifacts a generation step at
// upToOrder is allowed to consume: the locked background and characters
// blocks plus the contextOut of every locked scene with a smaller order.
// Array fields concatenate in order; map fields apply in order with later
// scenes winning per key. Every locked predecessor contributes; the merge is
// never windowed to the last few scenes.
func buildEffective(sessionID string, doc *Document, upToOrder int) *EffectiveContext {
	eff := &EffectiveContext{
		SessionID: sessionID,
		UpToOrder: upToOrder,
		Versions:  make(map[string]int64),
	}
	if doc.Locks[BlockBackground] {
		eff.Background = doc.Blocks.Background
		eff.Versions[counterBackground] = doc.Versions.Background
	}
	if doc.Locks[BlockCharacters] {
		eff.Characters = doc.Blocks.Characters
		eff.Versions[counterCharacters] = doc.Versions.Characters
	}
	for _, chain := range doc.Blocks.Chains {
		if chain.Status == ChainLocked {
			eff.Versions[counterMacro] = doc.Versions.MacroSnapshot
			break
		}
	}
	for _, sc := range doc.scenesByOrder() {
		if sc.Order >= upToOrder || sc.Status != SceneLocked {
			continue
		}
		mergeContextOut(&eff.Priors, sc.ContextOut)
		eff.BuiltFrom = append(eff.BuiltFrom, sc.ID)
		eff.Versions[sceneCounterKey(sc.ID)] = doc.Versions.Scenes[sc.ID]
	}
	return eff
}

func mergeContextOut(dst *ContextOut, src ContextOut) {
	dst.KeyEvents = append(dst.KeyEvents, src.KeyEvents...)
	dst.RevealedInfo = append(dst.RevealedInfo, src.RevealedInfo...)
	dst.PlotThreads = append(dst.PlotThreads, src.PlotThreads...)
	dst.PlayerDecisions = append(dst.PlayerDecisions, src.PlayerDecisions...)
	dst.StateChanges = overlay(dst.StateChanges, src.StateChanges)
	dst.NPCRelationships = overlay(dst.NPCRelationships, src.NPCRelationships)
	dst.EnvironmentalState = overlay(dst.EnvironmentalState, src.EnvironmentalState)
}

// overlay copies src keys over dst without mutating src.
func overlay(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// IsStale reports whether any counter recorded in uses differs from its
// current value. Keys absent from current compare against zero.
func IsStale(uses, current map[string]int64) bool {
	return len(staleKeys(uses, current)) > 0
}

// staleKeys returns the uses keys whose recorded value no longer matches,
// sorted for stable output.
func staleKeys(uses, current map[string]int64) []string {
	var keys []string
	for k, v := range uses {
		if current[k] != v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
