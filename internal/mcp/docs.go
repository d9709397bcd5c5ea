package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `loreweave manages layered campaign context for RPG authoring: Background → Characters → Macro chain → Scene details.

Core concepts (keep this mental model small):
- Session: one campaign authoring workspace, identified by the session_id argument on every tool.
- Block: a typed document section (background, characters, macro_chain, scene_detail, player_hooks, world_seeds, style_prefs, custom).
- Lock: marks a layer as editorially final. Locked content is what downstream generation reads; it also bumps that layer's version counter.
- Effective context: locked background + locked characters + the accumulated contextOut of locked scenes before the target order.
- Staleness: a generated scene records the counter values it consumed ("uses"). When upstream counters move past them, the scene is stale.

Rules of engagement (the lock-and-advance loop):
1) Foundation: generate_step(background), review, edit via append_block if needed, then set_block_lock(background, locked=true).
2) Cast: generate_step(characters) (requires locked background), review, lock the same way.
3) Skeleton: generate_step(macro_chain) (requires both locks), review scene order, then lock_chain.
4) Per scene, in order: generate_step(scene_detail) for scene N (requires scene N-1 locked), review, edit with apply_scene_edit, then lock_scene.
5) Before editing an earlier scene, unlock it; downstream scenes are marked needs_regen automatically.
6) Use check_scene_staleness before trusting a previously generated scene; regenerate when it reports stale.

Editing discipline:
- analyze_scene_edit is a dry run: it classifies the change (hard/soft) without writing.
- apply_scene_edit persists the edit and marks downstream scenes needs_regen when the change is hard.
- Prose-only changes never invalidate anything. Changes to keyEvents, revealedInfo, or plotThreads always do.

Docs (read on demand):
- loreweave://docs/workflow (the full authoring playbook)
- loreweave://docs/block-types (payload shapes per block type)
- loreweave://docs/locking (lock state machine, counters, cascades)
- loreweave://docs/editing (edit severity rules and regeneration)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "loreweave://docs/workflow",
		Name:        "docs_workflow",
		Title:       "Authoring workflow",
		Description: "The lock-and-advance playbook: which tool to call at each pipeline stage.",
		Content: `# Authoring workflow

The pipeline builds a campaign in layers. Each layer is generated, reviewed, and locked before the next layer reads it.

## 1) Start or resume a session

Call ` + "`get_context(session_id)`" + `. A missing session is created empty, so there is no separate create call. The response includes the document version, which later writes use as ` + "`base_version`" + ` for conflict detection.

## 2) Foundation: background and characters

1. ` + "`generate_step(session_id, step=background)`" + ` with optional ` + "`guidance`" + `.
2. Review. To revise, either regenerate or write directly with ` + "`append_block(type=background, data=...)`" + `.
3. ` + "`set_block_lock(type=background, locked=true)`" + `.
4. Repeat for ` + "`characters`" + `. Generation refuses to run until the background is locked.

## 3) Skeleton: the macro chain

1. ` + "`generate_step(step=macro_chain)`" + ` (requires background and characters locked). The result lands as a draft.
2. Review scene order and objectives. Regenerate freely while the chain is a draft.
3. ` + "`lock_chain(chain_id)`" + `. This freezes the skeleton and bumps the chain version.

## 4) Detail: scenes in order

For scene N (starting at 1):

1. ` + "`generate_step(step=scene_detail, scene_id=...)`" + `. Requires the chain locked and scene N-1 locked; the server assembles the effective context itself.
2. Review the narrative and the ` + "`contextOut`" + ` block. Adjust with ` + "`apply_scene_edit`" + `.
3. ` + "`lock_scene(scene_id)`" + `. Only then does scene N+1 become generatable.

## 5) Going back

- To rework a locked scene: ` + "`unlock_scene`" + `, edit, re-lock. All later scenes are marked ` + "`needs_regen`" + `.
- To rework the skeleton: ` + "`unlock_chain`" + `. Every scene in that chain is marked ` + "`needs_regen`" + `.
- To rework the foundation: ` + "`set_block_lock(locked=false)`" + `, edit, re-lock. Scene invalidation is surfaced through staleness rather than a cascade, so run ` + "`check_scene_staleness`" + ` on scenes you care about.

## 6) Housekeeping

- ` + "`list_sessions`" + ` enumerates stored sessions.
- ` + "`get_activity`" + ` shows the recent mutation trail for one session.
- ` + "`clear_context`" + ` empties a session but keeps its version monotonic.
`,
	},
	{
		URI:         "loreweave://docs/block-types",
		Name:        "docs_block_types",
		Title:       "Block types",
		Description: "Payload shape and validation rules for each block type accepted by append_block.",
		Content: `# Block types

` + "`append_block`" + ` accepts a ` + "`type`" + ` and a JSON ` + "`data`" + ` payload. Payloads are validated on write; a failed validation returns SCHEMA_VALIDATION_FAILED and nothing is stored.

## background

Single object. ` + "`synopsis`" + ` is required.

- ` + "`title`" + `, ` + "`synopsis`" + `, ` + "`setting`" + `, ` + "`era`" + `, ` + "`tone`" + `
- ` + "`locations[]`" + `, ` + "`factions[]`" + `, ` + "`hooks[]`" + `

Appending replaces the existing background. Rejected while locked.

## characters

Object with a ` + "`cast`" + ` array. Each entry needs a ` + "`name`" + `; ids are assigned when omitted.

- per character: ` + "`id`" + `, ` + "`name`" + `, ` + "`role`" + `, ` + "`goal`" + `, ` + "`secret`" + `, ` + "`bond`" + `, ` + "`flaw`" + `

Appending replaces the whole cast. Rejected while locked.

## macro_chain

Object with ` + "`title`" + ` and ` + "`scenes[]`" + `, each scene carrying ` + "`id`" + `, ` + "`title`" + `, ` + "`objective`" + `. Scene order is the array position, starting at 1; an explicit order field is ignored on input. Chains land as drafts and must be locked with ` + "`lock_chain`" + ` before scene generation.

## scene_detail

Written by generation or ` + "`apply_scene_edit`" + `, not normally by ` + "`append_block`" + `. Carries ` + "`title`" + `, ` + "`narrative`" + `, and ` + "`contextOut`" + `:

- ` + "`keyEvents[]`" + `: facts that later scenes build on
- ` + "`revealedInfo[]`" + `: information now known to the players
- ` + "`plotThreads[]`" + `: threads opened or advanced
- ` + "`playerDecisions[]`" + `, ` + "`stateChanges{}`" + `, ` + "`npcRelationships{}`" + `, ` + "`environmentalState{}`" + `

## player_hooks, world_seeds, style_prefs

Side-channel notes kept alongside the pipeline blocks and returned by ` + "`get_context`" + `; fold them into ` + "`guidance`" + ` when generating. ` + "`player_hooks`" + ` accepts a single hook object or an array. ` + "`world_seeds`" + ` lists are capped; oldest entries fall off. ` + "`style_prefs`" + ` merges field by field, and ` + "`doNots`" + ` entries accumulate.

## custom

Free-form JSON under a caller-chosen key. Stored and returned verbatim, never merged into generation context.
`,
	},
	{
		URI:         "loreweave://docs/locking",
		Name:        "docs_locking",
		Title:       "Locking and versions",
		Description: "The lock state machine, version counters, and what each unlock invalidates.",
		Content: `# Locking and versions

## Lock operations are strict

Locking something already locked fails with CONFLICT, as does unlocking something not locked. There is no idempotent mode; a failed lock call tells you your view of the session is out of date.

## Counters

Each layer has a version counter that increments on lock:

- ` + "`backgroundV`" + `: bumped by ` + "`set_block_lock(background, locked=true)`" + `
- ` + "`charactersV`" + `: bumped by ` + "`set_block_lock(characters, locked=true)`" + `
- ` + "`macroSnapshotV`" + `: bumped by ` + "`lock_chain`" + `
- ` + "`sceneV:<scene_id>`" + `: bumped by ` + "`lock_scene`" + `

Unlocking never changes a counter. A scene generated against ` + "`backgroundV=1`" + ` stays valid until the background is re-locked at 2.

## Scene locking preconditions

` + "`lock_scene`" + ` requires:

1. the scene exists with status ` + "`generated`" + ` or ` + "`edited`" + `, and
2. the scene at the previous order position is locked (scene 1 has no predecessor).

Violations return CONFLICT with a recovery hint. This is what enforces in-order advancement.

## Unlock cascades

- ` + "`unlock_scene(K)`" + `: the scene becomes ` + "`edited`" + `; every scene in the same chain with order > K becomes ` + "`needs_regen`" + `. The response lists the affected scene ids.
- ` + "`unlock_chain`" + `: the chain returns to ` + "`draft`" + `; every scene generated from it becomes ` + "`needs_regen`" + `.
- Unlocking background or characters cascades nothing. Downstream impact shows up in ` + "`check_scene_staleness`" + ` after the re-lock bumps the counter.

## Staleness

Every generated scene snapshots the counters it consumed. ` + "`check_scene_staleness`" + ` compares that snapshot against the current counters and reports the keys that moved. Stale does not mean broken; it means the scene was built from content that has since been revised.
`,
	},
	{
		URI:         "loreweave://docs/editing",
		Name:        "docs_editing",
		Title:       "Scene editing",
		Description: "How edits are classified hard or soft, and which scenes get marked for regeneration.",
		Content: `# Scene editing

## Two tools, one analyzer

- ` + "`analyze_scene_edit`" + ` classifies a proposed edit without writing anything. Call it to preview the blast radius.
- ` + "`apply_scene_edit`" + ` persists the edit, records the same classification, and marks downstream scenes when the change is hard.

Both compare the stored scene against your proposed ` + "`title`" + `, ` + "`narrative`" + `, and ` + "`contextOut`" + `. Locked scenes reject both calls; unlock first.

## Severity rules

- Changes to ` + "`keyEvents`" + `, ` + "`revealedInfo`" + `, or ` + "`plotThreads`" + ` are **hard**. These arrays are what later scenes were built on.
- For the state maps (` + "`stateChanges`" + `, ` + "`npcRelationships`" + `): changing a value under an existing key is **soft**; adding or removing a key is **hard**.
- ` + "`environmentalState`" + ` and ` + "`playerDecisions`" + ` flow into later contexts but are not diffed; edit them freely.
- ` + "`title`" + ` and ` + "`narrative`" + ` changes are prose: never hard, never soft, never invalidating.

## What hard means

A hard edit marks the next scenes in the chain (bounded window, not the whole tail) as ` + "`needs_regen`" + `. The response lists the changed paths, e.g. ` + "`keyEvents`" + ` or ` + "`stateChanges.trust_level_host`" + `, and the scenes marked.

A soft edit reports the affected scenes with soft severity but marks nothing; regeneration is your call.

## Suggested loop

1. ` + "`analyze_scene_edit`" + ` with the proposed content.
2. If hard and the downstream scenes matter, decide: narrow the edit, or accept regeneration.
3. ` + "`apply_scene_edit`" + `.
4. Regenerate each ` + "`needs_regen`" + ` scene in order with ` + "`generate_step`" + `, re-reviewing and re-locking as you go.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
