package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/metrics"
)

// Tool inputs. One struct per argument shape; the SDK derives the input
// schema from the json and jsonschema tags.

type sessionArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

type appendBlockArgs struct {
	SessionID string          `json:"session_id" jsonschema:"session identifier"`
	Type      string          `json:"type" jsonschema:"block type: background, characters, macro_chain, scene_detail, player_hooks, world_seeds, style_prefs, or custom"`
	Data      json.RawMessage `json:"data" jsonschema:"block payload; shape depends on type, see loreweave://docs/block-types"`
}

type setBlockLockArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Type      string `json:"type" jsonschema:"singleton block type to lock or unlock (background, characters, player_hooks, world_seeds, style_prefs, custom)"`
	Locked    bool   `json:"locked" jsonschema:"true to lock, false to unlock"`
}

type chainArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	ChainID   string `json:"chain_id" jsonschema:"macro chain identifier"`
}

type sceneArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	SceneID   string `json:"scene_id" jsonschema:"scene identifier"`
}

type buildContextArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	UpToOrder int    `json:"up_to_order" jsonschema:"target scene order; context includes locked scenes with order strictly below this"`
}

type sceneEditArgs struct {
	SessionID  string             `json:"session_id" jsonschema:"session identifier"`
	SceneID    string             `json:"scene_id" jsonschema:"scene identifier"`
	Title      string             `json:"title,omitempty" jsonschema:"proposed scene title"`
	Narrative  string             `json:"narrative,omitempty" jsonschema:"proposed scene narrative"`
	ContextOut session.ContextOut `json:"contextOut" jsonschema:"proposed downstream context block; compared field by field against the stored scene"`
}

type generateStepArgs struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Step      string `json:"step" jsonschema:"pipeline step: background, characters, macro_chain, or scene_detail"`
	ChainID   string `json:"chain_id,omitempty" jsonschema:"chain to generate a scene from; optional, resolved from the scene when omitted"`
	SceneID   string `json:"scene_id,omitempty" jsonschema:"target scene for scene_detail; ignored for other steps"`
	Guidance  string `json:"guidance,omitempty" jsonschema:"free-form authorial direction passed to the generation prompt"`
}

// Tool outputs not already shaped by a domain result type.

type documentResult struct {
	SessionID string            `json:"session_id" jsonschema:"session identifier"`
	Document  *session.Document `json:"document" jsonschema:"full session document after the operation"`
}

type listSessionsResult struct {
	Sessions []session.Info `json:"sessions" jsonschema:"stored sessions, sorted by id"`
}

type activityResult struct {
	SessionID string                  `json:"session_id" jsonschema:"session identifier"`
	Entries   []session.ActivityEntry `json:"entries" jsonschema:"recent mutations, oldest first"`
}

type pingResult struct {
	Status  string `json:"status" jsonschema:"always ok"`
	Version string `json:"version" jsonschema:"server version"`
}

// toolHandler wraps a domain call in the shared tool plumbing: domain errors
// become structured APIError payloads on an IsError result, and every call is
// counted per operation.
func toolHandler[In, Out any](name string, m *metrics.Metrics, fn func(context.Context, In) (Out, error)) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, Out, error) {
		out, err := fn(ctx, in)
		if err != nil {
			var zero Out
			m.RecordOperation(name, "error")
			return errorResult(err), zero, nil
		}
		m.RecordOperation(name, "ok")
		return nil, out, nil
	}
}

// errorResult renders a mapped domain error as a tool error so clients see
// the code and recovery hint instead of a bare protocol failure.
func errorResult(err error) *sdkmcp.CallToolResult {
	apiErr := mapError(err)
	data, merr := json.Marshal(apiErr)
	if merr != nil {
		data = fmt.Appendf(nil, `{"code":%q,"message":%q}`, apiErr.Code, apiErr.Message)
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func (in sceneEditArgs) detail() *session.SceneDetail {
	return &session.SceneDetail{
		Title:      in.Title,
		Narrative:  in.Narrative,
		ContextOut: in.ContextOut,
	}
}

// registerTools wires every tool to its domain operation.
func registerTools(server *sdkmcp.Server, sessions SessionService, gen GenerationService, m *metrics.Metrics) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_context",
		Description: "Get the full session document: blocks, locks, version counters, and activity. Creates the session empty if it does not exist.",
	}, toolHandler("get_context", m, func(ctx context.Context, in sessionArgs) (documentResult, error) {
		doc, err := sessions.GetContext(ctx, in.SessionID)
		if err != nil {
			return documentResult{}, err
		}
		return documentResult{SessionID: in.SessionID, Document: doc}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "append_block",
		Description: "Write a typed block into the session under its merge policy. Locked blocks reject writes. See loreweave://docs/block-types for payload shapes.",
	}, toolHandler("append_block", m, func(ctx context.Context, in appendBlockArgs) (documentResult, error) {
		blockType, err := session.ParseBlockType(in.Type)
		if err != nil {
			return documentResult{}, err
		}
		doc, err := sessions.AppendBlock(ctx, in.SessionID, blockType, in.Data)
		if err != nil {
			return documentResult{}, err
		}
		return documentResult{SessionID: in.SessionID, Document: doc}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_block_lock",
		Description: "Lock or unlock a singleton block. Locking background or characters bumps its version counter; locking an already locked block fails.",
	}, toolHandler("set_block_lock", m, func(ctx context.Context, in setBlockLockArgs) (documentResult, error) {
		blockType, err := session.ParseBlockType(in.Type)
		if err != nil {
			return documentResult{}, err
		}
		doc, err := sessions.SetBlockLock(ctx, in.SessionID, blockType, in.Locked)
		if err != nil {
			return documentResult{}, err
		}
		return documentResult{SessionID: in.SessionID, Document: doc}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "lock_chain",
		Description: "Lock a macro chain, freezing its scene skeleton and bumping the macro snapshot counter. Fails if already locked.",
	}, toolHandler("lock_chain", m, func(ctx context.Context, in chainArgs) (session.ChainLockResult, error) {
		res, err := sessions.LockChain(ctx, in.SessionID, in.ChainID)
		if err != nil {
			return session.ChainLockResult{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "unlock_chain",
		Description: "Unlock a macro chain for editing. Every scene generated from it is marked needs_regen; the response lists them.",
	}, toolHandler("unlock_chain", m, func(ctx context.Context, in chainArgs) (session.ChainLockResult, error) {
		res, err := sessions.UnlockChain(ctx, in.SessionID, in.ChainID)
		if err != nil {
			return session.ChainLockResult{}, err
		}
		m.RecordInvalidated("chain_unlock", len(res.AffectedScenes))
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "lock_scene",
		Description: "Lock a generated or edited scene, bumping its version counter. Requires the previous scene in the chain to be locked.",
	}, toolHandler("lock_scene", m, func(ctx context.Context, in sceneArgs) (session.SceneLockResult, error) {
		res, err := sessions.LockScene(ctx, in.SessionID, in.SceneID)
		if err != nil {
			return session.SceneLockResult{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "unlock_scene",
		Description: "Unlock a locked scene for editing. Every later scene in the chain is marked needs_regen; the response lists them.",
	}, toolHandler("unlock_scene", m, func(ctx context.Context, in sceneArgs) (session.SceneLockResult, error) {
		res, err := sessions.UnlockScene(ctx, in.SessionID, in.SceneID)
		if err != nil {
			return session.SceneLockResult{}, err
		}
		m.RecordInvalidated("scene_unlock", len(res.AffectedScenes))
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "build_context",
		Description: "Assemble the effective context for a scene at the given order: locked background, locked characters, and the accumulated contextOut of locked earlier scenes.",
	}, toolHandler("build_context", m, func(ctx context.Context, in buildContextArgs) (session.EffectiveContext, error) {
		res, err := sessions.BuildEffectiveContext(ctx, in.SessionID, in.UpToOrder)
		if err != nil {
			return session.EffectiveContext{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "analyze_scene_edit",
		Description: "Dry-run a scene edit: classify the change hard or soft and list the downstream scenes it would affect. Writes nothing.",
	}, toolHandler("analyze_scene_edit", m, func(ctx context.Context, in sceneEditArgs) (session.Delta, error) {
		res, err := sessions.AnalyzeEdit(ctx, in.SessionID, in.SceneID, in.detail())
		if err != nil {
			return session.Delta{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "apply_scene_edit",
		Description: "Replace a scene's content. Hard changes (keyEvents, revealedInfo, plotThreads, or map key add/remove) mark downstream scenes needs_regen. Locked scenes reject edits.",
	}, toolHandler("apply_scene_edit", m, func(ctx context.Context, in sceneEditArgs) (session.EditResult, error) {
		res, err := sessions.ApplyEdit(ctx, in.SessionID, in.SceneID, in.detail())
		if err != nil {
			return session.EditResult{}, err
		}
		m.RecordInvalidated("edit", len(res.MarkedScenes))
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "check_scene_staleness",
		Description: "Compare the version counters a scene was generated against with the session's current counters. Stale means upstream content was re-locked since.",
	}, toolHandler("check_scene_staleness", m, func(ctx context.Context, in sceneArgs) (session.StalenessResult, error) {
		res, err := sessions.CheckStaleness(ctx, in.SessionID, in.SceneID)
		if err != nil {
			return session.StalenessResult{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "clear_context",
		Description: "Empty the session: blocks, locks, and counters reset. The document version keeps increasing and the activity trail records the reset.",
	}, toolHandler("clear_context", m, func(ctx context.Context, in sessionArgs) (documentResult, error) {
		doc, err := sessions.ClearContext(ctx, in.SessionID)
		if err != nil {
			return documentResult{}, err
		}
		return documentResult{SessionID: in.SessionID, Document: doc}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List every stored session with its document version and last update time.",
	}, toolHandler("list_sessions", m, func(ctx context.Context, _ struct{}) (listSessionsResult, error) {
		infos, err := sessions.ListSessions(ctx)
		if err != nil {
			return listSessionsResult{}, err
		}
		return listSessionsResult{Sessions: infos}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_activity",
		Description: "Get the session's recent mutation trail: appends, locks, unlocks, edits, and generations, oldest first.",
	}, toolHandler("get_activity", m, func(ctx context.Context, in sessionArgs) (activityResult, error) {
		entries, err := sessions.RecentActivity(ctx, in.SessionID)
		if err != nil {
			return activityResult{}, err
		}
		return activityResult{SessionID: in.SessionID, Entries: entries}, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "generate_step",
		Description: "Run one pipeline generation step. Each step requires its upstream layers locked: characters needs background, macro_chain needs both, scene_detail needs the chain and the previous scene.",
	}, toolHandler("generate_step", m, func(ctx context.Context, in generateStepArgs) (generation.RunResult, error) {
		res, err := gen.Run(ctx, generation.RunRequest{
			SessionID: in.SessionID,
			Step:      generation.StepKind(in.Step),
			ChainID:   in.ChainID,
			SceneID:   in.SceneID,
			Guidance:  in.Guidance,
		})
		if err != nil {
			return generation.RunResult{}, err
		}
		return *res, nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "ping",
		Description: "Health check. Returns ok and the server version.",
	}, toolHandler("ping", m, func(_ context.Context, _ struct{}) (pingResult, error) {
		return pingResult{Status: "ok", Version: serverVersion}, nil
	}))
}
