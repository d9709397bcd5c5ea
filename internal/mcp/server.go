// Package mcp exposes the session and generation services as an MCP server:
// one tool per operation, doc resources for the authoring workflow, and
// middleware for auth and traffic logging.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/metrics"
)

const serverVersion = "0.1.0"

// SessionService defines the session operations needed by MCP.
type SessionService interface {
	GetContext(ctx context.Context, sessionID string) (*session.Document, error)
	AppendBlock(ctx context.Context, sessionID string, blockType session.BlockType, payload json.RawMessage) (*session.Document, error)
	SetBlockLock(ctx context.Context, sessionID string, blockType session.BlockType, locked bool) (*session.Document, error)
	LockChain(ctx context.Context, sessionID, chainID string) (*session.ChainLockResult, error)
	UnlockChain(ctx context.Context, sessionID, chainID string) (*session.ChainLockResult, error)
	LockScene(ctx context.Context, sessionID, sceneID string) (*session.SceneLockResult, error)
	UnlockScene(ctx context.Context, sessionID, sceneID string) (*session.SceneLockResult, error)
	BuildEffectiveContext(ctx context.Context, sessionID string, upToOrder int) (*session.EffectiveContext, error)
	AnalyzeEdit(ctx context.Context, sessionID, sceneID string, newDetail *session.SceneDetail) (*session.Delta, error)
	ApplyEdit(ctx context.Context, sessionID, sceneID string, newDetail *session.SceneDetail) (*session.EditResult, error)
	CheckStaleness(ctx context.Context, sessionID, sceneID string) (*session.StalenessResult, error)
	ClearContext(ctx context.Context, sessionID string) (*session.Document, error)
	ListSessions(ctx context.Context) ([]session.Info, error)
	RecentActivity(ctx context.Context, sessionID string) ([]session.ActivityEntry, error)
}

// GenerationService defines the generation operations needed by MCP.
type GenerationService interface {
	Run(ctx context.Context, req generation.RunRequest) (*generation.RunResult, error)
}

// Config contains server configuration.
type Config struct {
	Sessions      SessionService
	Generation    GenerationService
	Metrics       *metrics.Metrics
	Resolver      KeyResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "loreweave",
		Version: serverVersion,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio mode: always disable auth (local dev only)
	if cfg.TransportMode == "stdio" {
		server.AddReceivingMiddleware(noAuthMiddleware("local"))
	} else {
		if cfg.AuthEnabled {
			server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
		} else {
			server.AddReceivingMiddleware(noAuthMiddleware("local"))
		}
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Sessions, cfg.Generation, cfg.Metrics)

	return server
}
