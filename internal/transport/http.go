package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/loreweave/internal/metrics"
)

const defaultSessionTimeout = 30 * time.Minute

// Config wires the router's collaborators.
type Config struct {
	MCP            *sdkmcp.Server
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	SessionTimeout time.Duration
}

// NewRouter builds the HTTP router: the streamable MCP endpoint plus health
// and metrics. MCP auth happens inside the MCP server's middleware, where the
// bearer header is visible per protocol method.
func NewRouter(cfg Config) *chi.Mux {
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}

	r := chi.NewRouter()
	r.Use(requestLogging(cfg.Logger))

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return cfg.MCP },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: timeout,
		},
	)
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return r
}
