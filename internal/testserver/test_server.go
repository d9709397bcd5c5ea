package testserver

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/llm"
	"github.com/rpggio/loreweave/internal/mcp"
	"github.com/rpggio/loreweave/internal/metrics"
	"github.com/rpggio/loreweave/internal/sqlite"
	"github.com/rpggio/loreweave/internal/transport"
)

// TestServer is the full HTTP stack over an in-memory database, with auth
// enabled and the stub generation provider.
type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	APIKey string
}

func New(t *testing.T, apiKey string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	m := metrics.New()
	docs := metrics.InstrumentStore(sqlite.NewDocumentStore(db), "sqlite", m)
	sessionSvc := session.NewService(docs, nil)
	generationSvc := generation.NewService(sessionSvc, llm.NewStub(), nil, m, nil, generation.Config{})

	mcpServer := mcp.NewServer(mcp.Config{
		Sessions:      sessionSvc,
		Generation:    generationSvc,
		Metrics:       m,
		Resolver:      transport.NewKeySet([]string{apiKey}),
		AuthEnabled:   apiKey != "",
		TransportMode: "http",
	})

	server := httptest.NewServer(transport.NewRouter(transport.Config{MCP: mcpServer, Metrics: m}))

	ts := &TestServer{Server: server, DB: db, APIKey: apiKey}
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return ts
}
