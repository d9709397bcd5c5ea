package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/loreweave/internal/config"
	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/filestore"
	"github.com/rpggio/loreweave/internal/llm"
	"github.com/rpggio/loreweave/internal/mcp"
	"github.com/rpggio/loreweave/internal/memstore"
	"github.com/rpggio/loreweave/internal/metrics"
	"github.com/rpggio/loreweave/internal/redisstore"
	"github.com/rpggio/loreweave/internal/sqlite"
	"github.com/rpggio/loreweave/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Server.TransportMode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	docs, closeStore, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}
	if m != nil {
		docs = metrics.InstrumentStore(docs, cfg.Store.Driver, m)
	}

	sessionSvc := session.NewService(docs, logger)

	provider, err := llm.New(llm.Config{
		Provider:    cfg.Generation.Provider,
		Model:       cfg.Generation.Model,
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}, logger)
	if err != nil {
		logger.Error("failed to build generation provider", "error", err)
		os.Exit(1)
	}

	generationSvc := generation.NewService(sessionSvc, provider, llm.NewCounter(cfg.Generation.Model), m, logger, generation.Config{
		Timeout:            time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		ContextTokenBudget: cfg.Generation.ContextTokenBudget,
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Sessions:      sessionSvc,
		Generation:    generationSvc,
		Metrics:       m,
		Resolver:      transport.NewKeySet(cfg.Server.APIKeys),
		AuthEnabled:   cfg.Server.AuthEnabled,
		TransportMode: cfg.Server.TransportMode,
		Logger:        logger,
	})

	if cfg.Server.TransportMode == "stdio" {
		runStdioMode(logger, mcpServer)
	} else {
		runHTTPMode(logger, mcpServer, m, cfg.Server.Port)
	}
}

// openStore builds the document store named by cfg.Driver. The returned close
// function is nil for stores with nothing to release.
func openStore(ctx context.Context, cfg config.StoreConfig) (session.DocumentStore, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil, nil
	case "file":
		s, err := filestore.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "sqlite":
		if err := ensureDBDir(cfg.Path); err != nil {
			return nil, nil, err
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewDocumentStore(db), db.Close, nil
	case "redis":
		s, err := redisstore.Open(ctx, cfg.RedisURL, time.Duration(cfg.RedisTTLSeconds)*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport", "auth", "disabled")

	stdio := &sdkmcp.StdioTransport{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, stdio); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, mcpServer *sdkmcp.Server, m *metrics.Metrics, port int) {
	router := transport.NewRouter(transport.Config{
		MCP:     mcpServer,
		Metrics: m,
		Logger:  logger,
	})

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

type logFileWriter struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if err := ensureLogDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{path: path, file: file}
	if err := writer.truncateIfNeeded(); err != nil {
		return nil, nil, err
	}
	return writer, file, nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.truncateIfNeeded(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *logFileWriter) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}
	if size <= keepLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	if _, err := w.file.Seek(size-keepLogSizeBytes, io.SeekStart); err != nil {
		return err
	}
	n, err := w.file.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}
