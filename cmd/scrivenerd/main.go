// Command scrivenerd runs the journal tool server: a JSON-RPC 2.0 surface
// over WebSocket and stateless HTTP, backed by SQLite.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scrivener-app/scrivener/audit"
	"github.com/scrivener-app/scrivener/auth"
	"github.com/scrivener-app/scrivener/config"
	"github.com/scrivener-app/scrivener/executor"
	"github.com/scrivener-app/scrivener/format"
	"github.com/scrivener-app/scrivener/integrations"
	"github.com/scrivener-app/scrivener/internal/logctx"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
	reslib "github.com/scrivener-app/scrivener/resources"
	"github.com/scrivener-app/scrivener/server"
	"github.com/scrivener-app/scrivener/sessions"
	"github.com/scrivener-app/scrivener/store"
	"github.com/scrivener-app/scrivener/summarize"
	"github.com/scrivener-app/scrivener/tools"
)

const version = "1.0.0"

func main() {
	log := slog.New(logctx.Handler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := store.New(db)
	if err != nil {
		return err
	}
	sink, err := audit.NewSQLiteSink(db, log)
	if err != nil {
		return err
	}

	verifier, err := auth.NewJWTVerifier(cfg.TokenSecret)
	if err != nil {
		return err
	}

	sessionStore := sessions.NewStore(log)
	toolCatalog := registry.NewTools(nil)
	promptCatalog := registry.NewPrompts(nil)
	resourceCatalog := registry.NewResources(nil)

	formatter := format.New(format.OSFileReader{}, log)
	invoker := integrations.NewHTTPInvoker(nil, nil, log)
	exec := executor.New(toolCatalog, formatter, sink, invoker, log)

	tools.RegisterJournalTools(toolCatalog, st)
	tools.RegisterMemoryTools(toolCatalog, st)
	tools.RegisterSummarize(toolCatalog, exec, summarize.Extractive{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var library *reslib.Library
	if cfg.ResourceDir != "" {
		library, err = reslib.NewLibrary(cfg.ResourceDir, resourceCatalog, log)
		if err != nil {
			return err
		}
		go func() {
			if err := library.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("resource watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := server.New(server.Deps{
		Sessions:          sessionStore,
		Tools:             toolCatalog,
		Prompts:           promptCatalog,
		Resources:         resourceCatalog,
		Library:           library,
		Executor:          exec,
		Verifier:          verifier,
		ServerInfo:        mcp.ImplementationInfo{Name: "scrivener", Version: version},
		PageSize:          cfg.PageSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		OnShutdown:        stop,
		Log:               log,
	})

	// Registry mutations broadcast through the live session set.
	toolCatalog.SetBroadcaster(srv)
	promptCatalog.SetBroadcaster(srv)
	resourceCatalog.SetBroadcaster(srv)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			if strings.Contains(err.Error(), "address already in use") {
				log.Error("port is already in use; is another instance running?",
					slog.String("addr", cfg.Addr))
			}
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
