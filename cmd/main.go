package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gateway/auth"
	"chat-gateway/domain"
	"chat-gateway/observability"
	"chat-gateway/repositories"
	"chat-gateway/runtime"
	"chat-gateway/runtime/workers"
	"chat-gateway/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the gateway and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Shared gateway state
	mon := observability.NewMonitoring()
	edges := make(chan domain.PresenceEdge, config.EdgeBufferSize)
	registry := runtime.NewRegistry(log, mon, edges)
	rooms := runtime.NewRooms()

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log, config.LimitMessages)

	router := runtime.NewRouter(log, registry, rooms, messages, mon, config.StoreTimeout)
	gateway := runtime.NewGateway(log, registry, rooms, router, mon)

	// 4. Supervision & workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewPresenceWorker(log, edges, registry, users, mon, config.StoreTimeout),
		workers.NewTelemetryWorker(log, mon, config.TelemetryInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal context on purpose: during shutdown the
	// drain still produces presence edges, and the presence worker must
	// stay up to broadcast them. sup.Stop() is the only thing that stops it.
	go sup.Run(context.Background())

	// 6. HTTP server hosting the websocket endpoint
	gate := auth.NewGate(auth.NewResolver(config.JWTSecret), users)
	wsServer := ws.NewServer(log, gate, gateway, ws.Options{
		SendQueueSize:  config.SendQueueSize,
		WriteWait:      config.WriteWait,
		PongWait:       config.PongWait,
		MaxMessageSize: config.MaxMessageSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket gateway", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup: stop accepting new sockets, drain live ones,
	// then stop the workers so in-flight presence edges are still handled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	gateway.Shutdown()
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
