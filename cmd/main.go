package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"ledger-lab/domain"
	"ledger-lab/infrastructure/httpapi"
	"ledger-lab/internal"
	"ledger-lab/repositories"
	"ledger-lab/services"
	"ledger-lab/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
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

	// 3. Stores & Service
	messageRepository := repositories.NewMessageRepository(db, log)
	groupRepository := repositories.NewGroupRepository(db, log)
	systemRepository := repositories.NewSystemRepository(db, log)
	balanceRepository := repositories.NewBalanceRepository(db, log)

	service := services.NewLedgerService(
		log,
		messageRepository,
		groupRepository,
		systemRepository,
		balanceRepository,
		domain.Principal(config.AdminPrincipal),
		nil, // internal moves only, no external settlement
		config.CompatEmptyExpirableError,
	)
	service.AddSinks(sink.NewAuditSink(log))

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Optional inspect server
	if config.DebugPort > 0 {
		internal.StartDebugServer(log, db, config.DebugPort, "/inspect", nil,
			storeStats(db, groupRepository))
	}

	// 6. HTTP Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	ledgerServer := httpapi.NewLedgerServer(log, service)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           ledgerServer.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "admin", config.AdminPrincipal)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func storeStats(db *badger.DB, groups repositories.GroupRepository) internal.StatsProvider {
	return func() map[string]any {
		lsm, vlog := db.Size()
		count, _ := groups.Count()
		return map[string]any{
			"Groups":    count,
			"LSMBytes":  lsm,
			"VlogBytes": vlog,
			"Time":      time.Now().UTC().Format(time.RFC822),
		}
	}
}
