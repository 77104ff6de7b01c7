package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/dirk.krummacker/contact-cards/internal/api"
	"gitlab.com/dirk.krummacker/contact-cards/internal/config"
	"gitlab.com/dirk.krummacker/contact-cards/internal/logger"
	"gitlab.com/dirk.krummacker/contact-cards/internal/randomuser"
	"gitlab.com/dirk.krummacker/contact-cards/internal/service"
	"gitlab.com/dirk.krummacker/contact-cards/internal/state"
	"gitlab.com/dirk.krummacker/contact-cards/internal/store"
	"golang.org/x/sync/errgroup"
)

// Usage example on the command line:
// > PORT=8080 DB_DRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := store.OpenDatabase(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Error("could not open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	results, err := store.Migrate(ctx, sqlDB, cfg.DBDriver)
	if err != nil {
		log.Error("could not migrate database", "error", err)
		os.Exit(1)
	}
	log.Info("database ready", "driver", cfg.DBDriver, "migrations", len(results))

	repo, err := store.NewRepository(sqlDB, cfg.DBDriver)
	if err != nil {
		log.Error("could not prepare repository", "error", err)
		os.Exit(1)
	}
	remote := randomuser.New(randomuser.Config{BaseURL: cfg.RemoteBaseURL, Timeout: cfg.RemoteTimeout})
	svc := service.New(store.New(repo, log), remote, log)
	holder := state.New(svc, cfg.ListingGrace, log)

	router := api.SetupHttpRouter(holder, api.Options{
		GinLogging:      cfg.GinLogging,
		QRSize:          cfg.QRSize,
		ScanIdleTimeout: cfg.ScanIdle,
	}, log)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the first batch is loaded in the background; failures end up in the state
		_, _ = holder.Refresh(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("contacts service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("contacts service stopped", "error", err)
		os.Exit(1)
	}
}
