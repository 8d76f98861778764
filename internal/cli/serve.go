package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/app/matchmaking"
	"duelhall/internal/app/onboarding"
	"duelhall/internal/auth"
	platformotel "duelhall/internal/platform/otel"
	"duelhall/internal/ports"
	"duelhall/internal/ports/httpapi"
	"duelhall/internal/ports/memory"
	"duelhall/internal/ports/sqlite"
	"duelhall/internal/ports/traced"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document store server",
		Long: `Serve the shared document store, device sign-in and the in-process
matchmaking queue over HTTP. Idle sessions and stale queue entries are
removed by a periodic cleanup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file (overrides config, empty keeps documents in memory)")

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.Config, opts.Logger

	shutdownTracing, err := platformotel.Setup(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown: %v", err)
		}
	}()

	var backend ports.DocumentStore = memory.NewStore()
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer db.Close()
		backend = db
		logger.Info("documents stored in %s", cfg.DBPath)
	} else {
		logger.Warn("no db_path configured, documents are kept in memory")
	}
	store := traced.NewStore(backend, nil)

	svc := app.NewService(store, nil, nil)
	svc.SetHandSize(cfg.HandSize)
	authority := matchmaking.NewAuthority(svc, logger)
	onboard := onboarding.NewService(nil, store, nil, nil)

	secret := cfg.TokenSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("no token_secret configured, tokens will not survive a restart")
	}
	issuer := auth.NewIssuer(secret, auth.DefaultTokenTTL)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewServer(store, issuer, authority, onboard, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		janitor(gctx, cfg.CleanupInterval.Std(), func(now time.Time) {
			sweep(gctx, svc, authority, now.Add(-cfg.Retention.Std()), logger)
		})
		return nil
	})

	return g.Wait()
}

// janitor calls fn every interval until ctx ends.
func janitor(ctx context.Context, interval time.Duration, fn func(time.Time)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}

// sweep removes sessions idle since before cutoff and matchmaking entries,
// in memory and stored, queued before it.
func sweep(ctx context.Context, svc *app.Service, authority *matchmaking.Authority, cutoff time.Time, logger runtime.Logger) {
	removed, err := svc.Cleanup(ctx, cutoff)
	if err != nil {
		logger.Warn("cleanup: %v", err)
	}
	pruned := authority.Prune(cutoff)
	stored, err := matchmaking.PruneQueues(ctx, svc.Store(), cutoff)
	if err != nil {
		logger.Warn("cleanup: %v", err)
	}
	pruned += stored
	if removed > 0 || pruned > 0 {
		logger.Info("cleanup removed %d sessions and %d queue entries", removed, pruned)
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
