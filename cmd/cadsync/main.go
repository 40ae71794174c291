package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/getleo/cadsync/internal/config"
	"github.com/getleo/cadsync/internal/logging"
	"github.com/getleo/cadsync/internal/syncer"
	"github.com/getleo/cadsync/internal/vault"
	"github.com/getleo/cadsync/leo"
)

var Version = "dev"

func main() {
	once := flag.Bool("once", false, "run one full sync and exit instead of watching")
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("cadsync starting",
		slog.String("version", Version),
		slog.String("vault_dir", cfg.VaultDir),
		slog.Bool("sync_on_start", cfg.SyncOnStart),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authCfg, err := config.LoadAuthConfig(cfg.AuthKeyPath)
	if err != nil {
		return err
	}

	machineID, err := config.MachineID()
	if err != nil {
		return err
	}
	logger.Info("machine identity resolved", slog.String("machine_id", machineID))

	tokens := leo.NewTokenProvider(nil, cfg.IdentityURL, authCfg.ProjectID, authCfg.APIKey, logging.ForComponent(logger, "token"))
	client := leo.NewClient(nil, cfg.APIURL, tokens, logging.ForComponent(logger, "client"))

	session, err := syncer.NewSession(ctx, client, machineID, cfg.VaultDir, vault.NoDependencies{}, logging.ForComponent(logger, "syncer"))
	if err != nil {
		return fmt.Errorf("opening sync session: %w", err)
	}
	logger.Info("sync session ready", slog.String("directory_id", session.DirectoryID()))

	dispatcher := syncer.NewDispatcher(session, logging.ForComponent(logger, "dispatcher"))
	defer dispatcher.Wait()

	if cfg.SyncOnStart || once {
		// Blocks until the full reconciliation completes.
		dispatcher.Handle(ctx, syncer.Install{})
	}
	if once {
		return nil
	}

	watcher := syncer.NewWatcher(dispatcher, cfg.VaultDir, cfg.DebounceInterval, logging.ForComponent(logger, "watcher"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Watch(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("cadsync stopped")
	return nil
}
