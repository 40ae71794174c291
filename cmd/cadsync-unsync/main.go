// Command cadsync-unsync removes a machine's synced directory from the
// remote index. It is interactive and destructive: the selected
// directory's entire remote file index is deleted.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/getleo/cadsync/internal/config"
	"github.com/getleo/cadsync/internal/logging"
	"github.com/getleo/cadsync/leo"
)

const confirmPhrase = "unsync"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("WARNING: unsyncing removes the directory's entire remote index.")
	fmt.Println("Local files are not touched, but the cloud copy is deleted.")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authCfg, err := config.LoadAuthConfig(cfg.AuthKeyPath)
	if err != nil {
		return err
	}

	tokens := leo.NewTokenProvider(nil, cfg.IdentityURL, authCfg.ProjectID, authCfg.APIKey, logger)
	client := leo.NewClient(nil, cfg.APIURL, tokens, logger)

	dirs, err := client.ListDirectories(ctx)
	if err != nil {
		return fmt.Errorf("listing directories: %w", err)
	}
	if len(dirs) == 0 {
		fmt.Println("No synced directories registered.")
		return nil
	}

	fmt.Println("Synced directories:")
	for i, d := range dirs {
		fmt.Printf("  [%d] %s (machine %s)\n", i+1, d.URI, d.MachineID)
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	dir, err := selectDirectory(scanner, dirs)
	if err != nil {
		return err
	}

	fmt.Printf("Type %q to delete the remote index for %s: ", confirmPhrase, dir.URI)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != confirmPhrase {
		fmt.Println("Aborted.")
		return nil
	}

	// Re-fetch before deleting in case it was removed elsewhere meanwhile.
	if _, err := client.Directory(ctx, dir.ID); err != nil {
		return fmt.Errorf("verifying directory: %w", err)
	}

	fmt.Printf("Deleting remote index for %s...\n", dir.URI)
	if err := client.DeleteDirectory(ctx, dir.ID); err != nil {
		return fmt.Errorf("deleting directory: %w", err)
	}

	fmt.Println("Done. The directory is no longer synced.")
	return nil
}

func selectDirectory(scanner *bufio.Scanner, dirs []leo.Directory) (*leo.Directory, error) {
	fmt.Printf("Select directory to unsync [1-%d]: ", len(dirs))
	if !scanner.Scan() {
		return nil, fmt.Errorf("no selection made")
	}

	n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || n < 1 || n > len(dirs) {
		return nil, fmt.Errorf("invalid selection %q", strings.TrimSpace(scanner.Text()))
	}

	return &dirs[n-1], nil
}
