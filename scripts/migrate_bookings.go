package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/repository"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"

	"github.com/rs/zerolog"
)

// Copies the booking collection from one configured storage driver to another,
// e.g. from the JSON file to SQLite. Entries are re-validated on the way.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fromPath = flag.String("from", "configs/config.yaml", "config describing the source storage")
		toPath   = flag.String("to", "", "config describing the destination storage")
		dryRun   = flag.Bool("dry-run", false, "validate the source without writing")
	)
	flag.Parse()

	if *toPath == "" && !*dryRun {
		return fmt.Errorf("-to is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fromCfg, err := config.Load(*fromPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", *fromPath, err)
	}
	src, srcCloser, err := repository.Open(ctx, fromCfg, &logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcCloser.Close()

	// store.New drops invalid and duplicate entries with a warning each.
	bookings, err := store.New(ctx, src, &logger)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	logger.Info().Int("bookings", bookings.Len()).Str("driver", fromCfg.Storage.Driver).Msg("source loaded")

	if *dryRun {
		return nil
	}

	toCfg, err := config.Load(*toPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", *toPath, err)
	}
	dst, dstCloser, err := repository.Open(ctx, toCfg, &logger)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dstCloser.Close()

	if err := dst.Save(ctx, bookings.All()); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}

	logger.Info().Int("bookings", bookings.Len()).Str("driver", toCfg.Storage.Driver).Msg("migration complete")
	return nil
}
