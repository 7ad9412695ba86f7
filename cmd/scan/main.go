package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/export"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/logging"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/repository"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/service"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"

	"github.com/rs/zerolog"
)

type options struct {
	configPath string
	payload    string
	store      bool
	exportPath string
	from       string
	to         string
	encode     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "configs/config.yaml", "path to config.yaml")
	fs.StringVar(&opts.payload, "payload", "", "scanned code contents to decode")
	fs.BoolVar(&opts.store, "store", false, "also record the decoded booking in the configured store")
	fs.StringVar(&opts.exportPath, "export", "", "write bookings to this .xlsx file, or into this directory")
	fs.StringVar(&opts.from, "from", "", "first date to export (YYYY-MM-DD)")
	fs.StringVar(&opts.to, "to", "", "last date to export (YYYY-MM-DD)")
	fs.BoolVar(&opts.encode, "encode", false, "read a JSON booking from stdin and print its code payloads")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case opts.encode:
		return encodeRecord(stdin, stdout)
	case opts.exportPath != "":
		return exportBookings(ctx, opts, stdout, stderr)
	case opts.payload != "" && opts.store:
		return scanAndStore(ctx, opts, stdout, stderr)
	case opts.payload != "":
		return decodeOnly(opts.payload, stdout)
	default:
		fs.Usage()
		return errors.New("nothing to do: pass -payload, -export or -encode")
	}
}

func decodeOnly(raw string, stdout io.Writer) error {
	logger := zerolog.Nop()
	svc := service.NewScanService(nil, nil, nil, &logger)
	rec, err := svc.Preview(raw)
	if err != nil {
		return errors.New(service.NoticeFor(err).Message)
	}
	return printJSON(stdout, rec)
}

func encodeRecord(stdin io.Reader, stdout io.Writer) error {
	var rec models.Reservation
	decoder := json.NewDecoder(stdin)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rec); err != nil {
		return fmt.Errorf("read booking: %w", err)
	}

	logger := zerolog.Nop()
	out, err := service.NewScanService(nil, nil, nil, &logger).Encode(rec)
	if err != nil {
		return errors.New(service.NoticeFor(err).Message)
	}
	return printJSON(stdout, out)
}

func scanAndStore(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	svc, _, closer, err := openService(ctx, opts.configPath, stderr, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := svc.Scan(ctx, opts.payload)
	if err != nil {
		return errors.New(service.NoticeFor(err).Message)
	}
	return printJSON(stdout, res)
}

func exportBookings(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	svc, cfg, closer, err := openService(ctx, opts.configPath, stderr, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	bookings := svc.ListRange(opts.from, opts.to)

	// Without an .xlsx extension the value names a directory and the file is
	// named after the range. A bare file name lands in the exports directory.
	path := opts.exportPath
	switch {
	case !strings.EqualFold(filepath.Ext(path), ".xlsx"):
		path, err = export.SaveBookings(path, bookings, opts.from, opts.to)
		if err != nil {
			return err
		}
	default:
		if filepath.Base(path) == path && cfg.Exports.Path != "" {
			if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
				return fmt.Errorf("create exports dir: %w", err)
			}
			path = filepath.Join(cfg.Exports.Path, path)
		}
		if err := writeExport(path, bookings, opts.from, opts.to); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "Exported %d bookings to %s\n", len(bookings), path)
	return nil
}

func writeExport(path string, bookings []models.Reservation, from, to string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteBookings(f, bookings, from, to); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// openService restores the configured store. When the stored bookings cannot
// be read, a writable service is refused so the unread state is not
// overwritten; a read-only one continues empty after a warning on stderr.
func openService(ctx context.Context, configPath string, stderr io.Writer, writable bool) (*service.ScanService, *config.Config, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewWithWriter(stderr, cfg.Logging, cfg.App)

	persister, closer, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	bookings, err := store.New(ctx, persister, logging.Component(logger, "store"))
	switch {
	case err == nil:
	case store.IsWarning(err) && !writable:
		fmt.Fprintf(stderr, "warning: %v; continuing with no bookings\n", err)
	case store.IsWarning(err):
		_ = closer.Close()
		return nil, nil, nil, fmt.Errorf("%w; refusing to write over bookings that could not be read", err)
	default:
		_ = closer.Close()
		return nil, nil, nil, err
	}
	return service.NewScanService(bookings, nil, nil, logging.Component(logger, "scan")), cfg, closer, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
