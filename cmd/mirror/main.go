package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-mirror"
)

// syncer is the slice of *mirror.Module the CLI drives.
type syncer interface {
	Sync(ctx context.Context, opts mirror.SyncOptions) (*mirror.Result, error)
	Close() error
}

type moduleOptions struct {
	ConfigPath string
	InitSchema bool
}

var moduleBuilder = func(opts moduleOptions) (syncer, mirror.Config, error) {
	cfg, err := mirror.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, mirror.Config{}, err
	}
	if opts.InitSchema {
		cfg.Storage.InitSchema = true
	}
	module, err := mirror.New(cfg)
	if err != nil {
		return nil, mirror.Config{}, err
	}
	return module, cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("mirror: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mirror", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a YAML config file (defaults plus environment when empty)")
	dryRun := fs.Bool("dry-run", false, "Classify documents without converting or writing anything")
	interval := fs.Duration("interval", 0, "Repeat passes on this interval until interrupted (0 runs once)")
	initSchema := fs.Bool("init-schema", false, "Create missing tables before the first pass")
	timeout := fs.Duration("timeout", 0, "Bound each pass (0 uses the configured sync timeout)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	module, cfg, err := moduleBuilder(moduleOptions{
		ConfigPath: *configPath,
		InitSchema: *initSchema,
	})
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()

	every := *interval
	if every == 0 {
		every = cfg.Sync.Interval
	}
	opts := mirror.SyncOptions{
		DryRun:  *dryRun || cfg.Sync.DryRun,
		Timeout: *timeout,
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Sync.Timeout
	}

	if err := pass(ctx, module, opts); err != nil && every <= 0 {
		return err
	}
	if every <= 0 {
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("mirror: stopping after interrupt")
			return nil
		case <-ticker.C:
			// Failed passes are retried on the next tick.
			_ = pass(ctx, module, opts)
		}
	}
}

func pass(ctx context.Context, module syncer, opts mirror.SyncOptions) error {
	result, err := module.Sync(ctx, opts)
	if result != nil {
		logSummary(result)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("mirror: pass interrupted")
		} else {
			log.Printf("mirror: pass failed: %v", err)
		}
		return err
	}
	return nil
}

func logSummary(result *mirror.Result) {
	log.Printf("mirror: operation=sync dry_run=%t created=%d updated=%d skipped=%d deleted=%d failed=%d duration=%s",
		result.DryRun, result.Created, result.Updated, result.Skipped, result.Deleted, result.Failed,
		result.Duration().Round(time.Millisecond))
	for _, docErr := range result.Errors {
		log.Printf("mirror: document=%s slug=%s stage=%s error=%v", docErr.DocumentID, docErr.Slug, docErr.Stage, docErr.Err)
	}
}
