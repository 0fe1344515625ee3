// Migrate Newsletter Formats moves newsletter advertising opportunities from
// the legacy free-text dimensions field to the structured format field.
//
// The default run is a dry run: publications are read, every ad is resolved
// and a report is printed, but nothing is written. Pass --apply to write.
//
// Usage:
//
//	go run ./tools/migrate_newsletter_formats [--apply] [--mappings extra.yaml]
//
// Flags:
//
//	--apply         write the resolved formats (default: dry run)
//	--mappings      YAML file with extra legacy value mappings
//	--review-queue  record the run and its review items in Postgres
//	--notify        publish the run summary to Redis
//	--output        report format, text or json (default: text)
//	--env-file      .env file to load before reading configuration
//	--writes-per-second  pace publication updates (default: unlimited)
//
// Environment Variables:
//
//	MONGODB_URI, MONGODB_DATABASE, MONGODB_COLLECTION: publications store
//	POSTGRES_DSN: review queue (with --review-queue)
//	REDIS_ADDR: run notifications (with --notify)
//	MIGRATION_WRITES_PER_SECOND: default for --writes-per-second
//
// Any failure to connect to or read from MongoDB aborts the run with exit
// code 1. Failed publication updates are listed in the report and do not
// change the exit code.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/migration"
	"github.com/patrickwarner/mediahub/internal/observability"
	"github.com/patrickwarner/mediahub/internal/ratelimit"
	"github.com/patrickwarner/mediahub/internal/reporting"
)

type options struct {
	apply       bool
	mappings    string
	reviewQueue bool
	notify      bool
	output      string
	envFile     string
	verbose     bool
	rate        int
	// rateSet is true when --writes-per-second was given explicitly.
	rateSet bool
}

// backends are the stores a run talks to. Reviews and Notifier are nil
// unless requested.
type backends struct {
	Store    migration.PublicationStore
	Reviews  migration.ReviewSink
	Notifier migration.RunNotifier
	Close    func()
}

// connect opens the configured backends. Replaced in tests.
var connect = connectBackends

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "migrate-newsletter-formats",
		Short:         "Migrate legacy newsletter ad dimensions to structured formats",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.rateSet = cmd.Flags().Changed("writes-per-second")
			return run(cmd.Context(), opts, out)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.apply, "apply", false, "Write resolved formats (default is a dry run)")
	f.StringVar(&opts.mappings, "mappings", "", "YAML file with extra legacy dimension mappings")
	f.BoolVar(&opts.reviewQueue, "review-queue", false, "Record the run and review items in Postgres")
	f.BoolVar(&opts.notify, "notify", false, "Publish the run summary to Redis")
	f.StringVar(&opts.output, "output", "text", "Report format: text or json")
	f.StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file first")
	f.IntVar(&opts.rate, "writes-per-second", 0, "Pace publication updates in apply mode (0 = unlimited)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	return cmd
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg := config.Load()
	applyConfigDefaults(opts, cfg)

	logger, err := observability.InitCLILogger("migrate-newsletter-formats", opts.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdown, err := observability.InitTracing(ctx, logger, cfg.TracingEnabled, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
	if err != nil {
		logger.Warn("tracing unavailable", zap.Error(err))
	} else {
		defer shutdown()
	}

	var extra map[string]string
	if opts.mappings != "" {
		extra, err = migration.LoadMappings(opts.mappings)
		if err != nil {
			return err
		}
		logger.Info("loaded extra mappings", zap.String("file", opts.mappings), zap.Int("count", len(extra)))
	}

	b, err := connect(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	m := migration.NewMigrator(b.Store, logger, observability.NewNoOpRegistry())
	m.Resolver = migration.NewResolver(extra)
	m.Reviews = b.Reviews
	m.Notifier = b.Notifier
	var bucket *ratelimit.TokenBucket
	if opts.rate > 0 {
		bucket = ratelimit.NewTokenBucket(opts.rate, opts.rate)
		m.Throttle = bucket
		logger.Debug("pacing writes", zap.Int("writes_per_second", opts.rate))
	}

	report, err := m.Run(ctx, opts.apply)
	if err != nil {
		return err
	}
	if bucket != nil {
		delayed, total := bucket.Stats()
		logger.Info("write pacing",
			zap.Int("writes_per_second", opts.rate),
			zap.Int64("writes", total),
			zap.Int64("delayed", delayed))
	}
	logger.Debug("categories", zap.String("counts", reporting.CategoryLine(report.ByCategory)))

	if opts.output == "json" {
		return reporting.WriteJSON(out, report)
	}
	return reporting.WriteText(out, report)
}

// applyConfigDefaults fills options the command line left unset from the
// environment configuration. Flags always win.
func applyConfigDefaults(opts *options, cfg config.Config) {
	if opts.mappings == "" {
		opts.mappings = cfg.MigrationMappingsFile
	}
	opts.reviewQueue = opts.reviewQueue || cfg.MigrationReviewQueue
	opts.notify = opts.notify || cfg.MigrationNotify
	if !opts.rateSet {
		opts.rate = cfg.MigrationWritesPerSecond
	}
}

func connectBackends(ctx context.Context, cfg config.Config, opts *options, logger *zap.Logger) (*backends, error) {
	mongoStore, err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoTimeout)
	if err != nil {
		return nil, err
	}
	b := &backends{Store: mongoStore}
	closers := []func(){mongoStore.Close}
	b.Close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.reviewQueue {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Warn("review queue unavailable, continuing without it", zap.Error(err))
		} else {
			b.Reviews = pg
			closers = append(closers, pg.Close)
		}
	}
	if opts.notify {
		rs, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, run will not be announced", zap.Error(err))
		} else {
			rs.LastRunTTL = cfg.LastRunTTL
			b.Notifier = rs
			closers = append(closers, rs.Close)
		}
	}
	return b, nil
}
