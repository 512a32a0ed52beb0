package main

import (
	"context"
	"flag"
	stdlog "log"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"wa_ingest/config"
	"wa_ingest/httputil"
	"wa_ingest/logging"
	"wa_ingest/pipeline"
	"wa_ingest/scheduler"
	"wa_ingest/services"
	"wa_ingest/storage"
)

var (
	exportDir = flag.String("dir", "", "Export directory (overrides EXPORT_DIR and EXPORT_SOURCE)")
	watch     = flag.Bool("watch", false, "Keep running and re-ingest on INGEST_CRON or INGEST_INTERVAL")
	seedOnly  = flag.Bool("seed-only", false, "Load reference data and exit")
	dryRun    = flag.Bool("dry-run", false, "Ingest into memory and only print the summary")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}
	if *exportDir != "" {
		cfg.Export.Source = config.SourceDir
		cfg.Export.Dir = *exportDir
	}
	if *dryRun {
		cfg.Database.Driver = config.DriverMemory
	}

	log, err := logging.Setup(logging.Options{
		File:    cfg.Log.File,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Backups: cfg.Log.Backups,
	})
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}

	os.Exit(run(cfg, log))
}

func run(cfg *config.Config, log *logging.Logger) int {
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer store.Close()

	loader := services.NewReferenceLoader(store, log)
	if _, err := loader.Seed(ctx, services.BuildReferenceData(cfg.Reference)); err != nil {
		log.Error("failed to seed reference data", "error", err)
		return 1
	}
	if *seedOnly {
		return 0
	}

	source, err := openSource(ctx, cfg)
	if err != nil {
		log.Error("failed to open export source", "error", err)
		return 1
	}

	ingestion := services.NewIngestionService(store, services.WithLogger(log))
	orchestrator := pipeline.NewOrchestrator(source, store, ingestion, pipeline.Options{
		Location: cfg.Ingest.Location,
		Workers:  cfg.Ingest.Workers,
		Log:      log,
	})

	batch := func(ctx context.Context) error {
		report, err := orchestrator.Run(ctx)
		if err != nil {
			return err
		}
		report.Print(os.Stdout)
		return nil
	}

	if err := batch(ctx); err != nil {
		log.Error("ingestion failed", "source", source.Name(), "error", err)
		return 1
	}
	if !*watch {
		return 0
	}

	sched := scheduler.New(cfg.Scheduler, batch, log)
	if !sched.Enabled() {
		log.Info("watch mode needs INGEST_CRON or INGEST_INTERVAL, exiting after one run")
		return 0
	}
	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "error", err)
		return 1
	}

	log.Info("watching for new exports, press Ctrl+C to stop")
	<-ctx.Done()

	log.Info("shutting down")
	sched.Stop()
	return 0
}

func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Info("connected to postgres", "url", maskConnectionString(cfg.Database.URL))
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return pg, nil

	case config.DriverSQLite:
		lite, err := storage.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		log.Info("opened sqlite database", "path", cfg.Database.Path)
		if cfg.Database.Migrate {
			if err := lite.Migrate(ctx); err != nil {
				lite.Close()
				return nil, err
			}
		}
		return lite, nil

	default:
		log.Info("using in-memory store, nothing will be persisted")
		return storage.NewMemoryStore(), nil
	}
}

func openSource(ctx context.Context, cfg *config.Config) (pipeline.Source, error) {
	if cfg.Export.Source != config.SourceS3 {
		return pipeline.NewDirSource(cfg.Export.Dir, cfg.Export.Ext), nil
	}
	httpClient, err := httputil.NewClient(cfg.S3.ProxyURL, httputil.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewS3Client(ctx, storage.S3Config{
		Bucket:          cfg.S3.Bucket,
		Prefix:          cfg.S3.Prefix,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		HTTPClient:      httpClient,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.NewS3Source(client, cfg.S3.Prefix, cfg.Export.Ext), nil
}

const passwordMask = "****"

var dsnPassword = regexp.MustCompile(`password=\S+`)

// maskConnectionString hides the password of a URL or keyword/value DSN
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		return dsnPassword.ReplaceAllString(connStr, "password="+passwordMask)
	}
	masked := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), passwordMask)
			masked = true
		}
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", passwordMask)
		u.RawQuery = q.Encode()
		masked = true
	}
	if !masked {
		return u.String()
	}
	// String escapes the mask in both userinfo and query
	return strings.ReplaceAll(u.String(), url.QueryEscape(passwordMask), passwordMask)
}
