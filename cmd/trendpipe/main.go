package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/api"
	"github.com/tubemetrics/trendpipe/internal/archive"
	"github.com/tubemetrics/trendpipe/internal/config"
	"github.com/tubemetrics/trendpipe/internal/database"
	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/drivers"
	"github.com/tubemetrics/trendpipe/internal/fetch"
	"github.com/tubemetrics/trendpipe/internal/impute"
	"github.com/tubemetrics/trendpipe/internal/logging"
	"github.com/tubemetrics/trendpipe/internal/metrics"
	"github.com/tubemetrics/trendpipe/internal/modelstore"
	"github.com/tubemetrics/trendpipe/internal/pipeline"
)

const usage = `trendpipe <command>

Commands:
  run      execute the full pipeline: fetch, impute, load, archive
  fetch    download and normalize the trending dataset
  impute   fill missing cells in the working dataset
  load     load the working dataset into PostgreSQL
  archive  upload a compressed copy to object storage
  serve    start the operational HTTP API
`

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load(os.Getenv("TRENDPIPE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.LoadFromEnv(cfg)

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	ctx := context.Background()

	switch command {
	case "run":
		results, err := a.runPipeline(ctx)
		for _, res := range results {
			logger.Info("step result",
				zap.String("step", res.Step),
				zap.String("status", res.Status),
				zap.Duration("duration", res.Duration))
		}
		if err != nil {
			logger.Fatal("pipeline failed", zap.Error(err))
		}
	case "fetch":
		if _, err := a.fetcher().Run(ctx, a.fetchOptions()); err != nil {
			logger.Fatal("fetch failed", zap.Error(err))
		}
	case "impute":
		if err := a.imputeWorkingSet(ctx); err != nil {
			logger.Fatal("impute failed", zap.Error(err))
		}
	case "load":
		if err := a.loadWorkingSet(ctx); err != nil {
			logger.Fatal("load failed", zap.Error(err))
		}
	case "archive":
		if err := a.archiveWorkingSet(ctx); err != nil {
			logger.Fatal("archive failed", zap.Error(err))
		}
	case "serve":
		a.serve()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (a *app) workingCSV() string {
	return a.cfg.Fetch.DataDir + "/" + a.cfg.Fetch.OutputFile
}

func (a *app) fetcher() *fetch.Fetcher {
	return fetch.NewFetcher(a.cfg.Fetch.RequestInterval, 1, a.logger)
}

func (a *app) fetchOptions() fetch.Options {
	return fetch.Options{
		URL:        a.cfg.Fetch.URL,
		DataDir:    a.cfg.Fetch.DataDir,
		SourceFile: fetch.SourceFileFor(a.cfg.Fetch.Country),
		OutputFile: a.cfg.Fetch.OutputFile,
	}
}

func (a *app) driver(ctx context.Context) (drivers.Driver, error) {
	switch a.cfg.Storage.Mode {
	case "local", "":
		if err := os.MkdirAll(a.cfg.Storage.LocalPath, 0750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		return drivers.NewLocalDriver(a.cfg.Storage.LocalPath, a.logger), nil
	case "s3":
		return drivers.NewS3Driver(ctx,
			a.cfg.Storage.Endpoint, a.cfg.Storage.Region,
			a.cfg.Storage.AccessKey, a.cfg.Storage.SecretKey, a.logger)
	default:
		return nil, fmt.Errorf("invalid storage mode %q", a.cfg.Storage.Mode)
	}
}

func (a *app) modelStore(ctx context.Context) (modelstore.Store, error) {
	if a.cfg.Imputer.RemoteModels {
		driver, err := a.driver(ctx)
		if err != nil {
			return nil, err
		}
		return modelstore.NewDriverStore(driver, a.cfg.Archive.Bucket, "models/"), nil
	}
	return modelstore.NewFileStore(a.cfg.Imputer.ModelDir, a.logger)
}

func (a *app) imputer(ctx context.Context) (*impute.Imputer, error) {
	store, err := a.modelStore(ctx)
	if err != nil {
		return nil, err
	}
	opts := impute.Options{
		TreeCount:  a.cfg.Imputer.TreeCount,
		MaxDepth:   a.cfg.Imputer.MaxDepth,
		RandomSeed: a.cfg.Imputer.RandomSeed,
		MinLabeled: a.cfg.Imputer.MinLabeled,
	}
	return impute.New(opts, store, a.logger), nil
}

func (a *app) archiver(ctx context.Context) (*archive.Archiver, error) {
	driver, err := a.driver(ctx)
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(driver, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix, a.logger), nil
}

// runPipeline executes the four-step graph once.
func (a *app) runPipeline(ctx context.Context) ([]pipeline.Result, error) {
	imputer, err := a.imputer(ctx)
	if err != nil {
		return nil, err
	}
	archiver, err := a.archiver(ctx)
	if err != nil {
		return nil, err
	}
	pg, err := database.NewPostgres(a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pg.Close() }()

	st := &pipeline.State{RunID: time.Now().UTC().Format("20060102T150405Z")}
	runner := pipeline.NewRunner(a.logger, a.metrics,
		pipeline.FetchStep(a.fetcher(), a.fetchOptions(), st),
		pipeline.ImputeStep(imputer, a.metrics, st),
		pipeline.LoadStep(pg, a.metrics, st),
		pipeline.ArchiveStep(archiver, st),
	)
	results, err := runner.Run(ctx)
	if st.Report != nil {
		a.logger.Info("imputation summary", zap.String("report", st.Report.Summary()))
	}
	return results, err
}

// imputeWorkingSet runs just the imputation stage, rewriting the
// working CSV in place.
func (a *app) imputeWorkingSet(ctx context.Context) error {
	imputer, err := a.imputer(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(a.workingCSV())
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	ds, err := dataset.ReadCSV(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	report, err := imputer.Run(ctx, ds)
	if err != nil {
		return err
	}
	a.logger.Info("imputation summary", zap.String("report", report.Summary()))

	out, err := os.Create(a.workingCSV())
	if err != nil {
		return fmt.Errorf("rewrite dataset: %w", err)
	}
	defer func() { _ = out.Close() }()
	return dataset.WriteCSV(out, ds)
}

func (a *app) loadWorkingSet(ctx context.Context) error {
	pg, err := database.NewPostgres(a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	ds, err := a.readWorkingSet()
	if err != nil {
		return err
	}
	if err := pg.CreateTables(ctx); err != nil {
		return err
	}
	_, err = pg.ReplaceTrendingVideos(ctx, ds)
	return err
}

func (a *app) archiveWorkingSet(ctx context.Context) error {
	archiver, err := a.archiver(ctx)
	if err != nil {
		return err
	}
	ds, err := a.readWorkingSet()
	if err != nil {
		return err
	}
	_, err = archiver.Run(ctx, ds, time.Now().UTC().Format("20060102T150405Z"))
	return err
}

func (a *app) readWorkingSet() (*dataset.Dataset, error) {
	f, err := os.Open(a.workingCSV())
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return dataset.ReadCSV(f)
}

func (a *app) serve() {
	server := api.NewServer(a.cfg, a.logger, a.metrics, a.runPipeline)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		a.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.logger.Error("shutdown error", zap.Error(err))
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		a.logger.Fatal("server failed", zap.Error(err))
	}
}
