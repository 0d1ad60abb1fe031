package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shopify-uploader/internal/adapters/ai"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/app/usecases"
	"shopify-uploader/internal/config"
	"shopify-uploader/internal/domain/model"
	infrahttp "shopify-uploader/internal/infra/http"
	"shopify-uploader/internal/infra/mysql"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/metrics"
	"shopify-uploader/internal/state"
	"shopify-uploader/internal/taxonomy"

	"github.com/spf13/cobra"
)

// environment is what every command that talks to the store needs.
type environment struct {
	cfg    config.Config
	logger *logging.Logger
	store  state.Store
	close  func()
}

func loadConfig(o *options) (config.Config, error) {
	cfg, _, err := config.Load(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", usecases.ErrFatal, err)
	}
	applyFlags(&cfg, o)
	return cfg, nil
}

// applyFlags lets command line flags win over environment and settings.
func applyFlags(cfg *config.Config, o *options) {
	if o.stateDir != "" {
		cfg.Paths.StateDir = o.stateDir
	}
	if o.logFile != "" {
		cfg.Paths.LogFile = o.logFile
	}
	if o.input != "" {
		cfg.Paths.InputFile = o.input
	}
	if o.output != "" {
		cfg.Paths.ProductOutputFile = o.output
	}
	if o.mode != "" {
		cfg.Run.Mode = o.mode
	}
	if o.collectionsOutput != "" {
		cfg.Paths.CollectionsOutputFile = o.collectionsOutput
	}
	if o.metricsFile != "" {
		cfg.Paths.MetricsFile = o.metricsFile
	}
	if o.skipCollections {
		cfg.Run.SkipCollections = true
	}
	if o.delay > 0 {
		cfg.Run.ItemDelay = o.delay
	}
	if cfg.Paths.InputFile != "" && cfg.Paths.ProductOutputFile == "" {
		cfg.Paths.ProductOutputFile = defaultOutputPath(cfg.Paths.InputFile)
	}
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_processed.json"
}

func setup(ctx context.Context, o *options) (*environment, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}

	z, err := logging.NewZap(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: o.verbose,
		LogFile: cfg.Paths.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: logger: %v", usecases.ErrFatal, err)
	}
	logger := logging.NewLogger(z, logging.NewTelegram(cfg.TelegramBot, infrahttp.NewClient(10*time.Second), z))

	if err := cfg.Validate(); err != nil {
		logger.LogError("configuration invalid", err)
		logger.Sync()
		return nil, fmt.Errorf("%w: %v", usecases.ErrFatal, err)
	}

	env := &environment{cfg: cfg, logger: logger, close: logger.Sync}
	switch cfg.State.Backend {
	case config.StateBackendMysql:
		db, err := mysql.New(ctx, cfg.Mysql)
		if err != nil {
			logger.Sync()
			return nil, fmt.Errorf("%w: %v", usecases.ErrFatal, err)
		}
		store := state.NewMySQLStore(db, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			logger.Sync()
			return nil, fmt.Errorf("%w: %v", usecases.ErrFatal, err)
		}
		env.store = store
		env.close = func() {
			_ = db.Close()
			logger.Sync()
		}
	default:
		store, err := state.NewFileStore(cfg.Paths.StateDir, logger)
		if err != nil {
			logger.Sync()
			return nil, fmt.Errorf("%w: %v", usecases.ErrFatal, err)
		}
		env.store = store
	}
	return env, nil
}

func runUpload(ctx context.Context, cmd *cobra.Command, o *options) error {
	env, err := setup(ctx, o)
	if err != nil {
		return err
	}
	defer env.close()
	cfg, logger := env.cfg, env.logger

	mode, ok := model.ParseMode(cfg.Run.Mode)
	if !ok {
		return fmt.Errorf("%w: unknown mode %q (want resume or overwrite)", usecases.ErrFatal, cfg.Run.Mode)
	}
	if cfg.Paths.InputFile == "" {
		return fmt.Errorf("%w: --input is required", usecases.ErrFatal)
	}

	batch, err := usecases.LoadBatch(cfg.Paths.InputFile)
	if err != nil {
		logger.LogError("input rejected", err)
		return err
	}
	logger.Log(fmt.Sprintf("loaded %d products from %s (%d invalid)", batch.Len(), cfg.Paths.InputFile, len(batch.Invalid)))

	recorder := metrics.New()
	if cfg.Paths.MetricsFile != "" {
		defer func() {
			if err := recorder.WriteFile(cfg.Paths.MetricsFile); err != nil {
				logger.LogWarning(fmt.Sprintf("metrics file %s: %v", cfg.Paths.MetricsFile, err))
			}
		}()
	}

	shopifyClient := shopify.NewClient(cfg.Shopify, infrahttp.NewClient(cfg.Shopify.Timeout), logger, shopify.WithRequestObserver(recorder))
	source := taxonomy.NewFallbackSource(logger,
		taxonomy.NewShopifySource(shopifyClient),
		taxonomy.NewGitHubSource(cfg.Paths.StatePath(taxonomy.GitHubCacheName), infrahttp.NewClient(infrahttp.MaxDuration(cfg.Shopify.Timeout, time.Minute)), logger),
	)
	resolver := taxonomy.NewResolver(source, env.store, logger)

	var enhancer ai.Enhancer
	if cfg.AI.Enabled {
		svc, err := ai.New(ctx, cfg.AI, infrahttp.NewClient(cfg.AI.Timeout), logger)
		if err != nil {
			return fmt.Errorf("%w: ai: %v", usecases.ErrFatal, err)
		}
		cached, err := ai.NewCachedEnhancer(svc, cfg.Paths.StatePath(ai.CacheFileName), logger)
		if err != nil {
			return fmt.Errorf("%w: ai cache: %v", usecases.ErrFatal, err)
		}
		enhancer = cached
	}

	uploader := usecases.NewUploadProducts(shopifyClient, env.store, resolver, enhancer, recorder, logger, usecases.UploadOptions{
		Mode:                  mode,
		OutputPath:            cfg.Paths.ProductOutputFile,
		CollectionsOutputPath: cfg.Paths.CollectionsOutputFile,
		SkipCollections:       cfg.Run.SkipCollections,
		ItemDelay:             cfg.Run.ItemDelay,
		CollectionDelay:       cfg.Run.CollectionDelay,
		SalesChannels:         shopify.DefaultSalesChannels,
		URLPolicy: usecases.URLPolicy{
			AllowedHosts:  cfg.Shopify.AllowedHosts,
			AllowExternal: cfg.Shopify.AllowExternalURLs,
		},
		Observer: &progressObserver{out: cmd.OutOrStdout(), total: batch.Len()},
	})

	summary, err := uploader.Run(ctx, batch)
	if err != nil {
		if usecases.IsInterrupted(err) {
			logger.LogWarning("upload interrupted; run again to resume")
		} else {
			logger.LogError("upload failed", err)
		}
		return err
	}
	logger.LogSuccess(fmt.Sprintf("batch finished successful=%d skipped=%d failed=%d output=%s", summary.Successful, summary.Skipped, summary.Failed, cfg.Paths.ProductOutputFile))
	return nil
}

// progressObserver prints one line per item and the totals.
type progressObserver struct {
	out   io.Writer
	total int
}

func (p *progressObserver) OnItemResult(index int, r model.ItemResult) {
	switch {
	case r.Skipped:
		fmt.Fprintf(p.out, "[%d/%d] skipped  %s (already uploaded)\n", index+1, p.total, r.Title)
	case r.Success:
		fmt.Fprintf(p.out, "[%d/%d] uploaded %s %s\n", index+1, p.total, r.Title, deref(r.RemoteID))
	default:
		fmt.Fprintf(p.out, "[%d/%d] failed   %s: %s\n", index+1, p.total, r.Title, deref(r.Error))
	}
}

func (p *progressObserver) OnSummary(s model.Summary) {
	fmt.Fprintf(p.out, "total=%d successful=%d skipped=%d failed=%d\n", s.Total, s.Successful, s.Skipped, s.Failed)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runRollback(ctx context.Context, o *options) error {
	env, err := setup(ctx, o)
	if err != nil {
		return err
	}
	defer env.close()

	client := shopify.NewClient(env.cfg.Shopify, infrahttp.NewClient(env.cfg.Shopify.Timeout), env.logger)
	report, err := usecases.NewRollback(client, env.store, env.logger).Run(ctx, o.rollbackCollections)
	fmt.Fprintf(os.Stdout, "products deleted=%d collections deleted=%d\n", report.ProductsDeleted, report.CollectionsDeleted)
	if err != nil {
		env.logger.LogError("rollback failed", err)
		return err
	}
	return nil
}
