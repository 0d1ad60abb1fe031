package usecases

import (
	"context"
	"fmt"
	"shopify-uploader/internal/adapters/ai"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/collections"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"time"

	"golang.org/x/sync/errgroup"
)

type UploadProductsService interface {
	Run(ctx context.Context, batch *Batch) (model.Summary, error)
}

// TaxonomyResolver resolves categories and can preload its data.
type TaxonomyResolver interface {
	CategoryResolver
	Warm(ctx context.Context) error
}

type Metrics interface {
	ItemMetrics
	ObserveCollection(status string)
}

type UploadOptions struct {
	Mode                  model.Mode
	OutputPath            string
	CollectionsOutputPath string
	SkipCollections       bool
	ItemDelay             time.Duration
	CollectionDelay       time.Duration
	SalesChannels         []string
	URLPolicy             URLPolicy
	RunID                 string
	Observer              Observer
}

type uploadProducts struct {
	remote   shopify.Service
	store    state.Store
	resolver TaxonomyResolver
	enhancer ai.Enhancer
	metrics  Metrics
	logger   logging.LoggerService
	opts     UploadOptions
}

// NewUploadProducts wires the full upload. resolver, enhancer and metrics
// may be nil.
func NewUploadProducts(remote shopify.Service, store state.Store, resolver TaxonomyResolver, enhancer ai.Enhancer, metrics Metrics, logger logging.LoggerService, opts UploadOptions) UploadProductsService {
	return &uploadProducts{
		remote:   remote,
		store:    store,
		resolver: resolver,
		enhancer: enhancer,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Run checks the batch, prepares the store (taxonomy, metafield
// definitions, collections) and then uploads item by item. Everything before
// the item loop is all or nothing.
func (s *uploadProducts) Run(ctx context.Context, batch *Batch) (model.Summary, error) {
	if err := Preflight(batch, s.opts.URLPolicy, s.logger); err != nil {
		return model.Summary{}, err
	}

	publicationIDs, err := s.prepareRemote(ctx)
	if err != nil {
		return model.Summary{}, err
	}

	if s.enhancer != nil {
		if err := EnhanceBatch(ctx, s.enhancer, batch, s.logger); err != nil {
			return model.Summary{}, err
		}
	}

	products := batch.ValidProducts()
	if _, err := EnsureMetafieldDefinitions(ctx, s.remote, products, s.logger); err != nil {
		return model.Summary{}, err
	}

	if err := s.ensureCollections(ctx, products, publicationIDs); err != nil {
		return model.Summary{}, err
	}

	opts := UploaderOptions{
		Delay:          s.opts.ItemDelay,
		PublicationIDs: publicationIDs,
		OutputPath:     s.opts.OutputPath,
		RunID:          s.opts.RunID,
		Observer:       s.opts.Observer,
	}
	if s.metrics != nil {
		opts.Metrics = s.metrics
	}
	var resolver CategoryResolver
	if s.resolver != nil {
		resolver = s.resolver
	}
	return NewUploader(s.remote, s.store, resolver, s.logger, opts).Run(ctx, batch, s.opts.Mode)
}

// prepareRemote looks up sales channels and loads the taxonomy in parallel.
// A taxonomy that cannot be loaded only costs category assignment.
func (s *uploadProducts) prepareRemote(ctx context.Context) ([]string, error) {
	var publicationIDs []string
	g, gctx := errgroup.WithContext(ctx)
	if len(s.opts.SalesChannels) > 0 {
		g.Go(func() error {
			ids, err := s.remote.SalesChannelIDs(gctx, s.opts.SalesChannels)
			if err != nil {
				return fmt.Errorf("load sales channels: %w", err)
			}
			publicationIDs = ids
			return nil
		})
	}
	if s.resolver != nil {
		g.Go(func() error {
			if err := s.resolver.Warm(gctx); err != nil {
				logWarning(s.logger, fmt.Sprintf("taxonomy unavailable, products will upload without a category: %v", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return publicationIDs, nil
}

func (s *uploadProducts) ensureCollections(ctx context.Context, products []model.Product, publicationIDs []string) error {
	var registry *state.Registry
	if s.opts.SkipCollections {
		logInfo(s.logger, "collection pass skipped")
	} else {
		opts := collections.Options{
			Delay:          s.opts.CollectionDelay,
			PublicationIDs: publicationIDs,
		}
		if s.enhancer != nil {
			opts.Describer = s.enhancer
		}
		if s.metrics != nil {
			opts.Observer = s.metrics
		}
		report, err := collections.NewManager(s.remote, s.store, s.logger, opts).Ensure(ctx, products)
		if err != nil {
			return fmt.Errorf("collections: %w", err)
		}
		registry = report.Registry
	}

	if s.opts.CollectionsOutputPath == "" {
		return nil
	}
	if registry == nil {
		loaded, err := s.store.LoadRegistry(ctx)
		if err != nil {
			return fmt.Errorf("load collection registry: %w", err)
		}
		registry = loaded
	}
	if err := WriteCollectionsOutput(s.opts.CollectionsOutputPath, registry, time.Now().UTC()); err != nil {
		return fmt.Errorf("write collections output: %w", err)
	}
	logInfo(s.logger, fmt.Sprintf("collections written to %s", s.opts.CollectionsOutputPath))
	return nil
}
