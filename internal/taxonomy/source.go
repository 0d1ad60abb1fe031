package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/logging"
	"strings"
)

// Category is one node of the standard product taxonomy.
type Category struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Source lists every candidate category.
type Source interface {
	Categories(ctx context.Context) ([]Category, error)
}

// ShopifySource reads the taxonomy from the Admin API.
type ShopifySource struct {
	client shopify.TaxonomyService
}

func NewShopifySource(client shopify.TaxonomyService) *ShopifySource {
	return &ShopifySource{client: client}
}

func (s *ShopifySource) Categories(ctx context.Context) ([]Category, error) {
	nodes, err := s.client.TaxonomyCategories(ctx)
	if err != nil {
		return nil, err
	}
	categories := make([]Category, 0, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.ID) == "" || strings.TrimSpace(n.FullName) == "" {
			continue
		}
		categories = append(categories, Category{ID: n.ID, FullName: n.FullName})
	}
	return categories, nil
}

// FallbackSource tries each source in order and returns the first non-empty
// list.
type FallbackSource struct {
	sources []Source
	logger  logging.LoggerService
}

func NewFallbackSource(logger logging.LoggerService, sources ...Source) *FallbackSource {
	return &FallbackSource{sources: sources, logger: logger}
}

func (s *FallbackSource) Categories(ctx context.Context) ([]Category, error) {
	var errs []error
	for i, src := range s.sources {
		categories, err := src.Categories(ctx)
		if err == nil && len(categories) > 0 {
			return categories, nil
		}
		if err == nil {
			err = errors.New("no categories returned")
		}
		errs = append(errs, err)
		if s.logger != nil && i+1 < len(s.sources) {
			s.logger.LogWarning(fmt.Sprintf("taxonomy source %d failed, trying next: %v", i+1, err))
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no taxonomy source configured")
	}
	return nil, fmt.Errorf("load taxonomy: %w", errors.Join(errs...))
}
