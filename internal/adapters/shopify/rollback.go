package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

type RollbackService interface {
	DeleteProducts(ctx context.Context, productIDs []string) ([]string, error)
	DeleteCollections(ctx context.Context, collectionIDs []string) ([]string, error)
}

const productDeleteConcurrency = 5

// DeleteProducts removes the given products with bounded concurrency. A failed
// delete does not stop the others; the returned error joins every failure.
// The result lists the ids that are now gone, including ones already absent.
func (c *Client) DeleteProducts(ctx context.Context, productIDs []string) ([]string, error) {
	var (
		mu      sync.Mutex
		deleted = make([]string, 0, len(productIDs))
		errs    []error
		count   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(productDeleteConcurrency)
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.DeleteProduct(gctx, id); err != nil {
				c.logError(fmt.Sprintf("shopify product delete failed id=%s", id), err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			deleted = append(deleted, id)
			mu.Unlock()
			if n := count.Add(1); n%25 == 0 {
				c.logInfo(fmt.Sprintf("shopify rollback: deleted=%d", n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	c.logSuccess(fmt.Sprintf("shopify products deleted=%d failed=%d", len(deleted), len(errs)))
	return deleted, errors.Join(errs...)
}

// DeleteCollections removes the given collections one at a time.
func (c *Client) DeleteCollections(ctx context.Context, collectionIDs []string) ([]string, error) {
	deleted := make([]string, 0, len(collectionIDs))
	var errs []error
	for _, id := range collectionIDs {
		if err := ctx.Err(); err != nil {
			return deleted, errors.Join(append(errs, err)...)
		}
		if err := c.DeleteCollection(ctx, id); err != nil {
			c.logError(fmt.Sprintf("shopify collection delete failed id=%s", id), err)
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, errors.Join(errs...)
}
