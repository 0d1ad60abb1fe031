package usecases

import (
	"context"
	"fmt"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"time"
)

type RollbackService interface {
	Run(ctx context.Context, includeCollections bool) (RollbackReport, error)
}

type RollbackReport struct {
	ProductsDeleted    int
	CollectionsDeleted int
}

type rollback struct {
	remote shopify.RollbackService
	store  state.Store
	logger logging.LoggerService
}

func NewRollback(remote shopify.RollbackService, store state.Store, logger logging.LoggerService) RollbackService {
	return &rollback{remote: remote, store: store, logger: logger}
}

// Run deletes every product the restore snapshot and checkpoint know about,
// then clears both. Registry collections are removed only when asked. State
// is cleared only for the parts that were fully deleted.
func (r *rollback) Run(ctx context.Context, includeCollections bool) (RollbackReport, error) {
	var report RollbackReport

	snapshot, err := r.store.LoadRestore(ctx)
	if err != nil {
		return report, fmt.Errorf("load restore snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = state.NewRestoreSnapshot()
	}
	cp, err := r.store.LoadCheckpoint(ctx)
	if err != nil {
		return report, fmt.Errorf("load checkpoint: %w", err)
	}

	ids := uniqueIDs(snapshot.RemoteIDs(), cp.CreatedRemoteIDs())
	logInfo(r.logger, fmt.Sprintf("rollback: deleting %d products", len(ids)))

	deleted, err := r.remote.DeleteProducts(ctx, ids)
	report.ProductsDeleted = len(deleted)
	if err != nil {
		markDeleted(snapshot, deleted, time.Now().UTC())
		if saveErr := r.store.SaveRestore(context.WithoutCancel(ctx), snapshot); saveErr != nil {
			logError(r.logger, "save restore snapshot", saveErr)
		}
		return report, fmt.Errorf("rollback products: %w", err)
	}
	if err := r.store.DeleteCheckpoint(ctx); err != nil {
		return report, fmt.Errorf("delete checkpoint: %w", err)
	}
	if err := r.store.DeleteRestore(ctx); err != nil {
		return report, fmt.Errorf("delete restore snapshot: %w", err)
	}
	logSuccess(r.logger, fmt.Sprintf("rollback: %d products deleted", report.ProductsDeleted))

	if !includeCollections {
		return report, nil
	}

	registry, err := r.store.LoadRegistry(ctx)
	if err != nil {
		return report, fmt.Errorf("load collection registry: %w", err)
	}
	var collectionIDs []string
	for _, item := range registry.Items() {
		collectionIDs = append(collectionIDs, item.Collection.ID)
	}
	collectionIDs = uniqueIDs(collectionIDs)

	removed, err := r.remote.DeleteCollections(ctx, collectionIDs)
	report.CollectionsDeleted = len(removed)
	if err != nil {
		return report, fmt.Errorf("rollback collections: %w", err)
	}
	if err := r.store.SaveRegistry(ctx, state.NewRegistry()); err != nil {
		return report, fmt.Errorf("clear collection registry: %w", err)
	}
	logSuccess(r.logger, fmt.Sprintf("rollback: %d collections deleted", report.CollectionsDeleted))
	return report, nil
}

func uniqueIDs(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
