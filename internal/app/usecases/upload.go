package usecases

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	ItemStatusSuccess = "success"
	ItemStatusFailed  = "failed"
	ItemStatusSkipped = "skipped"

	stageCreate   = "create"
	stageVariants = "variants"
)

// Observer is told about every terminal item result and the final summary.
// Calls are made synchronously from the upload loop.
type Observer interface {
	OnItemResult(index int, result model.ItemResult)
	OnSummary(summary model.Summary)
}

type ItemMetrics interface {
	ObserveItem(status string, elapsed time.Duration)
}

// CategoryResolver maps a free-text category to a taxonomy id.
type CategoryResolver interface {
	Resolve(ctx context.Context, query string) (string, bool, error)
}

// UploadRemote is the part of the Admin API one product upload touches.
type UploadRemote interface {
	shopify.ProductService
	Publish(ctx context.Context, resourceID string, publicationIDs []string) error
	DeleteProducts(ctx context.Context, productIDs []string) ([]string, error)
}

type UploaderOptions struct {
	Delay          time.Duration
	PublicationIDs []string
	OutputPath     string
	RunID          string
	Observer       Observer
	Metrics        ItemMetrics
}

// Uploader walks a batch one item at a time, persisting the checkpoint and
// restore snapshot after every item so an interrupted run resumes where it
// stopped.
type Uploader struct {
	remote   UploadRemote
	store    state.Store
	resolver CategoryResolver
	logger   logging.LoggerService
	opts     UploaderOptions
	limiter  *rate.Limiter
	now      func() time.Time
}

func NewUploader(remote UploadRemote, store state.Store, resolver CategoryResolver, logger logging.LoggerService, opts UploaderOptions) *Uploader {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	u := &Uploader{
		remote:   remote,
		store:    store,
		resolver: resolver,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if opts.Delay > 0 {
		u.limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return u
}

func (u *Uploader) RunID() string {
	return u.opts.RunID
}

// Run processes batch from the checkpoint cursor (resume) or from the start
// after removing previously created products (overwrite). Item failures are
// recorded and never stop the loop. A cancelled ctx stops before the next
// item and leaves the checkpoint in place.
func (u *Uploader) Run(ctx context.Context, batch *Batch, mode model.Mode) (model.Summary, error) {
	cp, err := u.store.LoadCheckpoint(ctx)
	if err != nil {
		return model.Summary{}, fmt.Errorf("load checkpoint: %w", err)
	}
	snapshot, err := u.store.LoadRestore(ctx)
	if err != nil {
		return model.Summary{}, fmt.Errorf("load restore snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = state.NewRestoreSnapshot()
	}

	switch mode {
	case model.ModeOverwrite:
		if err := u.removePrevious(ctx, batch, cp, snapshot); err != nil {
			return model.Summary{}, err
		}
		cp = state.NewCheckpoint(u.opts.RunID)
		if err := u.store.SaveProgress(ctx, cp, snapshot); err != nil {
			return model.Summary{}, fmt.Errorf("save checkpoint: %w", err)
		}
	default:
		if cp == nil {
			cp = state.NewCheckpoint(u.opts.RunID)
		} else {
			u.logInfo(fmt.Sprintf("resuming after index %d (%d results recorded)", cp.LastProcessedIndex, len(cp.Results)))
		}
	}

	start := cp.NextIndex()
	total := batch.Len()
	u.logInfo(fmt.Sprintf("upload started run=%s mode=%s items=%d start=%d", u.opts.RunID, mode, total, start))

	// Cancellation is only honoured between items; the in-flight item and
	// its progress write run to completion.
	itemCtx := context.WithoutCancel(ctx)
	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return u.interrupted(cp, total, i, err)
		}
		// The first wait drains the limiter's initial token so every later
		// item starts at least one delay after the previous one.
		if err := u.wait(ctx); err != nil {
			return u.interrupted(cp, total, i, err)
		}

		began := time.Now()
		result := u.processItem(itemCtx, batch, i, mode, snapshot)
		cp.Record(result)
		if err := u.store.SaveProgress(itemCtx, cp, snapshot); err != nil {
			return summarize(cp, total), fmt.Errorf("save progress at index %d: %w", i, err)
		}
		u.observeItem(result, time.Since(began))
		if u.opts.Observer != nil {
			u.opts.Observer.OnItemResult(i, result)
		}
	}

	summary := summarize(cp, total)
	if err := u.finish(itemCtx, batch, cp, summary); err != nil {
		return summary, err
	}
	if u.opts.Observer != nil {
		u.opts.Observer.OnSummary(summary)
	}
	u.logSuccess(fmt.Sprintf("upload completed total=%d successful=%d skipped=%d failed=%d", summary.Total, summary.Successful, summary.Skipped, summary.Failed))
	return summary, nil
}

func (u *Uploader) interrupted(cp *state.Checkpoint, total, index int, cause error) (model.Summary, error) {
	summary := summarize(cp, total)
	u.logWarning(fmt.Sprintf("upload interrupted before index %d; checkpoint kept at %d", index, cp.LastProcessedIndex))
	if u.opts.Observer != nil {
		u.opts.Observer.OnSummary(summary)
	}
	return summary, fmt.Errorf("upload interrupted before index %d: %w", index, cause)
}

// finish runs once every index has a result: the checkpoint is removed and
// the output document written.
func (u *Uploader) finish(ctx context.Context, batch *Batch, cp *state.Checkpoint, summary model.Summary) error {
	latest := cp.Latest()
	for i := 0; i < batch.Len(); i++ {
		if _, ok := latest[i]; !ok {
			u.logWarning(fmt.Sprintf("index %d has no result; checkpoint kept", i))
			return nil
		}
	}
	if u.opts.OutputPath != "" {
		if err := WriteOutput(u.opts.OutputPath, batch, latest, summary, u.now()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		u.logInfo(fmt.Sprintf("output written to %s", u.opts.OutputPath))
	}
	if err := u.store.DeleteCheckpoint(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// removePrevious deletes every product an earlier run created for this
// batch. A delete that fails stops the run so the item is never uploaded
// twice.
func (u *Uploader) removePrevious(ctx context.Context, batch *Batch, cp *state.Checkpoint, snapshot *state.RestoreSnapshot) error {
	var recorded []string
	for _, p := range batch.Products {
		if entry, ok := snapshot.Get(p.Title); ok && entry.Status != state.RestoreDeleted {
			recorded = append(recorded, entry.RemoteID)
		}
	}
	ids := uniqueIDs(cp.CreatedRemoteIDs(), recorded)
	if len(ids) == 0 {
		return nil
	}

	u.logInfo(fmt.Sprintf("overwrite: deleting %d previously uploaded products", len(ids)))
	deleted, err := u.remote.DeleteProducts(ctx, ids)
	markDeleted(snapshot, deleted, u.now())
	if err != nil {
		if saveErr := u.store.SaveRestore(context.WithoutCancel(ctx), snapshot); saveErr != nil {
			u.logError("save restore snapshot", saveErr)
		}
		return fmt.Errorf("overwrite: delete previous products: %w", err)
	}
	return nil
}

func markDeleted(snapshot *state.RestoreSnapshot, ids []string, at time.Time) {
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	for _, entry := range snapshot.Products {
		if _, ok := gone[entry.RemoteID]; !ok {
			continue
		}
		entry.Status = state.RestoreDeleted
		entry.UpdatedAt = at
		snapshot.Put(entry)
	}
}

func (u *Uploader) processItem(ctx context.Context, batch *Batch, index int, mode model.Mode, snapshot *state.RestoreSnapshot) model.ItemResult {
	product := batch.Products[index]
	title := itemTitle(batch, index)

	if reason, bad := batch.Invalid[index]; bad {
		u.logWarning(fmt.Sprintf("item %d skipped as invalid: %s", index, reason))
		return model.FailedItem(index, title, reason, u.now())
	}

	if mode == model.ModeResume {
		if entry, ok := snapshot.Get(product.Title); ok && entry.Status == state.RestoreCompleted && entry.RemoteID != "" {
			u.logInfo(fmt.Sprintf("item %d already uploaded as %s", index, entry.RemoteID))
			result := model.SucceededItem(index, title, entry.RemoteID, u.now())
			result.Skipped = true
			return result
		}
	}

	categoryID := u.categoryFor(ctx, product)

	created, err := u.remote.CreateProduct(ctx, product, categoryID)
	if err != nil {
		return u.fail(snapshot, index, title, "", stageCreate, err)
	}
	if _, err := u.remote.CreateVariants(ctx, created.ID, product); err != nil {
		return u.fail(snapshot, index, title, created.ID, stageVariants, err)
	}
	if len(u.opts.PublicationIDs) > 0 {
		if err := u.remote.Publish(ctx, created.ID, u.opts.PublicationIDs); err != nil {
			u.logWarning(fmt.Sprintf("publish %s failed: %s", created.ID, shopify.ErrorMessage(err)))
		}
	}

	at := u.now()
	snapshot.Put(state.RestoreEntry{Title: title, RemoteID: created.ID, Status: state.RestoreCompleted, UpdatedAt: at})
	u.logSuccess(fmt.Sprintf("item %d uploaded title=%s id=%s", index, title, created.ID))
	return model.SucceededItem(index, title, created.ID, at)
}

// fail records an item failure. A product created before the failure keeps
// its id in the restore snapshot so rollback can remove it.
func (u *Uploader) fail(snapshot *state.RestoreSnapshot, index int, title, remoteID, stage string, err error) model.ItemResult {
	message := shopify.ErrorMessage(err)
	u.logError(fmt.Sprintf("item %d failed at %s title=%s", index, stage, title), err)
	at := u.now()
	snapshot.Put(state.RestoreEntry{
		Title:       title,
		RemoteID:    remoteID,
		Status:      state.RestoreFailed,
		Error:       message,
		FailedStage: stage,
		UpdatedAt:   at,
	})
	return model.FailedItem(index, title, message, at)
}

// categoryFor picks the taxonomy id: an id supplied with the product first,
// then the product_category text, then the Category tag. A miss is only a
// warning.
func (u *Uploader) categoryFor(ctx context.Context, product model.Product) string {
	if id := strings.TrimSpace(product.ShopifyCategoryID); strings.HasPrefix(id, "gid://shopify/TaxonomyCategory/") {
		return id
	}
	if u.resolver == nil {
		return ""
	}

	queries := []string{product.ProductCategory, model.ExtractTriple(product).Category}
	tried := 0
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		tried++
		id, ok, err := u.resolver.Resolve(ctx, q)
		if err != nil {
			u.logWarning(fmt.Sprintf("taxonomy lookup %q failed: %v", q, err))
			continue
		}
		if ok {
			return id
		}
	}
	if tried > 0 {
		u.logWarning(fmt.Sprintf("no taxonomy category for %q; uploading without one", product.Title))
	}
	return ""
}

func (u *Uploader) wait(ctx context.Context) error {
	if u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

func (u *Uploader) observeItem(result model.ItemResult, elapsed time.Duration) {
	if u.opts.Metrics == nil {
		return
	}
	u.opts.Metrics.ObserveItem(itemStatus(result), elapsed)
}

func itemStatus(r model.ItemResult) string {
	switch {
	case r.Skipped:
		return ItemStatusSkipped
	case r.Success:
		return ItemStatusSuccess
	}
	return ItemStatusFailed
}

func itemTitle(batch *Batch, index int) string {
	if t := strings.TrimSpace(batch.Products[index].Title); t != "" {
		return t
	}
	return fmt.Sprintf("item %d", index)
}

// summarize counts the latest result of every index in the batch.
func summarize(cp *state.Checkpoint, total int) model.Summary {
	summary := model.Summary{Total: total}
	for i, r := range cp.Latest() {
		if i < total {
			summary.Add(r)
		}
	}
	return summary
}

// IsInterrupted reports whether err came from a cancelled run.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (u *Uploader) logInfo(message string)    { logInfo(u.logger, message) }
func (u *Uploader) logWarning(message string) { logWarning(u.logger, message) }
func (u *Uploader) logSuccess(message string) { logSuccess(u.logger, message) }
func (u *Uploader) logError(message string, err error) {
	logError(u.logger, message, err)
}
