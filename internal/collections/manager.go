package collections

import (
	"context"
	"fmt"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	StatusCreated  = "created"
	StatusExisting = "existing"
	StatusFailed   = "failed"

	maxDescriptionSamples = 5
)

// Remote is the part of the Admin API the manager needs.
type Remote interface {
	shopify.CollectionService
	shopify.PublicationService
}

type RegistryStore interface {
	LoadRegistry(ctx context.Context) (*state.Registry, error)
	SaveRegistry(ctx context.Context, r *state.Registry) error
}

// Describer writes a collection description from sample product copy.
type Describer interface {
	CollectionDescription(ctx context.Context, title, department string, samples []string) (string, error)
}

// Observer is told the outcome of every required collection.
type Observer interface {
	ObserveCollection(status string)
}

type Options struct {
	Delay          time.Duration
	PublicationIDs []string
	Describer      Describer
	Observer       Observer
}

type Report struct {
	Created  int
	Existing int
	Failed   int
	Registry *state.Registry
}

// Manager makes sure a rule based collection exists for every department,
// category and category/subcategory pair in a batch.
type Manager struct {
	remote  Remote
	store   RegistryStore
	logger  logging.LoggerService
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

func NewManager(remote Remote, store RegistryStore, logger logging.LoggerService, opts Options) *Manager {
	m := &Manager{
		remote: remote,
		store:  store,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
	if opts.Delay > 0 {
		m.limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return m
}

type requirement struct {
	level       state.CollectionLevel
	department  string
	category    string
	subcategory string
	samples     []string
}

// Ensure walks the batch's requirements in department, category, subcategory
// order. The registry is saved after every collection it learns about. The
// first failed create stops the walk.
func (m *Manager) Ensure(ctx context.Context, products []model.Product) (Report, error) {
	registry, err := m.store.LoadRegistry(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load collection registry: %w", err)
	}
	if registry == nil {
		registry = state.NewRegistry()
	}
	report := Report{Registry: registry}

	reqs := requirements(products)
	m.logInfo(fmt.Sprintf("collections required=%d", len(reqs)))

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		status, err := m.ensureOne(ctx, registry, req)
		m.observe(status)
		switch status {
		case StatusCreated:
			report.Created++
		case StatusExisting:
			report.Existing++
		case StatusFailed:
			report.Failed++
		}
		if err != nil {
			return report, err
		}
	}

	m.logSuccess(fmt.Sprintf("collections ready created=%d existing=%d", report.Created, report.Existing))
	return report, nil
}

func (m *Manager) ensureOne(ctx context.Context, registry *state.Registry, req requirement) (string, error) {
	if ref, ok := lookup(registry, req); ok {
		m.publish(ctx, ref.ID, ref.Title)
		return StatusExisting, nil
	}

	title := titleFor(registry, req)
	rules := rulesFor(req)
	found, err := m.search(ctx, title)
	if err != nil {
		return StatusFailed, err
	}
	if found != nil && !shopify.RulesMatch(*found, rules) {
		qualified := qualifiedTitle(req)
		m.logWarning(fmt.Sprintf("collection %q id=%s selects other products; using title %q", title, found.ID, qualified))
		title = qualified
		if found, err = m.search(ctx, title); err != nil {
			return StatusFailed, err
		}
		if found != nil && !shopify.RulesMatch(*found, rules) {
			err := fmt.Errorf("collection %q exists with different rules", title)
			m.logError("collection title taken", err)
			return StatusFailed, err
		}
	}

	status := StatusExisting
	var ref state.CollectionRef
	if found != nil {
		m.logInfo(fmt.Sprintf("collection found remotely title=%s id=%s", title, found.ID))
		ref = state.CollectionRef{ID: found.ID, Handle: found.Handle, Title: title, Status: StatusExisting}
	} else {
		input := shopify.CollectionInput{
			Title:           title,
			DescriptionHTML: m.describe(ctx, title, req),
			Rules:           rules,
		}
		if err := m.wait(ctx); err != nil {
			return StatusFailed, err
		}
		created, err := m.remote.CreateSmartCollection(ctx, input)
		if err != nil {
			m.logError(fmt.Sprintf("collection create failed title=%s", title), err)
			return StatusFailed, fmt.Errorf("create collection %q: %w", title, err)
		}
		status = StatusCreated
		ref = state.CollectionRef{ID: created.ID, Handle: created.Handle, Title: title, Status: StatusCreated}
	}
	ref.CreatedAt = m.now().UTC()

	record(registry, req, ref)
	if err := m.store.SaveRegistry(ctx, registry); err != nil {
		return status, fmt.Errorf("save collection registry: %w", err)
	}

	m.publish(ctx, ref.ID, title)
	return status, nil
}

func (m *Manager) search(ctx context.Context, title string) (*dto.ShopifyCollection, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	found, err := m.remote.FindCollectionByTitle(ctx, title)
	if err != nil {
		m.logError(fmt.Sprintf("collection search failed title=%s", title), err)
		return nil, fmt.Errorf("search collection %q: %w", title, err)
	}
	return found, nil
}

// publish also covers collections already in the registry, which may have
// been created before a sales channel existed.
func (m *Manager) publish(ctx context.Context, id, title string) {
	if len(m.opts.PublicationIDs) == 0 || id == "" {
		return
	}
	if err := m.remote.Publish(ctx, id, m.opts.PublicationIDs); err != nil {
		m.logWarning(fmt.Sprintf("collection publish failed title=%s: %v", title, err))
	}
}

// requirements lists the collections a batch needs, departments first.
// Names are deduplicated case-insensitively, keeping the first spelling seen.
func requirements(products []model.Product) []requirement {
	var (
		departments, categories, subcategories []requirement
		index                                  = map[string]int{}
	)
	add := func(list *[]requirement, key string, req requirement, body string) {
		pos, ok := index[key]
		if !ok {
			pos = len(*list)
			index[key] = pos
			*list = append(*list, req)
		}
		if strings.TrimSpace(body) != "" && len((*list)[pos].samples) < maxDescriptionSamples {
			(*list)[pos].samples = append((*list)[pos].samples, body)
		}
	}

	for _, p := range products {
		t := model.ExtractTriple(p)
		if t.Department != "" {
			add(&departments, "d:"+strings.ToLower(t.Department), requirement{
				level:      state.LevelDepartment,
				department: t.Department,
			}, p.BodyHTML)
		}
		if t.Category == "" {
			continue
		}
		add(&categories, "c:"+strings.ToLower(t.Category), requirement{
			level:      state.LevelCategory,
			department: t.Department,
			category:   t.Category,
		}, p.BodyHTML)
		if t.Subcategory == "" {
			continue
		}
		add(&subcategories, "s:"+t.SubcategoryKey(), requirement{
			level:       state.LevelSubcategory,
			department:  t.Department,
			category:    t.Category,
			subcategory: t.Subcategory,
		}, p.BodyHTML)
	}

	out := make([]requirement, 0, len(departments)+len(categories)+len(subcategories))
	out = append(out, departments...)
	out = append(out, categories...)
	return append(out, subcategories...)
}

// titleFor is the remote title for req. Categories and subcategories keep
// their plain name unless another collection in the registry already has it.
func titleFor(registry *state.Registry, req requirement) string {
	switch req.level {
	case state.LevelDepartment:
		return req.department
	case state.LevelCategory:
		if registry.TitleOwnedElsewhere(req.category, req.category, "") {
			return qualifiedTitle(req)
		}
		return req.category
	}
	if registry.TitleOwnedElsewhere(req.subcategory, req.category, req.subcategory) {
		return qualifiedTitle(req)
	}
	return req.subcategory
}

// qualifiedTitle is used when the plain title belongs to another collection.
func qualifiedTitle(req requirement) string {
	switch req.level {
	case state.LevelDepartment:
		return req.department + " Products"
	case state.LevelCategory:
		if req.department != "" && !strings.EqualFold(req.department, req.category) {
			return req.department + " " + req.category
		}
		return req.category + " Products"
	}
	return req.category + " " + req.subcategory
}

// rulesFor builds the AND-combined rule set for req.
func rulesFor(req requirement) []shopify.CollectionRule {
	switch req.level {
	case state.LevelDepartment:
		return []shopify.CollectionRule{{Column: shopify.RuleColumnType, Condition: req.department}}
	case state.LevelCategory:
		return []shopify.CollectionRule{{Column: shopify.RuleColumnTag, Condition: req.category}}
	}
	return []shopify.CollectionRule{
		{Column: shopify.RuleColumnTag, Condition: req.category},
		{Column: shopify.RuleColumnTag, Condition: req.subcategory},
	}
}

func lookup(registry *state.Registry, req requirement) (state.CollectionRef, bool) {
	switch req.level {
	case state.LevelDepartment:
		return registry.Department(req.department)
	case state.LevelCategory:
		return registry.Category(req.category)
	}
	return registry.Subcategory(req.category, req.subcategory)
}

func record(registry *state.Registry, req requirement, ref state.CollectionRef) {
	switch req.level {
	case state.LevelDepartment:
		registry.SetDepartment(req.department, ref)
	case state.LevelCategory:
		registry.SetCategory(req.category, ref)
	default:
		registry.SetSubcategory(req.category, req.subcategory, ref)
	}
}

func (m *Manager) describe(ctx context.Context, title string, req requirement) string {
	if m.opts.Describer == nil {
		return ""
	}
	desc, err := m.opts.Describer.CollectionDescription(ctx, title, req.department, req.samples)
	if err != nil {
		m.logWarning(fmt.Sprintf("collection description failed title=%s: %v", title, err))
		return ""
	}
	return desc
}

func (m *Manager) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

func (m *Manager) observe(status string) {
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveCollection(status)
	}
}

func (m *Manager) logInfo(message string) {
	if m.logger != nil {
		m.logger.Log(message)
	}
}

func (m *Manager) logSuccess(message string) {
	if m.logger != nil {
		m.logger.LogSuccess(message)
	}
}

func (m *Manager) logWarning(message string) {
	if m.logger != nil {
		m.logger.LogWarning(message)
	}
}

func (m *Manager) logError(message string, err error) {
	if m.logger != nil {
		m.logger.LogError(message, err)
	}
}
