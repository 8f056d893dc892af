package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

// DefaultDebounce is the quiet period before pending changes are persisted
const DefaultDebounce = time.Second

// immutable fields are never overwritten by a shallow merge
var (
	immutableProductFields  = []string{"id", "createdAt"}
	immutableBlogPostFields = []string{"id", "publishedAt"}
)

// Memory keeps products and blog posts in memory and persists them through an optional
// Persister after a quiet period.
type Memory struct {
	mu        sync.RWMutex
	products  []*model.Product
	blogPosts []*model.BlogPost

	persister interfaces.Persister
	seed      *model.Snapshot
	debounce  time.Duration
	logger    *slog.Logger

	saveMu sync.Mutex
	timer  *time.Timer
	closed bool
}

// Option is a functional option for Memory
type Option func(*Memory)

// WithPersister enables persistence
func WithPersister(p interfaces.Persister) Option {
	return func(m *Memory) {
		m.persister = p
	}
}

// WithSeed sets the data used when the persister has nothing stored yet
func WithSeed(seed *model.Snapshot) Option {
	return func(m *Memory) {
		m.seed = seed
	}
}

// WithDebounce sets the quiet period before saving
func WithDebounce(d time.Duration) Option {
	return func(m *Memory) {
		m.debounce = d
	}
}

// WithLogger sets the logger used by background saves
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		m.logger = logger
	}
}

// NewMemory creates an empty data store
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		debounce: DefaultDebounce,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the current records with persisted data. A failing persister leaves the store
// empty and is reported as a warning, not an error.
func (m *Memory) Load(ctx context.Context) {
	var snapshot *model.Snapshot
	if m.persister != nil {
		loaded, err := m.persister.Load(ctx)
		if err != nil {
			logging.From(ctx).Warn("failed to load data, using empty data", "error", err)
			loaded = &model.Snapshot{}
		}
		snapshot = loaded
	}
	if snapshot == nil {
		snapshot = m.seed
	}
	if snapshot == nil {
		snapshot = &model.Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = make([]*model.Product, 0, len(snapshot.Products))
	for _, p := range snapshot.Products {
		m.products = append(m.products, cloneProduct(p))
	}
	m.blogPosts = make([]*model.BlogPost, 0, len(snapshot.BlogPosts))
	for _, p := range snapshot.BlogPosts {
		m.blogPosts = append(m.blogPosts, cloneBlogPost(p))
	}

	logging.From(ctx).Info("loaded data",
		"products", len(m.products),
		"blog_posts", len(m.blogPosts))
}

func (m *Memory) AddProduct(ctx context.Context, product *model.Product) (*model.Product, error) {
	if product == nil {
		return nil, goerr.New("product is nil")
	}
	if product.ID == "" {
		product.ID = model.NewProductID()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.products = append(m.products, cloneProduct(product))
	m.mu.Unlock()

	m.scheduleSave()
	return cloneProduct(product), nil
}

func (m *Memory) UpdateProduct(ctx context.Context, id model.ProductID, updates map[string]any) (*model.Product, error) {
	m.mu.Lock()
	idx := -1
	for i, p := range m.products {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, nil
	}

	current := m.products[idx]
	if len(updates) == 0 {
		m.mu.Unlock()
		return cloneProduct(current), nil
	}

	var merged model.Product
	if err := mergeRecord(current, updates, immutableProductFields, &merged); err != nil {
		m.mu.Unlock()
		return nil, goerr.Wrap(err, "failed to update product", goerr.V("id", id))
	}
	merged.ID = current.ID
	merged.CreatedAt = current.CreatedAt
	m.products[idx] = &merged
	m.mu.Unlock()

	m.scheduleSave()
	return cloneProduct(&merged), nil
}

func (m *Memory) GetProduct(ctx context.Context, id model.ProductID) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.ID == id {
			return cloneProduct(p), nil
		}
	}
	return nil, nil
}

func (m *Memory) ListProducts(ctx context.Context) ([]*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Product, len(m.products))
	for i, p := range m.products {
		out[i] = cloneProduct(p)
	}
	return out, nil
}

func (m *Memory) AddBlogPost(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error) {
	if post == nil {
		return nil, goerr.New("blog post is nil")
	}
	if post.ID == "" {
		post.ID = model.NewBlogPostID()
	}
	if post.PublishedAt.IsZero() {
		post.PublishedAt = time.Now()
	}

	m.mu.Lock()
	m.blogPosts = append(m.blogPosts, cloneBlogPost(post))
	m.mu.Unlock()

	m.scheduleSave()
	return cloneBlogPost(post), nil
}

func (m *Memory) UpdateBlogPost(ctx context.Context, id model.BlogPostID, updates map[string]any) (*model.BlogPost, error) {
	m.mu.Lock()
	idx := -1
	for i, p := range m.blogPosts {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, nil
	}

	current := m.blogPosts[idx]
	if len(updates) == 0 {
		m.mu.Unlock()
		return cloneBlogPost(current), nil
	}

	var merged model.BlogPost
	if err := mergeRecord(current, updates, immutableBlogPostFields, &merged); err != nil {
		m.mu.Unlock()
		return nil, goerr.Wrap(err, "failed to update blog post", goerr.V("id", id))
	}
	merged.ID = current.ID
	merged.PublishedAt = current.PublishedAt
	m.blogPosts[idx] = &merged
	m.mu.Unlock()

	m.scheduleSave()
	return cloneBlogPost(&merged), nil
}

func (m *Memory) GetBlogPost(ctx context.Context, id model.BlogPostID) (*model.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.blogPosts {
		if p.ID == id {
			return cloneBlogPost(p), nil
		}
	}
	return nil, nil
}

func (m *Memory) ListBlogPosts(ctx context.Context) ([]*model.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.BlogPost, len(m.blogPosts))
	for i, p := range m.blogPosts {
		out[i] = cloneBlogPost(p)
	}
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (*model.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &model.Stats{
		TotalProducts:  len(m.products),
		TotalBlogPosts: len(m.blogPosts),
	}
	for _, p := range m.blogPosts {
		stats.TotalViews += p.Views
	}
	return stats, nil
}

// Snapshot returns a deep copy of all records
func (m *Memory) Snapshot() *model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &model.Snapshot{
		Products:  make([]*model.Product, len(m.products)),
		BlogPosts: make([]*model.BlogPost, len(m.blogPosts)),
	}
	for i, p := range m.products {
		s.Products[i] = cloneProduct(p)
	}
	for i, p := range m.blogPosts {
		s.BlogPosts[i] = cloneBlogPost(p)
	}
	return s
}

func (m *Memory) scheduleSave() {
	if m.persister == nil {
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		if err := m.save(context.Background()); err != nil {
			m.logger.Error("failed to save data", "error", err)
		}
	})
}

func (m *Memory) save(ctx context.Context) error {
	if err := m.persister.Save(ctx, m.Snapshot()); err != nil {
		return goerr.Wrap(err, "failed to persist snapshot")
	}
	m.logger.Debug("data saved")
	return nil
}

// Flush cancels any pending debounced save and persists immediately
func (m *Memory) Flush(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}

	m.saveMu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.saveMu.Unlock()

	return m.save(ctx)
}

// Close stops background saves and persists the current records one last time. Changes made
// after Close are kept in memory only.
func (m *Memory) Close(ctx context.Context) error {
	m.saveMu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.saveMu.Unlock()

	if m.persister == nil {
		return nil
	}
	return m.save(ctx)
}

// mergeRecord overlays updates onto the JSON form of current and decodes the result into out
func mergeRecord(current any, updates map[string]any, immutable []string, out any) error {
	raw, err := json.Marshal(current)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal record")
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return goerr.Wrap(err, "failed to unmarshal record")
	}

	for k, v := range updates {
		fields[k] = v
	}
	for _, k := range immutable {
		delete(fields, k)
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal merged record")
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return goerr.Wrap(err, "updates do not match record fields", goerr.V("updates", updates))
	}
	return nil
}

func cloneProduct(p *model.Product) *model.Product {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func cloneBlogPost(p *model.BlogPost) *model.BlogPost {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

var _ interfaces.DataStore = (*Memory)(nil)
