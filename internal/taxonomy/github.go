package taxonomy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"strings"
	"time"
)

const (
	DefaultTaxonomyURL = "https://raw.githubusercontent.com/Shopify/product-taxonomy/main/dist/en/categories.txt"
	GitHubCacheName    = "shopify_taxonomy_cache.json"

	defaultCacheMaxAge = 30 * 24 * time.Hour
	categoryGIDPrefix  = "gid://shopify/TaxonomyCategory/"
)

type githubCache struct {
	CachedAt   time.Time  `json:"cached_at"`
	Source     string     `json:"source"`
	Categories []Category `json:"categories"`
}

// GitHubSource reads the published categories.txt and keeps a copy on disk.
// A fresh copy is served without a request; a stale one is used only when
// the download fails.
type GitHubSource struct {
	url        string
	cachePath  string
	maxAge     time.Duration
	httpClient *http.Client
	logger     logging.LoggerService
	now        func() time.Time
}

func NewGitHubSource(cachePath string, httpClient *http.Client, logger logging.LoggerService) *GitHubSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GitHubSource{
		url:        DefaultTaxonomyURL,
		cachePath:  cachePath,
		maxAge:     defaultCacheMaxAge,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *GitHubSource) Categories(ctx context.Context) ([]Category, error) {
	cached, cacheErr := s.readCache()
	if cacheErr == nil && len(cached.Categories) > 0 && s.now().Sub(cached.CachedAt) < s.maxAge {
		s.logInfo(fmt.Sprintf("taxonomy cache hit categories=%d", len(cached.Categories)))
		return cached.Categories, nil
	}

	categories, err := s.fetch(ctx)
	if err != nil {
		if cacheErr == nil && len(cached.Categories) > 0 {
			s.logWarning(fmt.Sprintf("taxonomy download failed, using stale cache categories=%d: %v", len(cached.Categories), err))
			return cached.Categories, nil
		}
		return nil, err
	}

	if err := s.writeCache(categories); err != nil {
		s.logWarning(fmt.Sprintf("taxonomy cache write failed: %v", err))
	}
	s.logInfo(fmt.Sprintf("taxonomy downloaded categories=%d", len(categories)))
	return categories, nil
}

func (s *GitHubSource) fetch(ctx context.Context) ([]Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("taxonomy download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("taxonomy download: %s", resp.Status)
	}
	categories, err := ParseCategoriesText(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("taxonomy download: no categories in %s", s.url)
	}
	return categories, nil
}

// ParseCategoriesText reads "gid://shopify/TaxonomyCategory/CODE : Full > Path"
// lines, skipping anything else.
func ParseCategoriesText(r io.Reader) ([]Category, error) {
	var categories []Category
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		gid, fullName, ok := strings.Cut(line, " : ")
		if !ok {
			continue
		}
		gid = strings.TrimSpace(gid)
		fullName = strings.TrimSpace(fullName)
		if !strings.HasPrefix(gid, categoryGIDPrefix) || fullName == "" {
			continue
		}
		categories = append(categories, Category{ID: gid, FullName: fullName})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	return categories, nil
}

func (s *GitHubSource) readCache() (githubCache, error) {
	var cache githubCache
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return cache, err
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return githubCache{}, err
	}
	return cache, nil
}

func (s *GitHubSource) writeCache(categories []Category) error {
	data, err := json.MarshalIndent(githubCache{
		CachedAt:   s.now(),
		Source:     s.url,
		Categories: categories,
	}, "", "  ")
	if err != nil {
		return err
	}
	return state.WriteFileAtomic(s.cachePath, data)
}

func (s *GitHubSource) logInfo(message string) {
	if s.logger != nil {
		s.logger.Log(message)
	}
}

func (s *GitHubSource) logWarning(message string) {
	if s.logger != nil {
		s.logger.LogWarning(message)
	}
}
