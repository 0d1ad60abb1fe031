package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/config"
	"shopify-uploader/internal/logging"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// RequestObserver receives one call per GraphQL round trip.
type RequestObserver interface {
	ObserveRequest(operation string, outcome string, elapsed time.Duration)
}

// Service is everything the uploader needs from the Admin API.
type Service interface {
	ProductService
	CollectionService
	PublicationService
	TaxonomyService
	MetafieldService
	RollbackService
}

type Client struct {
	config     config.ShopifyConfig
	httpClient *http.Client
	logger     logging.LoggerService
	limiter    *rate.Limiter
	observer   RequestObserver
	backoff    func(attempt int) time.Duration

	locationID string
}

type Option func(*Client)

func WithRequestObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func NewClient(config config.ShopifyConfig, httpClient *http.Client, logger logging.LoggerService, opts ...Option) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		backoff:    retryDelay,
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() (string, error) {
	domain := strings.TrimSpace(c.config.ShopDomain)
	if domain == "" {
		return "", errors.New("shopify shop domain is empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	domain = strings.TrimRight(domain, "/")
	if c.config.APIVer == "" {
		return "", errors.New("shopify api version is empty")
	}
	return domain + "/admin/api/" + c.config.APIVer + "/graphql.json", nil
}

func (c *Client) shopifyAPIRequest(ctx context.Context, method string, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp.StatusCode, resp.Status, respBody)
	}

	return respBody, nil
}

// graphqlRequest posts one document. Throttled and rate-limited responses
// are retried with backoff; server errors are retried only for queries so a
// mutation that may have been applied is never sent twice.
func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]any, out any) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(graphQLRequest{
		Query:     strings.TrimSpace(query),
		Variables: variables,
	})
	if err != nil {
		return err
	}

	operation := operationName(query)
	isQuery := isQueryDocument(query)

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		started := time.Now()
		raw, err := c.shopifyAPIRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			if attempt+1 < graphqlRetryMax && shouldRetryHTTP(err, isQuery) {
				c.observe(operation, "retry", started)
				c.logWarning(fmt.Sprintf("shopify %s: %v, retrying attempt=%d", operation, err, attempt+1))
				if err := sleepWithContext(ctx, c.backoff(attempt)); err != nil {
					return err
				}
				continue
			}
			c.observe(operation, "error", started)
			return err
		}

		var resp dto.GraphQLResponse[json.RawMessage]
		if err := json.Unmarshal(raw, &resp); err != nil {
			c.observe(operation, "error", started)
			return fmt.Errorf("shopify %s: decode response: %w", operation, err)
		}
		if len(resp.Errors) > 0 {
			if isThrottleGraphQLError(resp.Errors) && attempt+1 < graphqlRetryMax {
				c.observe(operation, "throttled", started)
				c.logWarning(fmt.Sprintf("shopify %s throttled, retrying attempt=%d", operation, attempt+1))
				if err := sleepWithContext(ctx, c.backoff(attempt)); err != nil {
					return err
				}
				continue
			}
			c.observe(operation, "error", started)
			return &GraphQLError{Operation: operation, Errors: resp.Errors}
		}

		c.observe(operation, "ok", started)
		if out == nil {
			return nil
		}
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			return errors.New("shopify graphql response missing data")
		}
		return json.Unmarshal(resp.Data, out)
	}
}

func (c *Client) observe(operation, outcome string, started time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(operation, outcome, time.Since(started))
}

var operationPattern = regexp.MustCompile(`^\s*(query|mutation)\s+([A-Za-z0-9_]+)`)

func operationName(query string) string {
	if m := operationPattern.FindStringSubmatch(query); len(m) == 3 {
		return m[2]
	}
	return "graphql"
}

func isQueryDocument(query string) bool {
	q := strings.TrimSpace(query)
	return strings.HasPrefix(q, "query") || strings.HasPrefix(q, "{")
}

func (c *Client) logInfo(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.Log(message)
}

func (c *Client) logWarning(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.LogWarning(message)
}

func (c *Client) logSuccess(message string) {
	if c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.LogSuccess(message)
}

func (c *Client) logError(message string, err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.LogError(message, err)
}
