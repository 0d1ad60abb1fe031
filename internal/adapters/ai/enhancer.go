package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"shopify-uploader/internal/config"
	"shopify-uploader/internal/logging"
	"strings"
	"time"
)

const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var ErrEmptyResponse = errors.New("ai provider returned no text")

type EnhanceInput struct {
	Title       string
	BodyHTML    string
	ProductType string
	Tags        []string
}

type EnhanceOutput struct {
	BodyHTML          string `json:"body_html"`
	ProductCategory   string `json:"product_category"`
	ShopifyCategoryID string `json:"shopify_category_id"`
}

type Enhancer interface {
	EnhanceProduct(ctx context.Context, in EnhanceInput) (EnhanceOutput, error)
	CollectionDescription(ctx context.Context, title, department string, samples []string) (string, error)
}

// completer sends one system/user exchange and returns the reply text.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service turns product copy into provider prompts and parses the replies.
type Service struct {
	completer  completer
	guidelines string
	logger     logging.LoggerService
}

// New builds the enhancer for cfg.Provider. Guideline files are read once
// and appended to every system prompt.
func New(ctx context.Context, cfg config.AIConfig, httpClient *http.Client, logger logging.LoggerService) (*Service, error) {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var (
		c   completer
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderClaude, "anthropic", "":
		c, err = newAnthropicClient(cfg.ClaudeAPIKey, cfg.ClaudeModel, httpClient)
	case ProviderOpenAI:
		c, err = newOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, httpClient)
	case ProviderGemini:
		c, err = newGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, httpClient)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	guidelines, err := loadGuidelines(cfg.GuidelineFiles)
	if err != nil {
		return nil, err
	}
	return &Service{completer: c, guidelines: guidelines, logger: logger}, nil
}

func loadGuidelines(paths []string) (string, error) {
	var parts []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read ai guideline %s: %w", p, err)
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	return strings.Join(parts, "\n\n"), nil
}

const productSystemPrompt = `You rewrite e-commerce product copy and classify products.
Answer with a single JSON object and nothing else:
{"body_html": "<rewritten HTML description>", "product_category": "<Shopify taxonomy full name, e.g. Home & Garden > Lawn & Garden>", "shopify_category_id": "<gid://shopify/TaxonomyCategory/... or empty>"}
Keep every factual detail of the original description. Do not invent specifications.`

const collectionSystemPrompt = `You write short collection descriptions for an online store.
Answer with 2-3 sentences of plain HTML paragraphs and nothing else.`

func (s *Service) EnhanceProduct(ctx context.Context, in EnhanceInput) (EnhanceOutput, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Title: %s\n", in.Title)
	if in.ProductType != "" {
		fmt.Fprintf(&user, "Department: %s\n", in.ProductType)
	}
	if len(in.Tags) > 0 {
		fmt.Fprintf(&user, "Tags: %s\n", strings.Join(in.Tags, ", "))
	}
	fmt.Fprintf(&user, "Description HTML:\n%s\n", in.BodyHTML)

	reply, err := s.completer.Complete(ctx, s.system(productSystemPrompt), user.String())
	if err != nil {
		return EnhanceOutput{}, err
	}
	out, err := parseEnhanceOutput(reply)
	if err != nil {
		return EnhanceOutput{}, fmt.Errorf("enhance %q: %w", in.Title, err)
	}
	if strings.TrimSpace(out.BodyHTML) == "" {
		out.BodyHTML = in.BodyHTML
	}
	if !strings.HasPrefix(out.ShopifyCategoryID, "gid://shopify/TaxonomyCategory/") {
		out.ShopifyCategoryID = ""
	}
	s.logInfo(fmt.Sprintf("ai enhanced title=%s category=%s", in.Title, out.ProductCategory))
	return out, nil
}

func (s *Service) CollectionDescription(ctx context.Context, title, department string, samples []string) (string, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Collection: %s\n", title)
	if department != "" {
		fmt.Fprintf(&user, "Department: %s\n", department)
	}
	for i, sample := range samples {
		fmt.Fprintf(&user, "Sample product %d:\n%s\n", i+1, sample)
	}
	reply, err := s.completer.Complete(ctx, s.system(collectionSystemPrompt), user.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripFences(reply)), nil
}

func (s *Service) system(base string) string {
	if s.guidelines == "" {
		return base
	}
	return base + "\n\nFollow these guidelines:\n" + s.guidelines
}

// parseEnhanceOutput accepts the object bare, fenced, or surrounded by prose.
func parseEnhanceOutput(reply string) (EnhanceOutput, error) {
	text := stripFences(reply)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return EnhanceOutput{}, fmt.Errorf("no json object in reply: %.80q", reply)
	}
	var out EnhanceOutput
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return EnhanceOutput{}, fmt.Errorf("decode reply: %w", err)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func (s *Service) logInfo(message string) {
	if s.logger != nil {
		s.logger.Log(message)
	}
}
