package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"shopify-uploader/internal/config"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client) (*geminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
	}
	if model == "" {
		model = config.DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
