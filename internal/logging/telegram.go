package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"shopify-uploader/internal/config"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramBaseURL = "https://api.telegram.org"

type telegramRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	iconInfo    = "ℹ️"
	iconError   = "❌"
	iconWarning = "⚠️"
	iconSuccess = "✅"
)

// Telegram forwards status lines to a chat through the Bot API.
type Telegram struct {
	creds      config.TelegramBotConfig
	baseURL    string
	httpClient *http.Client
	fallback   *zap.Logger
}

// NewTelegram returns nil when credentials are missing so callers can pass
// the result straight to NewLogger.
func NewTelegram(creds config.TelegramBotConfig, httpClient *http.Client, fallback *zap.Logger) LoggerService {
	if creds.ChatId == "" || creds.Token == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return &Telegram{
		creds:      creds,
		baseURL:    telegramBaseURL,
		httpClient: httpClient,
		fallback:   fallback,
	}
}

func (t *Telegram) Log(value string) {
	t.send(formatMessage(iconInfo, "INFO", value))
}

func (t *Telegram) LogError(value string, err error) {
	if err != nil {
		value = fmt.Sprintf("%s: %v", value, err)
	}
	t.send(formatMessage(iconError, "ERROR", value))
}

func (t *Telegram) LogWarning(value string) {
	t.send(formatMessage(iconWarning, "WARNING", value))
}

func (t *Telegram) LogSuccess(value string) {
	t.send(formatMessage(iconSuccess, "SUCCESS", value))
}

func formatMessage(icon, level, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		v = "-"
	}
	return fmt.Sprintf("%s %s: %s", icon, level, v)
}

func (t *Telegram) send(text string) {
	if t == nil {
		return
	}
	if err := t.sendRequest(text); err != nil {
		t.fallback.Warn("telegram notification failed", zap.Error(err))
	}
}

func (t *Telegram) sendRequest(value string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.baseURL, "/"), t.creds.Token)

	bodyBytes, err := json.Marshal(telegramRequest{
		ChatId: t.creds.ChatId,
		Text:   value,
	})
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Post(url, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
