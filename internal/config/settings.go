package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the flat key-value settings document shared with the desktop
// front end. Keys starting with "_" are section comments.
type Settings map[string]any

func DefaultSettings() Settings {
	return Settings{
		"_SYSTEM SETTINGS":        "These are system settings specified in the Settings dialog.",
		"SHOPIFY_STORE_URL":       "",
		"SHOPIFY_ACCESS_TOKEN":    "",
		"_AI_SETTINGS":            "AI settings for taxonomy and description enhancement.",
		"AI_PROVIDER":             "claude",
		"USE_AI_ENHANCEMENT":      false,
		"CLAUDE_API_KEY":          "",
		"CLAUDE_MODEL":            DefaultClaudeModel,
		"OPENAI_API_KEY":          "",
		"OPENAI_MODEL":            DefaultOpenAIModel,
		"_USER SETTINGS":          "These are user settings specified in the main UI.",
		"INPUT_FILE":              "",
		"PRODUCT_OUTPUT_FILE":     "",
		"COLLECTIONS_OUTPUT_FILE": "",
		"LOG_FILE":                "",
		"WINDOW_GEOMETRY":         "900x900",
	}
}

func (s Settings) String(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(t), true
	}
}

// Set stores value, keeping booleans typed for keys that hold one.
func (s Settings) Set(key, value string) {
	if _, isBool := s[key].(bool); isBool {
		if b, err := strconv.ParseBool(value); err == nil {
			s[key] = b
			return
		}
	}
	s[key] = value
}

// Keys returns the non-comment keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type SettingsStore struct {
	path string
}

func NewSettingsStore(path string) *SettingsStore {
	if strings.TrimSpace(path) == "" {
		path = "config.json"
	}
	return &SettingsStore{path: path}
}

func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the document, creating it with defaults when absent. Legacy
// keys are migrated and the document is rewritten when that happens.
func (s *SettingsStore) Load() (Settings, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		settings := DefaultSettings()
		if err := s.Save(settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	settings := Settings{}
	if s.isYAML() {
		err = yaml.Unmarshal(raw, &settings)
	} else {
		err = json.Unmarshal(raw, &settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	if migrateSettings(settings) {
		if err := s.Save(settings); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func (s *SettingsStore) Save(settings Settings) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(map[string]any(settings))
	} else {
		data, err = json.MarshalIndent(settings, "", "    ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *SettingsStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

func migrateSettings(settings Settings) bool {
	changed := false
	if v, ok := settings["OUTPUT_FILE"]; ok {
		if _, exists := settings["PRODUCT_OUTPUT_FILE"]; !exists {
			settings["PRODUCT_OUTPUT_FILE"] = v
		}
		delete(settings, "OUTPUT_FILE")
		changed = true
	}
	if v, ok := settings["USE_CLAUDE_AI"]; ok {
		if _, exists := settings["USE_AI_ENHANCEMENT"]; !exists {
			settings["USE_AI_ENHANCEMENT"] = v
			settings["AI_PROVIDER"] = "claude"
		}
		delete(settings, "USE_CLAUDE_AI")
		changed = true
	}
	defaults := DefaultSettings()
	for _, key := range []string{"PRODUCT_OUTPUT_FILE", "COLLECTIONS_OUTPUT_FILE", "AI_PROVIDER", "USE_AI_ENHANCEMENT", "CLAUDE_API_KEY", "CLAUDE_MODEL", "OPENAI_API_KEY", "OPENAI_MODEL"} {
		if _, ok := settings[key]; !ok {
			settings[key] = defaults[key]
			changed = true
		}
	}
	return changed
}
