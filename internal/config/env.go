package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source resolves a key from the process environment first and the settings
// document second.
type Source struct {
	settings Settings
	lookup   func(string) (string, bool)
}

func newSource(settings Settings) Source {
	return Source{settings: settings, lookup: os.LookupEnv}
}

// NewSource is used by callers that already hold a settings document.
func NewSource(settings Settings, lookup func(string) (string, bool)) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Source{settings: settings, lookup: lookup}
}

func (s Source) value(key string) (string, bool) {
	if s.lookup != nil {
		if variable, isOk := s.lookup(key); isOk && variable != "" {
			return variable, true
		}
	}
	if variable, isOk := s.settings.String(key); isOk && variable != "" {
		return variable, true
	}
	return "", false
}

func (s Source) stringWithDefault(key, def string) string {
	variable, isOk := s.value(key)
	if !isOk {
		return def
	}
	return variable
}

func (s Source) intWithDefault(key string, def int) (int, error) {
	variable, isOk := s.value(key)
	if !isOk {
		return def, nil
	}
	number, err := strconv.Atoi(strings.TrimSpace(variable))
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return number, nil
}

func (s Source) floatWithDefault(key string, def float64) (float64, error) {
	variable, isOk := s.value(key)
	if !isOk {
		return def, nil
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(variable), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return number, nil
}

func (s Source) boolWithDefault(key string, def bool) (bool, error) {
	variable, isOk := s.value(key)
	if !isOk {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(variable))
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

func (s Source) durationWithDefault(key string, def time.Duration) (time.Duration, error) {
	variable, isOk := s.value(key)
	if !isOk {
		return def, nil
	}
	variable = strings.TrimSpace(variable)
	if seconds, err := strconv.ParseFloat(variable, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(variable)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func (s Source) listWithDefault(key string, def []string) []string {
	variable, isOk := s.value(key)
	if !isOk {
		return def
	}
	var out []string
	for _, part := range strings.Split(variable, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
