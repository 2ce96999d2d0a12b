package farm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is a decoded settings tree, as stored in the system and project
// settings files.
type Settings map[string]any

// ParseSettings decodes a YAML settings document. An empty document yields
// empty settings.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if s == nil {
		s = Settings{}
	}
	return s, nil
}

// LoadSettings reads a YAML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// Lookup walks keys through nested sections.
func (s Settings) Lookup(keys ...string) (any, bool) {
	var cur any = map[string]any(s)
	for _, k := range keys {
		section, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = section[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Section returns the nested section at keys.
func (s Settings) Section(keys ...string) (Settings, bool) {
	v, ok := s.Lookup(keys...)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Settings(m), true
}

// Bool returns the boolean at keys; anything else is false.
func (s Settings) Bool(keys ...string) bool {
	v, ok := s.Lookup(keys...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
