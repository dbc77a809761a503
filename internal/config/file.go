package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// File is a parsed YAML configuration file with dotted-key lookups,
// e.g. Get("scheduler.check_interval"). A missing file behaves as an
// empty one so every lookup falls back to its default.
type File struct {
	values map[string]any
}

// LoadFile reads and parses the YAML file at path.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &File{values: values}, nil
}

// Get resolves a dotted key against the nested document.
func (f *File) Get(key string) (any, bool) {
	if f == nil || f.values == nil {
		return nil, false
	}
	var current any = f.values
	for _, part := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// GetString returns the string at key, or def.
func (f *File) GetString(key, def string) string {
	value, ok := f.Get(key)
	if !ok {
		return def
	}
	s, ok := value.(string)
	if !ok {
		return def
	}
	return s
}

// GetInt returns the integer at key, or def.
func (f *File) GetInt(key string, def int) int {
	value, ok := f.Get(key)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBool returns the boolean at key, or def.
func (f *File) GetBool(key string, def bool) bool {
	value, ok := f.Get(key)
	if !ok {
		return def
	}
	b, ok := value.(bool)
	if !ok {
		return def
	}
	return b
}

// GetDuration returns the duration at key (Go duration string), or def.
func (f *File) GetDuration(key string, def time.Duration) time.Duration {
	value, ok := f.Get(key)
	if !ok {
		return def
	}
	s, ok := value.(string)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
