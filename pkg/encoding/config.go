package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/graphcodec/internal/observability/log"
)

// DefaultMaxDepth is the deepest nesting level an Object may sit at.
const DefaultMaxDepth = 15

// Config describes a Serializer in JSON or YAML.
//
//	max_depth: 15
//	mode: tagged
//	failure_policy: log
//	log_level: warn
//	exclude:
//	  billing.Invoice: [Notes, internalRef]
type Config struct {
	MaxDepth      int                 `json:"max_depth" yaml:"max_depth"`
	Mode          Mode                `json:"mode" yaml:"mode"`
	FailurePolicy string              `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"`
	LogLevel      string              `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Exclude       map[string][]string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// DefaultConfig matches New without options: depth 15, untagged, rethrow, no
// logging.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      DefaultMaxDepth,
		Mode:          Untagged,
		FailurePolicy: PolicyRethrow,
	}
}

// Validate checks that every setting has a known value.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must not be negative, got %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.Mode != Untagged && c.Mode != Tagged {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, uint8(c.Mode))
	}
	if _, err := policyByName(c.FailurePolicy, nil); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	for name := range c.Exclude {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty type name in exclude", ErrInvalidConfig)
		}
	}
	return nil
}

// LoadYAML reads a Config from YAML. Missing keys keep their defaults.
func LoadYAML(r io.Reader) (Config, error) {
	c := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, c.Validate()
}

// LoadJSON reads a Config from JSON. Missing keys keep their defaults.
func LoadJSON(r io.Reader) (Config, error) {
	c := DefaultConfig()
	if err := json.NewDecoder(r).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, c.Validate()
}

// LoadConfigFile reads a .json file as JSON and anything else as YAML.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return LoadYAML(f)
}
