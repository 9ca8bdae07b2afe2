// Package config loads the finledger.yaml run configuration: per-account
// settings and the grouper alias rules.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/finledger/internal/grouping"
)

// Config is the top-level finledger.yaml configuration.
type Config struct {
	Accounts map[string]AccountConfig `yaml:"accounts,omitempty"`
	Aliases  []AliasConfig            `yaml:"aliases,omitempty"`
}

// AccountConfig tunes extraction and identity for one account scope.
type AccountConfig struct {
	// Format forces an extractor ("qif", "ofx", "csv"); empty means
	// detect from the file itself.
	Format string `yaml:"format,omitempty"`
	// IncludeTypeInID folds the transaction type into the identity
	// hash. Changing it on an account with existing checkpoints or
	// pattern state renumbers every transaction, so it is set once
	// when the account is added.
	IncludeTypeInID bool `yaml:"include_type_in_id,omitempty"`
}

// AliasConfig is one grouper alias rule in YAML form.
type AliasConfig struct {
	Contains []string `yaml:"contains"`
	Key      string   `yaml:"key"`
}

// Load reads a finledger.yaml file. A missing file is a valid empty
// configuration; everything then runs on defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Account returns the configuration for a scope, falling back to the
// zero value for unconfigured accounts.
func (c *Config) Account(scope string) AccountConfig {
	if c.Accounts == nil {
		return AccountConfig{}
	}
	return c.Accounts[scope]
}

// GroupingAliases converts the configured alias rules for the grouper.
// Fragments are matched uppercase against uppercased descriptions.
func (c *Config) GroupingAliases() []grouping.Alias {
	aliases := make([]grouping.Alias, 0, len(c.Aliases))
	for _, a := range c.Aliases {
		contains := make([]string, len(a.Contains))
		for i, fragment := range a.Contains {
			contains[i] = strings.ToUpper(fragment)
		}
		aliases = append(aliases, grouping.Alias{Contains: contains, Key: strings.ToUpper(a.Key)})
	}
	return aliases
}
