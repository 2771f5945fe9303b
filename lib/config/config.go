// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// productionMinDelay is the floor the timelock delay may not be
// configured below in production.
const productionMinDelay = 24 * time.Hour

// Config is the master configuration for a Custodia host.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Roles configures the platform's privileged identities.
	Roles RolesConfig `yaml:"roles"`

	// Timelock configures the admin operation queue.
	Timelock TimelockConfig `yaml:"timelock"`

	// Router configures the operator execution module.
	Router RouterConfig `yaml:"router"`

	// Audit configures the hash-chained event log.
	Audit AuditConfig `yaml:"audit"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Timelock *TimelockConfig `yaml:"timelock,omitempty"`
	Router   *RouterConfig   `yaml:"router,omitempty"`
	Audit    *AuditConfig    `yaml:"audit,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Custodia data.
	Root string `yaml:"root"`

	// Database is where the SQLite databases (timelock queue, audit
	// log) live.
	Database string `yaml:"database"`

	// Genesis is the path to the JSONC genesis seed file.
	Genesis string `yaml:"genesis"`
}

// RolesConfig names the privileged identities. Addresses are
// 0x-prefixed hex strings, parsed by the accessor methods.
type RolesConfig struct {
	// Admin is the identity matured timelock operations execute as.
	Admin string `yaml:"admin"`

	// Proposers may schedule timelock operations.
	Proposers []string `yaml:"proposers"`

	// Executors may execute matured timelock operations.
	Executors []string `yaml:"executors"`

	// Emergency holders get the instant revocation paths.
	Emergency []string `yaml:"emergency"`
}

// AdminAddress parses the admin identity.
func (r RolesConfig) AdminAddress() (ref.Address, error) {
	addr, err := ref.ParseAddress(r.Admin)
	if err != nil {
		return ref.Address{}, fmt.Errorf("roles.admin: %w", err)
	}
	return addr, nil
}

// ProposerAddresses parses the proposer set.
func (r RolesConfig) ProposerAddresses() ([]ref.Address, error) {
	return parseAddresses("roles.proposers", r.Proposers)
}

// ExecutorAddresses parses the executor set.
func (r RolesConfig) ExecutorAddresses() ([]ref.Address, error) {
	return parseAddresses("roles.executors", r.Executors)
}

// EmergencyAddresses parses the emergency set.
func (r RolesConfig) EmergencyAddresses() ([]ref.Address, error) {
	return parseAddresses("roles.emergency", r.Emergency)
}

func parseAddresses(field string, raw []string) ([]ref.Address, error) {
	out := make([]ref.Address, len(raw))
	for i, s := range raw {
		addr, err := ref.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out[i] = addr
	}
	return out, nil
}

// TimelockConfig configures the admin operation queue.
type TimelockConfig struct {
	// MinDelay is how long a proposal must wait before execution,
	// as a Go duration string. Default: 24h. Production enforces a
	// 24h floor.
	MinDelay string `yaml:"min_delay"`
}

// Delay parses the configured minimum delay.
func (c TimelockConfig) Delay() (time.Duration, error) {
	d, err := time.ParseDuration(c.MinDelay)
	if err != nil {
		return 0, fmt.Errorf("timelock.min_delay: %w", err)
	}
	return d, nil
}

// RouterConfig configures the operator execution module.
type RouterConfig struct {
	// MaxOperators bounds the credential set. Default: 10.
	MaxOperators int `yaml:"max_operators"`
}

// AuditConfig configures the hash-chained event log.
type AuditConfig struct {
	// CompressThreshold is the payload size in bytes above which
	// event payloads are compressed at rest. Negative disables
	// compression. Default: 256.
	CompressThreshold int `yaml:"compress_threshold"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "custodia")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Database: filepath.Join(defaultRoot, "db"),
			Genesis:  filepath.Join(defaultRoot, "genesis.jsonc"),
		},
		Timelock: TimelockConfig{
			MinDelay: "24h",
		},
		Router: RouterConfig{
			MaxOperators: 10,
		},
		Audit: AuditConfig{
			CompressThreshold: 256,
		},
	}
}

// Load loads configuration from the CUSTODIA_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if CUSTODIA_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("CUSTODIA_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CUSTODIA_CONFIG environment variable not set; " +
			"set it to the path of your custodia.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values - this ensures deterministic, auditable
// configuration. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
		if overrides.Paths.Genesis != "" {
			c.Paths.Genesis = overrides.Paths.Genesis
		}
	}

	if overrides.Timelock != nil {
		if overrides.Timelock.MinDelay != "" {
			c.Timelock.MinDelay = overrides.Timelock.MinDelay
		}
	}

	if overrides.Router != nil {
		if overrides.Router.MaxOperators != 0 {
			c.Router.MaxOperators = overrides.Router.MaxOperators
		}
	}

	if overrides.Audit != nil {
		if overrides.Audit.CompressThreshold != 0 {
			c.Audit.CompressThreshold = overrides.Audit.CompressThreshold
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CUSTODIA_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CUSTODIA_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Genesis = expandVars(c.Paths.Genesis, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}

	if admin, err := c.Roles.AdminAddress(); err != nil {
		errs = append(errs, err)
	} else if admin.IsZero() {
		errs = append(errs, fmt.Errorf("roles.admin must not be the zero address"))
	}
	if len(c.Roles.Proposers) == 0 {
		errs = append(errs, fmt.Errorf("roles.proposers must name at least one address"))
	} else if _, err := c.Roles.ProposerAddresses(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Roles.Executors) == 0 {
		errs = append(errs, fmt.Errorf("roles.executors must name at least one address"))
	} else if _, err := c.Roles.ExecutorAddresses(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Roles.EmergencyAddresses(); err != nil {
		errs = append(errs, err)
	}

	delay, err := c.Timelock.Delay()
	switch {
	case err != nil:
		errs = append(errs, err)
	case delay <= 0:
		errs = append(errs, fmt.Errorf("timelock.min_delay must be positive"))
	case c.Environment == Production && delay < productionMinDelay:
		errs = append(errs, fmt.Errorf("timelock.min_delay %s is below the production floor %s", delay, productionMinDelay))
	}

	if c.Router.MaxOperators < 0 {
		errs = append(errs, fmt.Errorf("router.max_operators must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Database,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
