// Package config provides configuration loading for watchtower using Viper.
// Configuration is loaded from YAML files with automatic environment variable binding.
//
// Environment variables use the WATCHTOWER_ prefix and underscore-separated keys:
//   - WATCHTOWER_SERVER_HOST -> server.host
//   - WATCHTOWER_SERVER_PORT -> server.port
//   - WATCHTOWER_RESOLVER_MAX_HOPS -> resolver.max_hops
//   - WATCHTOWER_AUTHORITY_DB_PATH -> authority.db_path
package config

import (
	"os"
	"strconv"
	"strings"
)

// WorkersMode specifies how worker count is determined.
type WorkersMode int

const (
	// WorkersAuto automatically determines worker count based on available CPUs.
	WorkersAuto WorkersMode = iota
	// WorkersFixed uses a specific worker count.
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

// String returns the string representation of the worker setting.
func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

// ServerConfig contains UDP listener settings.
type ServerConfig struct {
	Host       string        `yaml:"host"    mapstructure:"host"`
	Port       int           `yaml:"port"    mapstructure:"port"`
	Workers    WorkerSetting `yaml:"-"       mapstructure:"-"`
	WorkersRaw string        `yaml:"workers" mapstructure:"workers"`
}

// ResolverConfig contains iterative resolver settings.
type ResolverConfig struct {
	RootHintsFile string `yaml:"root_hints_file" mapstructure:"root_hints_file"` // optional override of the compiled-in root hints
	HopTimeout    string `yaml:"hop_timeout"     mapstructure:"hop_timeout"`     // per-hop UDP read budget, e.g. "1s"
	MaxHops       int    `yaml:"max_hops"        mapstructure:"max_hops"`        // delegation chain depth before SERVFAIL
}

// AuthorityConfig contains locally-hosted zone storage settings.
type AuthorityConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// CacheConfig controls the resolver's answer cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// APIConfig contains management API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"    mapstructure:"server"`
	Resolver  ResolverConfig  `yaml:"resolver"  mapstructure:"resolver"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
	Cache     CacheConfig     `yaml:"cache"     mapstructure:"cache"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	API       APIConfig       `yaml:"api"       mapstructure:"api"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("WATCHTOWER_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable overrides.
// This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (WATCHTOWER_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
