// Package config loads the engine configuration from YAML. Values omitted
// from the file keep their defaults; invalid values are fatal at load time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmistry/ipdrlens/pkg/analysis"
	"github.com/dmistry/ipdrlens/pkg/cluster"
	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// ClusterSettings is the file representation of cluster.Options. Timeout is
// a duration string ("30s", "2m"); empty means no builder-imposed timeout.
type ClusterSettings struct {
	Depth    int    `yaml:"depth"`
	MaxNodes int    `yaml:"max_nodes"`
	Timeout  string `yaml:"timeout"`
	Workers  int    `yaml:"workers"`
}

// GeoEntry is one address in the optional geolocation table.
type GeoEntry struct {
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lon"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`

	Analysis analysis.Config     `yaml:"analysis"`
	Cluster  ClusterSettings     `yaml:"cluster"`
	GeoTable map[string]GeoEntry `yaml:"geo_table"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	opts := cluster.DefaultOptions()
	return &Config{
		LogLevel: "INFO",
		Analysis: analysis.DefaultConfig(),
		Cluster: ClusterSettings{
			Depth:    opts.Depth,
			MaxNodes: opts.MaxNodes,
			Workers:  opts.Workers,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. Errors satisfy errors.Is(err, ipdr.ErrInvalidConfig) for invalid
// values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ipdr.ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section. Fatal at startup, never silently fixed.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	opts, err := c.ClusterOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// ClusterOptions converts the file representation to cluster.Options.
func (c *Config) ClusterOptions() (cluster.Options, error) {
	opts := cluster.Options{
		Depth:    c.Cluster.Depth,
		MaxNodes: c.Cluster.MaxNodes,
		Workers:  c.Cluster.Workers,
	}
	if c.Cluster.Timeout != "" {
		timeout, err := time.ParseDuration(c.Cluster.Timeout)
		if err != nil {
			return opts, fmt.Errorf("%w: cluster.timeout: %v", ipdr.ErrInvalidConfig, err)
		}
		opts.Timeout = timeout
	}
	return opts, nil
}

// GeoLocations converts the geo table to the resolver's input form.
func (c *Config) GeoLocations() map[string]ipdr.Location {
	if len(c.GeoTable) == 0 {
		return nil
	}
	out := make(map[string]ipdr.Location, len(c.GeoTable))
	for addr, entry := range c.GeoTable {
		out[addr] = ipdr.Location{Latitude: entry.Latitude, Longitude: entry.Longitude}
	}
	return out
}
