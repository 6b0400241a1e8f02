package zen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultBDDNodeSize  = 10000
	DefaultBDDCacheSize = 5000
	DefaultBDDVarnum    = 4096
	DefaultZ3Timeout    = 30 * time.Second
	DefaultMaxDepth     = 64
)

// Config holds engine settings shared by the command line tools.
type Config struct {
	// Capacity of per-context memo caches.
	CacheSize int `yaml:"cache-size"`

	// Backend is one of "auto", "bdd", "sat" or "z3".
	Backend string `yaml:"backend"`

	BDD      BDDConfig      `yaml:"bdd"`
	Z3       Z3Config       `yaml:"z3"`
	Generate GenerateConfig `yaml:"generate"`
}

// BDDConfig sizes the decision diagram tables.
type BDDConfig struct {
	NodeSize  int `yaml:"node-size"`
	CacheSize int `yaml:"cache-size"`

	// Number of diagram variables. Every bit of every variable in a query
	// needs one, and state sets need two per bit.
	Varnum int `yaml:"varnum"`
}

// Z3Config configures the general backend.
type Z3Config struct {
	Timeout time.Duration `yaml:"timeout"`
}

// GenerateConfig configures path enumeration.
type GenerateConfig struct {
	MaxDepth int    `yaml:"max-depth"`
	Searcher string `yaml:"searcher"`
	Seed     int64  `yaml:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheSize: DefaultCacheSize,
		Backend:   BackendAuto,
		BDD: BDDConfig{
			NodeSize:  DefaultBDDNodeSize,
			CacheSize: DefaultBDDCacheSize,
			Varnum:    DefaultBDDVarnum,
		},
		Z3: Z3Config{
			Timeout: DefaultZ3Timeout,
		},
		Generate: GenerateConfig{
			MaxDepth: DefaultMaxDepth,
			Searcher: SearcherDFS,
		},
	}
}

// LoadConfig reads a YAML configuration file. Unset fields keep their
// default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration data over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error if the configuration names an unknown backend
// or searcher.
func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case BackendAuto, BackendBDD, BackendSAT, BackendZ3:
	default:
		return fmt.Errorf("invalid config: unknown backend %q", cfg.Backend)
	}
	switch cfg.Generate.Searcher {
	case SearcherDFS, SearcherBFS, SearcherRandom:
	default:
		return fmt.Errorf("invalid config: unknown searcher %q", cfg.Generate.Searcher)
	}
	if cfg.BDD.Varnum < 1 {
		return fmt.Errorf("invalid config: bdd varnum must be positive")
	}
	if cfg.Z3.Timeout < 0 {
		return fmt.Errorf("invalid config: negative z3 timeout")
	}
	return nil
}
