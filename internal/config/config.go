// Package config handles TOML configuration loading with environment variable
// substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Catalog  CatalogConfig  `toml:"catalog"`
}

type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"`
	LogLevel  string          `toml:"log_level"`
	LogFile   string          `toml:"log_file"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig drives the per-client token bucket. A non-positive rate or
// burst disables limiting.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

func (r RateLimitConfig) Enabled() bool { return r.RPS > 0 && r.Burst > 0 }

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// Duration decodes TOML duration strings like "90m" or "72h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type CacheConfig struct {
	HomeTTL         Duration `toml:"home_ttl"`
	SimilarTTL      Duration `toml:"similar_ttl"`
	JanitorInterval Duration `toml:"janitor_interval"`
}

type CatalogConfig struct {
	PageSize   int              `toml:"page_size"`
	Providers  []ProviderConfig `toml:"providers"`
	HomeGenres []GenreConfig    `toml:"home_genres"`
	Tabs       []TabConfig      `toml:"tabs"`
}

// ProviderConfig is one streaming attribution row on the home page.
type ProviderConfig struct {
	Name    string   `toml:"name"`
	Needles []string `toml:"needles"`
}

// GenreConfig is one genre row on the home page.
type GenreConfig struct {
	Key     string   `toml:"key"`
	Needles []string `toml:"needles"`
}

// TabConfig is one browse tab: either a catalog-wide sort order or a genre.
type TabConfig struct {
	Key   string `toml:"key"`
	Order string `toml:"order"`
	Genre string `toml:"genre"`
}

// Needles returns the genre match strings for a genre tab, expanding the
// provider's alias spellings for science fiction.
func (t TabConfig) Needles() []string {
	return GenreNeedles(t.Genre)
}

// GenreNeedles expands a genre name into its stored alias spellings.
func GenreNeedles(genre string) []string {
	if genre == "" {
		return nil
	}
	if genre == "Science Fiction" {
		return []string{"Science Fiction", "Sci-Fi & Fantasy", "Sci-Fi"}
	}
	return []string{genre}
}

// Load reads and parses the configuration file. An empty path yields the
// built-in defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		content := substituteEnvVars(string(data))
		if _, err := toml.Decode(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8087
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.RateLimit.RPS == 0 {
		cfg.Server.RateLimit.RPS = 3
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 120
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/catalog.db"
	}
	if cfg.Cache.HomeTTL.Duration == 0 {
		cfg.Cache.HomeTTL.Duration = 90 * time.Minute
	}
	if cfg.Cache.SimilarTTL.Duration == 0 {
		cfg.Cache.SimilarTTL.Duration = 72 * time.Hour
	}
	if cfg.Cache.JanitorInterval.Duration == 0 {
		cfg.Cache.JanitorInterval.Duration = time.Hour
	}
	if cfg.Catalog.PageSize == 0 {
		cfg.Catalog.PageSize = 48
	}
	if len(cfg.Catalog.Providers) == 0 {
		cfg.Catalog.Providers = defaultProviders()
	}
	if len(cfg.Catalog.HomeGenres) == 0 {
		cfg.Catalog.HomeGenres = defaultHomeGenres()
	}
	if len(cfg.Catalog.Tabs) == 0 {
		cfg.Catalog.Tabs = defaultTabs()
	}
}

func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "Netflix", Needles: []string{"Netflix"}},
		{Name: "Prime", Needles: []string{"Prime"}},
		{Name: "Max", Needles: []string{"Max"}},
		{Name: "Disney+", Needles: []string{"Disney+", "Disney"}},
		{Name: "AppleTV", Needles: []string{"Apple TV", "AppleTV", "Apple TV+"}},
		{Name: "Paramount", Needles: []string{"Paramount", "Paramount+"}},
	}
}

func defaultHomeGenres() []GenreConfig {
	return []GenreConfig{
		{Key: "Comedy", Needles: []string{"Comedy"}},
		{Key: "Action", Needles: []string{"Action"}},
		{Key: "Horror", Needles: []string{"Horror"}},
		{Key: "Romance", Needles: []string{"Romance"}},
		{Key: "SciFi", Needles: GenreNeedles("Science Fiction")},
		{Key: "Drama", Needles: []string{"Drama"}},
		{Key: "Animation", Needles: []string{"Animation"}},
	}
}

func defaultTabs() []TabConfig {
	tabs := []TabConfig{
		{Key: "popular", Order: "popular"},
		{Key: "rating", Order: "rating"},
		{Key: "recent", Order: "recent"},
	}
	genres := []struct{ key, genre string }{
		{"action", "Action"},
		{"adventure", "Adventure"},
		{"animation", "Animation"},
		{"comedy", "Comedy"},
		{"crime", "Crime"},
		{"documentary", "Documentary"},
		{"drama", "Drama"},
		{"family", "Family"},
		{"fantasy", "Fantasy"},
		{"history", "History"},
		{"horror", "Horror"},
		{"music", "Music"},
		{"mystery", "Mystery"},
		{"romance", "Romance"},
		{"science-fiction", "Science Fiction"},
		{"tv-movie", "TV Movie"},
		{"thriller", "Thriller"},
		{"war", "War"},
		{"western", "Western"},
	}
	for _, g := range genres {
		tabs = append(tabs, TabConfig{Key: g.key, Genre: g.genre})
	}
	return tabs
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
