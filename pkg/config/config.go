// Package config loads settings from defaults, graph-of-thrones.toml,
// GOT_* environment variables and command line flags, in increasing order of
// priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/logging"
	"github.com/evnp/graph-of-thrones/pkg/matrix"
)

const (
	// DefaultFile is read from the working directory when present.
	DefaultFile = "graph-of-thrones.toml"
	envPrefix   = "GOT_"
)

// Include selects which event lists make a character a participant.
type Include struct {
	Presence bool `koanf:"presence"`
	Primary  bool `koanf:"primary"`
}

// Config holds all configuration for the application.
type Config struct {
	Data        string `koanf:"data"`
	Port        int    `koanf:"port"`
	WebUI       bool   `koanf:"web"`
	Watch       bool   `koanf:"watch"`
	OpenBrowser bool   `koanf:"open"`
	Verbosity   string `koanf:"verbosity"`
	VerboseCnt  int    `koanf:"verbose"`
	JSONLogs    bool   `koanf:"json_logs"`

	Include             Include `koanf:"include"`
	Weighting           string  `koanf:"weighting"`
	CastIncludesPrimary bool    `koanf:"cast_includes_primary"`
	Top                 int     `koanf:"top"`

	Filter filter.Config `koanf:",squash"`

	// File is the config file that was read, empty if none.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"data":                  "data/got.json",
		"port":                  8080,
		"web":                   true,
		"watch":                 false,
		"open":                  false,
		"verbosity":             "",
		"verbose":               0,
		"json_logs":             false,
		"include":               map[string]any{"presence": true, "primary": true},
		"weighting":             string(matrix.WeightCast),
		"cast_includes_primary": true,
		"top":                   10,
		"books":                 []int{},
		"modules":               []int{},
		"months":                []int{},
		"years":                 []int{},
		"include_solo":          true,
		"min_appearances":       filter.DefaultMinAppearances,
	}
}

// RegisterFlags adds the flags Load understands to f.
func RegisterFlags(f *pflag.FlagSet) {
	f.StringP("data", "d", "data/got.json", "Path to the corpus JSON file")
	f.String("config", "", "Config file (default ./"+DefaultFile+" if present)")
	f.IntP("port", "p", 8080, "Port for the web server")
	f.Bool("web", true, "Serve the web UI alongside the API")
	f.BoolP("watch", "w", false, "Reload when the data or config file changes")
	f.Bool("open", false, "Open the browser after starting")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", false, "Log as JSON instead of the compact console format")
	f.Bool("include-presence", true, "Count characters appearing in a chapter")
	f.Bool("include-primary", true, "Count active and point-of-view characters")
	f.String("weighting", string(matrix.WeightCast), "Pair weighting: cast or count")
	f.Bool("cast-includes-primary", true, "Count point-of-view-only characters toward cast size")
	f.Int("top", 10, "Number of strongest pairs in the report")
	f.IntSlice("books", nil, "Only chapters from these books")
	f.IntSlice("modules", nil, "Only chapters from these modules")
	f.IntSlice("months", nil, "Only chapters dated in these months (1-12)")
	f.IntSlice("years", nil, "Only chapters dated in these two-digit years")
	f.Bool("include-solo", true, "Keep chapters with a single character")
	f.Int("min-appearances", filter.DefaultMinAppearances, "Hide characters with fewer chapters")
}

// flagKey maps a flag name onto its config key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	switch key {
	case "include_presence":
		return "include.presence"
	case "include_primary":
		return "include.primary"
	}
	return key
}

// envKey maps GOT_INCLUDE__PRESENCE to include.presence and GOT_MIN_APPEARANCES
// to min_appearances.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Load builds the configuration. Flags are only applied when set
// explicitly; f may be nil.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, explicit := DefaultFile, false
	if f != nil {
		if p, err := f.GetString("config"); err == nil && p != "" {
			path, explicit = p, true
		}
	}
	loadedFile := ""
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else {
		loadedFile = path
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		provider := posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, any) {
			if fl.Name == "config" {
				return "", nil
			}
			return flagKey(fl.Name), posflag.FlagVal(f, fl)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = loadedFile
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Data == "" {
		return errors.New("data: path must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port: %d out of range", c.Port)
	}
	if _, err := matrix.ParseWeighting(c.Weighting); err != nil {
		return fmt.Errorf("weighting: %w", err)
	}
	if !c.Include.Presence && !c.Include.Primary {
		return errors.New("include: at least one of presence or primary must be enabled")
	}
	if c.Filter.MinAppearances < 0 {
		return fmt.Errorf("min_appearances: %d is negative", c.Filter.MinAppearances)
	}
	for _, m := range c.Filter.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("months: %d is not a month", m)
		}
	}
	if c.Top < 0 {
		return fmt.Errorf("top: %d is negative", c.Top)
	}
	return nil
}

// LogLevel resolves verbosity: an explicit level wins, otherwise each -v
// steps down from info.
func (c *Config) LogLevel() slog.Level {
	if c.Verbosity != "" {
		return logging.ParseLevel(c.Verbosity)
	}
	switch {
	case c.VerboseCnt >= 2:
		return logging.LevelTrace
	case c.VerboseCnt == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// CorpusOptions maps the include flags onto corpus indexing.
func (c *Config) CorpusOptions() corpus.Options {
	return corpus.Options{IncludePresence: c.Include.Presence, IncludePrimaryActor: c.Include.Primary}
}

// MatrixOptions maps the weighting settings onto matrix builds.
func (c *Config) MatrixOptions() matrix.Options {
	w, err := matrix.ParseWeighting(c.Weighting)
	if err != nil {
		w = matrix.WeightCast
	}
	return matrix.Options{Weighting: w, CastIncludesPrimary: c.CastIncludesPrimary}
}

type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("not implemented")
}
