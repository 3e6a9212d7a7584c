// Package config loads service configuration from defaults, an optional YAML
// file, .env files and ACCESS_ROUTER_* environment variables, in that order.
package config

import (
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"access_router/pkg/editor"
	"access_router/pkg/graph"
	"access_router/pkg/routing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ACCESS_ROUTER_"

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Graph    GraphConfig   `yaml:"graph"`
	Editor   EditorConfig  `yaml:"editor"`
	Routing  RoutingConfig `yaml:"routing"`
	Log      LogConfig     `yaml:"log"`
	DataFile string        `yaml:"data_file"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CORSOrigin     string        `yaml:"cors_origin"`
}

type GraphConfig struct {
	MergeToleranceMeters float64 `yaml:"merge_tolerance_meters"`
	MaxSnapMeters        float64 `yaml:"max_snap_meters"`
}

type EditorConfig struct {
	SnapThresholdPixels float64 `yaml:"snap_threshold_pixels"`
	Zoom                float64 `yaml:"zoom"`
}

// AvoidRule is the YAML form of routing.AvoidRule.
type AvoidRule struct {
	Tag        string  `yaml:"tag"`
	Multiplier float64 `yaml:"multiplier"`
}

type RoutingConfig struct {
	// Avoid applies to route requests that carry no avoid list of their own.
	Avoid []AvoidRule `yaml:"avoid"`
}

// Policy converts the configured rules.
func (r RoutingConfig) Policy() routing.Policy {
	p := make(routing.Policy, 0, len(r.Avoid))
	for _, a := range r.Avoid {
		p = append(p, routing.AvoidRule{Tag: graph.Tag(a.Tag), Multiplier: a.Multiplier})
	}
	return p
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			RequestTimeout: 5 * time.Second,
			MaxConcurrent:  runtime.NumCPU() * 2,
		},
		Graph: GraphConfig{
			MergeToleranceMeters: graph.DefaultMergeTolerance,
			MaxSnapMeters:        routing.DefaultMaxSnapMeters,
		},
		Editor: EditorConfig{
			SnapThresholdPixels: editor.DefaultSnapThresholdPixels,
			Zoom:                18,
		},
		Routing: RoutingConfig{
			Avoid: []AvoidRule{{Tag: string(graph.TagHasStairs), Multiplier: routing.DefaultStairsPenalty}},
		},
		Log:      LogConfig{Level: "info", Format: "json"},
		DataFile: "polylines.geojson",
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv copies variables from .env files into the process environment
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides fields from ACCESS_ROUTER_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	strs := map[string]*string{
		"ADDR":        &c.Server.Addr,
		"CORS_ORIGIN": &c.Server.CORSOrigin,
		"LOG_LEVEL":   &c.Log.Level,
		"LOG_FORMAT":  &c.Log.Format,
		"DATA_FILE":   &c.DataFile,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"MERGE_TOLERANCE_METERS": &c.Graph.MergeToleranceMeters,
		"MAX_SNAP_METERS":        &c.Graph.MaxSnapMeters,
		"SNAP_THRESHOLD_PIXELS":  &c.Editor.SnapThresholdPixels,
		"ZOOM":                   &c.Editor.Zoom,
	}
	for key, dst := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"READ_TIMEOUT":    &c.Server.ReadTimeout,
		"WRITE_TIMEOUT":   &c.Server.WriteTimeout,
		"REQUEST_TIMEOUT": &c.Server.RequestTimeout,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*dst = d
		}
	}

	if v, ok := get("MAX_CONCURRENT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%sMAX_CONCURRENT", EnvPrefix)
		}
		c.Server.MaxConcurrent = n
	}

	// ACCESS_ROUTER_AVOID=has_stairs:10,steep:3
	if v, ok := get("AVOID"); ok {
		rules, err := parseAvoid(v)
		if err != nil {
			return errors.Wrapf(err, "%sAVOID", EnvPrefix)
		}
		c.Routing.Avoid = rules
	}
	return nil
}

func parseAvoid(s string) ([]AvoidRule, error) {
	var out []AvoidRule
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, mult, found := strings.Cut(part, ":")
		r := AvoidRule{Tag: strings.TrimSpace(tag), Multiplier: routing.DefaultStairsPenalty}
		if found {
			m, err := strconv.ParseFloat(strings.TrimSpace(mult), 64)
			if err != nil {
				return nil, err
			}
			r.Multiplier = m
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.Wrap(ErrInvalid, "server.addr is empty")
	case c.Server.MaxConcurrent <= 0:
		return errors.Wrapf(ErrInvalid, "server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	case c.Server.RequestTimeout <= 0:
		return errors.Wrapf(ErrInvalid, "server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	case c.Graph.MergeToleranceMeters <= 0:
		return errors.Wrapf(ErrInvalid, "graph.merge_tolerance_meters must be positive, got %v", c.Graph.MergeToleranceMeters)
	case c.Graph.MaxSnapMeters <= 0:
		return errors.Wrapf(ErrInvalid, "graph.max_snap_meters must be positive, got %v", c.Graph.MaxSnapMeters)
	case c.Editor.SnapThresholdPixels <= 0:
		return errors.Wrapf(ErrInvalid, "editor.snap_threshold_pixels must be positive, got %v", c.Editor.SnapThresholdPixels)
	case c.DataFile == "":
		return errors.Wrap(ErrInvalid, "data_file is empty")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalid, "log.format must be json or console, got %q", c.Log.Format)
	}
	if err := c.Routing.Policy().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "routing.avoid: %v", err)
	}
	return nil
}
