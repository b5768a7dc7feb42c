// Package config loads pg_exporter's YAML configuration file, applies PGE_-prefixed
// environment overrides, and validates the result before any instance worker starts.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/rustwizard/pg-exporter/internal/collector"
	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/worker"
)

const (
	envPrefix = "PGE_"

	defaultEndpoint    = "/metrics"
	defaultConnTimeout = 5 * time.Second

	dsnValidator = "pg_dsn"
)

// Instance is one configured monitoring target, as recognized by spec.md §6's
// instances.<name>.* keys.
type Instance struct {
	DSN             string            `yaml:"dsn" validate:"required,pg_dsn"`
	ConstLabels     map[string]string `yaml:"const_labels"`
	ExcludeDBNames  []string          `yaml:"exclude_db_names"`
	CollectTopQuery int               `yaml:"collect_top_query" validate:"gte=0"`
	CollectTopIndex int               `yaml:"collect_top_index" validate:"gte=0"`
	CollectTopTable int               `yaml:"collect_top_table" validate:"gte=0"`
	NoTrackMode     bool              `yaml:"no_track_mode"`
}

// Config is pg_exporter's top-level configuration, as loaded from YAML and overridden
// from the environment.
type Config struct {
	ListenAddr string              `yaml:"listen_addr" validate:"required"`
	Endpoint   string              `yaml:"endpoint"`
	Instances  map[string]Instance `yaml:"instances" validate:"required,min=1,dive"`
}

// Load reads and parses the YAML file at path, applies environment overrides, fills in
// defaults and validates the result. It never returns a partially valid Config: on
// error the returned Config is nil.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg, os.Environ())
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults fills in optional keys left unset after the file and environment have
// both been applied.
func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
}

// Validate runs struct-tag validation (DSN shape, listen address, top-N
// non-negativity) and the cross-field checks the tags cannot express, such as the
// §9 open question about constant labels uniquely identifying each instance.
func (c *Config) Validate() error {
	v := validator.New()
	registerCustomValidators(v)

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	warnOnDuplicateConstLabels(c.Instances)
	return nil
}

// Workers builds one worker.Config per configured instance, in sorted name order so
// startup logging and, where it matters, scrape fan-out order are reproducible.
func (c *Config) Workers() []worker.Config {
	names := make([]string, 0, len(c.Instances))
	for name := range c.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]worker.Config, 0, len(names))
	for _, name := range names {
		inst := c.Instances[name]
		out = append(out, worker.Config{
			Name:        name,
			DSN:         inst.DSN,
			ConnTimeout: defaultConnTimeout,
			ConstLabels: inst.ConstLabels,
			Settings: collector.InstanceSettings{
				ExcludeDBNames: inst.ExcludeDBNames,
				TopQuery:       inst.CollectTopQuery,
				TopIndex:       inst.CollectTopIndex,
				TopTable:       inst.CollectTopTable,
				NoTrackMode:    inst.NoTrackMode,
			},
		})
	}
	return out
}

// warnOnDuplicateConstLabels logs a startup warning when two or more instances share an
// identical constant-label set: per spec.md §9, collectors that omit an instance
// discriminator may then emit colliding label tuples.
func warnOnDuplicateConstLabels(instances map[string]Instance) {
	seen := make(map[string][]string)
	for name, inst := range instances {
		key := labelSetKey(inst.ConstLabels)
		seen[key] = append(seen[key], name)
	}
	for key, names := range seen {
		if len(names) > 1 {
			sort.Strings(names)
			log.Warnf("instances %v share identical const_labels (%s); their samples may collide", names, key)
		}
	}
}

func labelSetKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// applyEnvOverrides mutates cfg in place using PGE_-prefixed variables from environ,
// per spec.md §6: PGE_LISTEN_ADDR, PGE_ENDPOINT, and
// PGE_INSTANCES_<NAME>_{DSN,COLLECT_TOP_QUERY,COLLECT_TOP_INDEX,COLLECT_TOP_TABLE,
// NO_TRACK_MODE}. const_labels and exclude_db_names stay file-only: their shape (a
// nested map/list) does not survive a flat KEY=VALUE round trip cleanly, and the
// teacher's own env-override layer (cherts-pgscv's newConfigFromEnv) only covers
// scalar and top-level keys for the same reason.
func applyEnvOverrides(cfg *Config, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		path := strings.ToLower(strings.TrimPrefix(key, envPrefix))

		switch {
		case path == "listen_addr":
			cfg.ListenAddr = value
		case path == "endpoint":
			cfg.Endpoint = value
		case strings.HasPrefix(path, "instances_"):
			applyInstanceEnvOverride(cfg, strings.TrimPrefix(path, "instances_"), value)
		}
	}
}

func applyInstanceEnvOverride(cfg *Config, rest, value string) {
	idx := strings.Index(rest, "_")
	if idx < 0 {
		return
	}
	name, field := rest[:idx], rest[idx+1:]

	if cfg.Instances == nil {
		cfg.Instances = make(map[string]Instance)
	}
	inst := cfg.Instances[name]

	switch field {
	case "dsn":
		inst.DSN = value
	case "collect_top_query":
		inst.CollectTopQuery, _ = strconv.Atoi(value)
	case "collect_top_index":
		inst.CollectTopIndex, _ = strconv.Atoi(value)
	case "collect_top_table":
		inst.CollectTopTable, _ = strconv.Atoi(value)
	case "no_track_mode":
		inst.NoTrackMode, _ = strconv.ParseBool(value)
	default:
		return
	}
	cfg.Instances[name] = inst
}

// registerCustomValidators registers the dsn validation tag used by Instance.DSN,
// following the teacher's pattern of registering custom tag validators (cherts-pgscv's
// "ttl" and "memcached_servers") rather than hand-rolling field checks in Validate.
func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation(dsnValidator, func(fl validator.FieldLevel) bool {
		dsn := fl.Field().String()
		if dsn == "" {
			return false
		}
		// A PostgreSQL DSN is either a keyword/value string ("host=... dbname=...")
		// or a URL ("postgres://..."/"postgresql://..."); reject anything that is
		// obviously neither, full parsing is left to pgx at connect time.
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return true
		}
		return strings.Contains(dsn, "=")
	})
}
