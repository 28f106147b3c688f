// Package config loads the application configuration from a YAML file with
// environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath = "."

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env struct {
		Name        string `json:"name" yaml:"name"`
		Development bool   `json:"development" yaml:"development"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	Storage struct {
		// Driver is "postgres" or "memory".
		Driver string `json:"driver" yaml:"driver"`
	} `json:"storage" yaml:"storage"`

	Postgres Postgres `json:"postgres" yaml:"postgres"`

	Redis Redis `json:"redis" yaml:"redis"`

	Receipt Receipt `json:"receipt" yaml:"receipt"`

	CLI struct {
		Operator string `json:"operator" yaml:"operator"`
	} `json:"cli" yaml:"cli"`
}

type Log struct {
	Level string `json:"level" yaml:"level"`
}

type Postgres struct {
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxConns        int32         `json:"maxConns" yaml:"maxConns"`
	MinConns        int32         `json:"minConns" yaml:"minConns"`
	MaxConnLifetime time.Duration `json:"maxConnLifetime" yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `json:"maxConnIdleTime" yaml:"maxConnIdleTime"`
}

// Redis configures the barcode lookup cache. A disabled cache is a no-op.
type Redis struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

type Receipt struct {
	PageSize     int      `json:"pageSize" yaml:"pageSize"`
	StoreLines   []string `json:"storeLines" yaml:"storeLines"`
	TaxID        string   `json:"taxId" yaml:"taxId"`
	DiscountRate string   `json:"discountRate" yaml:"discountRate"`
	TaxRate      string   `json:"taxRate" yaml:"taxRate"`
}

// LoadWithEnv loads <currEnv>.yaml through koanf and overlays environment
// variables. Variables are matched to existing keys segment by segment, so
// POSTGRES_MAXCONNS and POSTGRES_MAX_CONNS both land on postgres.maxConns.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			if filepath.IsAbs(path) {
				searchPaths = append(searchPaths, path)
				continue
			}
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			break
		}
	}
	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// New loads .env when present, then config/<CONSIGNA_ENV>.yaml (default
// "config") searched from the working directory upwards.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	name := os.Getenv("CONSIGNA_ENV")
	if name == "" {
		name = "config"
	}

	cfg, err := LoadWithEnv[Config](name, "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverPostgres
	case DriverPostgres, DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Driver == DriverPostgres && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres driver")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); i++ {
		if segments[i] == "" {
			continue
		}

		// Prefer the longest run of segments naming an existing key.
		matched := false
		for j := len(segments); j > i; j-- {
			key, next, ok := findExistingSegment(current, strings.Join(segments[i:j], ""))
			if !ok {
				continue
			}
			canonical = append(canonical, key)
			current = next
			i = j - 1
			matched = true
			break
		}
		if !matched {
			canonical = append(canonical, segments[i])
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
