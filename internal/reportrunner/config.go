package reportrunner

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "reportrunner"

// ConnConfig describes how to reach the database. Credential is a reference
// (env:NAME or file:PATH), never the password itself.
type ConnConfig struct {
	Driver     string            `yaml:"driver,omitempty" envconfig:"DB_DRIVER" validate:"required,oneof=mysql postgres sqlite"`
	URL        string            `yaml:"url,omitempty" envconfig:"DB_URL"`
	Host       string            `yaml:"host,omitempty" envconfig:"DB_HOST" validate:"required_unless=Driver sqlite"`
	Port       int               `yaml:"port,omitempty" envconfig:"DB_PORT" validate:"omitempty,min=1,max=65535"`
	Database   string            `yaml:"database,omitempty" envconfig:"DB_NAME" validate:"required"`
	User       string            `yaml:"user,omitempty" envconfig:"DB_USER" validate:"required_unless=Driver sqlite"`
	Credential string            `yaml:"credential,omitempty" envconfig:"DB_CREDENTIAL"`
	Params     map[string]string `yaml:"params,omitempty" envconfig:"DB_PARAMS"`
}

// fileConfig is the layout of reportrunner.yaml.
type fileConfig struct {
	Connection ConnConfig            `yaml:"connection"`
	Profiles   map[string]ConnConfig `yaml:"profiles,omitempty"`
	Reports    []reportDef           `yaml:"reports,omitempty"`
}

var defaultConfigPaths = []string{
	"reportrunner.yaml",
	"reportrunner.yml",
	".reportrunner.yaml",
}

func defaultConnConfig() ConnConfig {
	return ConnConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Database: "parcial3",
		User:     "root",
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".reportrunner"
	}
	return filepath.Join(home, ".reportrunner")
}

func defaultHistoryFile() string {
	return filepath.Join(defaultConfigDir(), "history.jsonl")
}

// findConfigFile returns the explicit path, or the first default location that exists.
func findConfigFile(explicit string) (string, bool) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, true
	}
	candidates := append(append([]string(nil), defaultConfigPaths...), filepath.Join(defaultConfigDir(), "config.yaml"))
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func loadConfigFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if strings.TrimSpace(string(raw)) == "" {
		return fc, nil
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func loadEnvFile(path string, explicit bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func envConnConfig() (ConnConfig, error) {
	var cfg ConnConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return ConnConfig{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// overlay copies every field set in o over c.
func (c *ConnConfig) overlay(o ConnConfig) {
	if v := strings.TrimSpace(o.Driver); v != "" {
		c.Driver = v
	}
	if v := strings.TrimSpace(o.URL); v != "" {
		c.URL = v
	}
	if v := strings.TrimSpace(o.Host); v != "" {
		c.Host = v
	}
	if o.Port > 0 {
		c.Port = o.Port
	}
	if v := strings.TrimSpace(o.Database); v != "" {
		c.Database = v
	}
	if v := strings.TrimSpace(o.User); v != "" {
		c.User = v
	}
	if v := strings.TrimSpace(o.Credential); v != "" {
		c.Credential = v
	}
	if len(o.Params) > 0 {
		if c.Params == nil {
			c.Params = make(map[string]string, len(o.Params))
		}
		for k, v := range o.Params {
			c.Params[k] = v
		}
	}
}

// expandURL returns c with the fields of its own URL applied over it, so a
// URL only competes with the layer that set it.
func (c ConnConfig) expandURL() (ConnConfig, error) {
	if strings.TrimSpace(c.URL) == "" {
		return c, nil
	}
	fromURL, err := parseConnectionURL(c.URL)
	if err != nil {
		return ConnConfig{}, err
	}
	c.Params = maps.Clone(c.Params)
	c.overlay(fromURL)
	return c, nil
}

// finalize normalizes the driver, fills the default port and validates.
func (c *ConnConfig) finalize() error {
	driver, err := normalizeDriver(c.Driver)
	if err != nil {
		return err
	}
	c.Driver = driver

	if c.Port == 0 {
		switch c.Driver {
		case "mysql":
			c.Port = 3306
		case "postgres":
			c.Port = 5432
		}
	}

	return validateConnConfig(*c)
}

func normalizeDriver(v string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(v))
	switch t {
	case "mysql", "postgres", "sqlite":
		return t, nil
	case "postgresql", "pg", "pgx":
		return "postgres", nil
	case "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (expected mysql|postgres|sqlite)", v)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConnConfig(c ConnConfig) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid connection config: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_unless":
			problems = append(problems, field+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of %s", field, fe.Param()))
		case "min", "max":
			problems = append(problems, fmt.Sprintf("%s %v is out of range", field, fe.Value()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid connection config: %s", strings.Join(problems, "; "))
}

// parseConnectionURL reads scheme://[user@]host:port/database. A jdbc: prefix is
// accepted. Passwords in the URL are rejected; use a credential reference.
func parseConnectionURL(raw string) (ConnConfig, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "jdbc:")

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return ConnConfig{}, fmt.Errorf("connection url %q must look like scheme://host:port/database", raw)
	}

	driver, err := normalizeDriver(scheme)
	if err != nil {
		return ConnConfig{}, err
	}

	if driver == "sqlite" {
		if rest == "" {
			return ConnConfig{}, errors.New("sqlite url needs a database path")
		}
		return ConnConfig{Driver: driver, Database: rest}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return ConnConfig{}, fmt.Errorf("parse connection url: %w", err)
	}

	cfg := ConnConfig{
		Driver:   driver,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return ConnConfig{}, fmt.Errorf("connection url port %q: %w", p, err)
		}
		cfg.Port = port
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			return ConnConfig{}, errors.New("connection url must not carry a password; use a credential reference (env:NAME or file:PATH)")
		}
		cfg.User = u.User.Username()
	}
	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}

	return cfg, nil
}
