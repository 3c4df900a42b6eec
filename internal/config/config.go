package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// DefaultPath is where the service looks for its config when --config is
// not given.
const DefaultPath = "/etc/chorecal/config.yaml"

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "Asia/Seoul"
	defaultDatabase      = "/var/lib/chorecal/chorecal.db"
	defaultLookAheadDays = 90
	defaultMaxCandidates = 1000
	defaultReconcile     = "*/30 * * * *"
	defaultConcurrency   = 4
	defaultLogLevel      = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// TemplateSeed is a chore declared in the config file. Seeds are upserted
// into the store at startup, keyed by ID.
type TemplateSeed struct {
	ID    string `yaml:"id" json:"id" validate:"required"`
	Title string `yaml:"title" json:"title" validate:"required"`

	// AnchorDate is YYYY-MM-DD. Empty means the day the seed is first loaded.
	AnchorDate string `yaml:"anchor_date,omitempty" json:"anchor_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// Pattern is nil for a one-off chore.
	Pattern *recurrence.Pattern `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Template converts the seed into a model.Template. today is used when the
// seed has no anchor date.
func (s TemplateSeed) Template(today time.Time) (model.Template, error) {
	anchor := recurrence.DateOf(today)
	if s.AnchorDate != "" {
		d, err := recurrence.ParseDate(s.AnchorDate)
		if err != nil {
			return model.Template{}, fmt.Errorf("template %q: anchor_date: %w", s.ID, err)
		}
		anchor = d
	}
	return model.Template{
		ID:         s.ID,
		Title:      s.Title,
		AnchorDate: anchor,
		Pattern:    s.Pattern,
	}, nil
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA zone that decides which calendar day is "today".
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,timezone"`

	// Database is the SQLite DSN or file path.
	Database string `yaml:"database" json:"database" validate:"required"`

	LookAheadDays int `yaml:"look_ahead_days" json:"look_ahead_days" validate:"gte=1,lte=3660"`
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates" validate:"gte=1,lte=100000"`

	// Reconcile is a standard 5-field cron spec (or a descriptor such as
	// "@hourly") for the periodic fix pass. "off" disables it.
	Reconcile            string `yaml:"reconcile" json:"reconcile" validate:"required,cronspec"`
	ReconcileConcurrency int    `yaml:"reconcile_concurrency" json:"reconcile_concurrency" validate:"gte=1,lte=64"`

	// PreserveTouched stops fixes from deleting occurrences that are no
	// longer pending.
	PreserveTouched bool `yaml:"preserve_touched" json:"preserve_touched"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn warning error"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" validate:"omitempty"`

	Templates []TemplateSeed `yaml:"templates" json:"templates" validate:"dive"`
}

// ReconcileDisabled is the Reconcile value that turns the periodic pass off.
const ReconcileDisabled = "off"

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("cronspec", validateCronSpec)
}

func validateCronSpec(fl validator.FieldLevel) bool {
	spec := fl.Field().String()
	if spec == ReconcileDisabled {
		return true
	}
	_, err := cron.ParseStandard(spec)
	return err == nil
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               defaultListen,
		Timezone:             defaultTimezone,
		Database:             defaultDatabase,
		LookAheadDays:        defaultLookAheadDays,
		MaxCandidates:        defaultMaxCandidates,
		Reconcile:            defaultReconcile,
		ReconcileConcurrency: defaultConcurrency,
		LogLevel:             defaultLogLevel,
		Templates:            []TemplateSeed{},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.LookAheadDays <= 0 {
		c.LookAheadDays = defaultLookAheadDays
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = defaultMaxCandidates
	}
	if c.Reconcile == "" {
		c.Reconcile = defaultReconcile
	}
	if c.ReconcileConcurrency <= 0 {
		c.ReconcileConcurrency = defaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Templates == nil {
		c.Templates = []TemplateSeed{}
	}
}

// Validate checks field constraints and that seed ids are unique.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Templates))
	for _, s := range c.Templates {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("invalid config: duplicate template id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".chorecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
