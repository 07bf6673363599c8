// Package config loads worker bootstrap settings — control-plane endpoint,
// API key, tenant, concurrency, default driver id — from a config file and
// the process environment, the way contrib/config's Viper-backed Driver
// loads settings for the rest of the retrieved pack. Values resolved here
// feed worker.Option before control-plane-driven values (rule/driver
// records) take over for anything the control plane itself governs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// BootstrapConfig is the worker's local configuration shape, loaded before
// any control-plane call is made.
type BootstrapConfig struct {
	Endpoint        string        `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey          string        `mapstructure:"api_key"`
	TenantID        string        `mapstructure:"tenant_id"`
	Concurrency     int           `mapstructure:"concurrency" validate:"omitempty,min=1"`
	RetryCount      int           `mapstructure:"retry_count" validate:"omitempty,min=0"`
	DefaultDriverID string        `mapstructure:"default_driver_id"`
	ValidateTopics  bool          `mapstructure:"validate_topics"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	OAuth2 OAuth2Section `mapstructure:"oauth2"`
}

// OAuth2Section is the bootstrap shape for client-credentials auth,
// unmarshaled into a *controlplane.OAuth2Config by the integrator.
type OAuth2Section struct {
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
	Audience     string   `mapstructure:"audience"`
}

// DefaultBootstrapConfig mirrors the defaults spec.md assigns to each
// worker option when left unset.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		Concurrency:    1,
		RetryCount:     0,
		ValidateTopics: true,
		RequestTimeout: 10 * time.Second,
	}
}

// Loader reads BootstrapConfig from file, environment, and defaults using
// Viper, the same way contrib/config's Driver does for the rest of the
// retrieved pack.
type Loader struct {
	v *viper.Viper
}

// LoaderOptions configures where and how a Loader reads its config file.
type LoaderOptions struct {
	ConfigName string // file name without extension, default "githook"
	ConfigType string // default "yaml"
	ConfigPath string // default "."
	EnvPrefix  string // default "GITHOOK"
}

func (o LoaderOptions) withDefaults() LoaderOptions {
	if o.ConfigName == "" {
		o.ConfigName = "githook"
	}
	if o.ConfigType == "" {
		o.ConfigType = "yaml"
	}
	if o.ConfigPath == "" {
		o.ConfigPath = "."
	}
	if o.EnvPrefix == "" {
		o.EnvPrefix = "GITHOOK"
	}
	return o
}

// NewLoader builds a Loader. The config file is optional: a missing file is
// not an error, since environment variables and defaults alone are enough
// to run.
func NewLoader(opts LoaderOptions) *Loader {
	opts = opts.withDefaults()

	v := viper.New()
	v.SetConfigName(opts.ConfigName)
	v.SetConfigType(opts.ConfigType)
	v.AddConfigPath(opts.ConfigPath)

	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultBootstrapConfig()
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("retry_count", def.RetryCount)
	v.SetDefault("validate_topics", def.ValidateTopics)
	v.SetDefault("request_timeout", def.RequestTimeout)

	// AutomaticEnv alone isn't enough for Unmarshal to pick up overrides for
	// keys with no prior value in the config file or defaults map, so every
	// bootstrap field gets an explicit binding.
	for _, key := range []string{
		"endpoint", "api_key", "tenant_id", "concurrency", "retry_count",
		"default_driver_id", "validate_topics", "request_timeout",
		"oauth2.token_url", "oauth2.client_id", "oauth2.client_secret",
		"oauth2.scopes", "oauth2.audience",
	} {
		_ = v.BindEnv(key)
	}

	return &Loader{v: v}
}

// Load reads the config file (if present), overlays environment variables,
// unmarshals into a BootstrapConfig, and validates it.
func (l *Loader) Load() (BootstrapConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return BootstrapConfig{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg BootstrapConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return BootstrapConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return BootstrapConfig{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate runs struct-tag validation on cfg using go-playground/validator,
// the same library contrib/validator/playground wraps for the rest of the
// retrieved pack.
func Validate(cfg BootstrapConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid bootstrap config: %w", err)
	}
	return nil
}
