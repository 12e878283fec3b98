package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/turbolytics/registrar/internal/veracode"
	"github.com/turbolytics/registrar/pkg/reconciler"
)

type Logger struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Path  string `yaml:"path"`
}

// Build returns a logger writing to Path, or stderr when Path is empty.
func (l Logger) Build() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if l.Level != "" {
		level, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	if l.Path != "" {
		cfg.OutputPaths = []string{l.Path}
	}
	return cfg.Build()
}

type API struct {
	BaseURL            string  `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds     int     `yaml:"timeout_seconds" validate:"gte=0"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gte=0"`
}

func (a API) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type Credentials struct {
	Path    string `yaml:"path"`
	Profile string `yaml:"profile"`
}

type Reconcile struct {
	AssetType        string `yaml:"asset_type" validate:"required"`
	PageSize         int    `yaml:"page_size" validate:"gt=0"`
	MaxPages         int    `yaml:"max_pages" validate:"gte=0"`
	Owner            string `yaml:"owner"`
	ApplicationValue string `yaml:"application_value" validate:"required"`
}

type LocalConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type S3Config struct {
	Bucket         string `yaml:"bucket" validate:"required"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type Repository struct {
	Type        string       `yaml:"type" validate:"oneof=none local s3"`
	LocalConfig *LocalConfig `yaml:"local" validate:"required_if=Type local"`
	S3Config    *S3Config    `yaml:"s3" validate:"required_if=Type s3"`
}

type Kafka struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type Report struct {
	Repository Repository `yaml:"repository"`
	Parquet    bool       `yaml:"parquet"`
	Kafka      Kafka      `yaml:"kafka"`
}

type Registrar struct {
	Logger      Logger      `yaml:"logger"`
	API         API         `yaml:"api"`
	Credentials Credentials `yaml:"credentials"`
	Reconcile   Reconcile   `yaml:"reconcile"`
	Report      Report      `yaml:"report"`
}

func Default() *Registrar {
	return &Registrar{
		Logger: Logger{
			Level: "info",
			Path:  "registrar.log",
		},
		API: API{
			BaseURL:        veracode.DefaultBaseURL,
			TimeoutSeconds: int(veracode.DefaultTimeout.Seconds()),
		},
		Reconcile: Reconcile{
			AssetType:        reconciler.DefaultAssetType,
			PageSize:         reconciler.DefaultPageSize,
			ApplicationValue: veracode.DefaultApplicationValue,
		},
		Report: Report{
			Repository: Repository{Type: "none"},
		},
	}
}

// NewRegistrarFromFile reads fpath on top of the defaults.
func NewRegistrarFromFile(fpath string) (*Registrar, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	registrar := Default()
	if err := yaml.Unmarshal(bs, registrar); err != nil {
		return nil, err
	}

	return registrar, nil
}

// Override keys bound to command line flags and REGISTRAR_* env vars.
const (
	KeyLogFile   = "log-file"
	KeyLogLevel  = "log-level"
	KeyBaseURL   = "base-url"
	KeyTimeout   = "timeout"
	KeyAssetType = "asset-type"
	KeyPageSize  = "page-size"
	KeyMaxPages  = "max-pages"
	KeyProfile   = "profile"
	KeyCredsFile = "credentials-file"
	KeyReportDir = "report-dir"
)

// ApplyOverrides copies every key explicitly set in v onto the config.
func (r *Registrar) ApplyOverrides(v *viper.Viper) {
	if v.IsSet(KeyLogFile) {
		r.Logger.Path = v.GetString(KeyLogFile)
	}
	if v.IsSet(KeyLogLevel) {
		r.Logger.Level = v.GetString(KeyLogLevel)
	}
	if v.IsSet(KeyBaseURL) {
		r.API.BaseURL = v.GetString(KeyBaseURL)
	}
	if v.IsSet(KeyTimeout) {
		r.API.TimeoutSeconds = v.GetInt(KeyTimeout)
	}
	if v.IsSet(KeyAssetType) {
		r.Reconcile.AssetType = v.GetString(KeyAssetType)
	}
	if v.IsSet(KeyPageSize) {
		r.Reconcile.PageSize = v.GetInt(KeyPageSize)
	}
	if v.IsSet(KeyMaxPages) {
		r.Reconcile.MaxPages = v.GetInt(KeyMaxPages)
	}
	if v.IsSet(KeyProfile) {
		r.Credentials.Profile = v.GetString(KeyProfile)
	}
	if v.IsSet(KeyCredsFile) {
		r.Credentials.Path = v.GetString(KeyCredsFile)
	}
	if v.IsSet(KeyReportDir) {
		r.Report.Repository = Repository{
			Type:        "local",
			LocalConfig: &LocalConfig{Path: v.GetString(KeyReportDir)},
		}
	}
}

var validate = validator.New()

func (r *Registrar) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load builds the effective config: defaults, then the file at fpath if
// any, then overrides from v.
func Load(fpath string, v *viper.Viper) (*Registrar, error) {
	c := Default()
	if fpath != "" {
		var err error
		c, err = NewRegistrarFromFile(fpath)
		if err != nil {
			return nil, &reconciler.SetupError{Message: "loading config " + fpath, Err: err}
		}
	}
	if v != nil {
		c.ApplyOverrides(v)
	}
	if err := c.Validate(); err != nil {
		return nil, &reconciler.SetupError{Message: "validating config", Err: err}
	}
	return c, nil
}
