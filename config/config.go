package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"wa_ingest/models"
)

const (
	SourceDir = "dir"
	SourceS3  = "s3"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Export    ExportConfig
	S3        S3Config
	Database  DatabaseConfig
	Ingest    IngestConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Reference *ReferenceConfig // nil when no reference file exists
}

type ExportConfig struct {
	Source string // dir|s3
	Dir    string
	Ext    string
}

type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ProxyURL        string
}

type DatabaseConfig struct {
	Driver  string
	URL     string
	Path    string
	Migrate bool
}

type IngestConfig struct {
	Timezone      string
	Location      *time.Location
	Workers       int
	ReferenceFile string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type LogConfig struct {
	File    string
	Level   string
	Format  string
	Backups int
}

// Built-in district range, used when the reference file leaves it out.
const (
	DefaultAreaFrom = 1
	DefaultAreaTo   = 70
)

// ReferenceConfig overrides the built-in reference data. Zero fields keep
// the defaults.
type ReferenceConfig struct {
	City     string           `yaml:"city"`
	AreaFrom int              `yaml:"area_from"`
	AreaTo   int              `yaml:"area_to"`
	Features []models.Feature `yaml:"features"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Export: ExportConfig{
			Source: strings.ToLower(getEnv("EXPORT_SOURCE", SourceDir)),
			Dir:    getEnv("EXPORT_DIR", "whatsapp_chat_exports"),
			Ext:    getEnv("EXPORT_EXT", ".txt"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Prefix:          os.Getenv("S3_PREFIX"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			ProxyURL:        os.Getenv("S3_PROXY_URL"),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Path:    getEnv("DB_PATH", "ingest.db"),
			Migrate: getEnvBool("DB_MIGRATE", true),
		},
		Ingest: IngestConfig{
			Timezone:      getEnv("CHAT_TIMEZONE", "Africa/Cairo"),
			Workers:       getEnvInt("INGEST_WORKERS", 1),
			ReferenceFile: getEnv("REFERENCE_FILE", "config/reference.yaml"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("INGEST_CRON"),
		},
		Log: LogConfig{
			File:    getEnv("LOG_FILE", "ingest.log"),
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "console"),
			Backups: getEnvInt("LOG_BACKUPS", 1),
		},
	}

	cfg.Database.Driver = strings.ToLower(os.Getenv("DB_DRIVER"))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
		if cfg.Database.URL != "" {
			cfg.Database.Driver = DriverPostgres
		}
	}

	if interval := os.Getenv("INGEST_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("INGEST_INTERVAL: %w", err)
		}
		cfg.Scheduler.Interval = d
	}

	loc, err := time.LoadLocation(cfg.Ingest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("CHAT_TIMEZONE: %w", err)
	}
	cfg.Ingest.Location = loc

	ref, err := LoadReference(cfg.Ingest.ReferenceFile)
	if err != nil {
		return nil, err
	}
	cfg.Reference = ref

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot default its way out of.
func (c *Config) Validate() error {
	var errs []error
	switch c.Export.Source {
	case SourceDir:
	case SourceS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required with EXPORT_SOURCE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EXPORT_SOURCE %q", c.Export.Source))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required with DB_DRIVER=postgres"))
		}
	case DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}

	if c.Ingest.Workers < 1 {
		errs = append(errs, fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.Ingest.Workers))
	}
	return errors.Join(errs...)
}

// LoadReference reads the reference override file. A missing file is not
// an error and yields nil.
func LoadReference(path string) (*ReferenceConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	var ref ReferenceConfig
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference file %s: %w", path, err)
	}
	from, to := ref.AreaRange()
	if ref.AreaFrom < 0 || ref.AreaTo < 0 || to < from {
		return nil, fmt.Errorf("reference file %s: invalid area range %d..%d", path, from, to)
	}
	return &ref, nil
}

// AreaRange is the district range with the defaults filled in for zero
// bounds. ref may be nil.
func (ref *ReferenceConfig) AreaRange() (from, to int) {
	from, to = DefaultAreaFrom, DefaultAreaTo
	if ref == nil {
		return from, to
	}
	if ref.AreaFrom != 0 {
		from = ref.AreaFrom
	}
	if ref.AreaTo != 0 {
		to = ref.AreaTo
	}
	return from, to
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
