package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSourceDatabaseRequired = errors.New("mirror config: source database id is required")
var ErrSourceTokenRequired = errors.New("mirror config: source api key is required")
var ErrSourceBaseURLRequired = errors.New("mirror config: source base url is required")
var ErrSourcePageSizeInvalid = errors.New("mirror config: source page size must be between 1 and 100")
var ErrSourceRateInvalid = errors.New("mirror config: source requests per second must be positive")
var ErrStorageDriverUnknown = errors.New("mirror config: storage driver is invalid")
var ErrStorageDSNRequired = errors.New("mirror config: storage dsn is required")
var ErrAssetsRootRequired = errors.New("mirror config: asset storage root is required")
var ErrAssetsExtensionInvalid = errors.New("mirror config: asset default extension must start with a dot")
var ErrExportDirectoryRequired = errors.New("mirror config: export directory is required when export is enabled")
var ErrLoggingProviderUnknown = errors.New("mirror config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("mirror config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("mirror config: logging format is invalid")
var ErrSyncIntervalInvalid = errors.New("mirror config: sync interval must be zero or positive")

// Config aggregates everything a mirror pass needs: where documents come
// from, where they are persisted, and how assets and exports are laid out.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Assets  AssetsConfig  `yaml:"assets"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
	Sync    SyncConfig    `yaml:"sync"`
}

// SourceConfig configures the remote document database client.
type SourceConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
	DatabaseID string `yaml:"database_id"`
	// StatusProperty and StatusValue select the "active" document set.
	StatusProperty    string        `yaml:"status_property"`
	StatusValue       string        `yaml:"status_value"`
	SortProperty      string        `yaml:"sort_property"`
	PageSize          int           `yaml:"page_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// StorageConfig selects the relational backend.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	InitSchema bool   `yaml:"init_schema"`
	Debug      bool   `yaml:"debug"`
}

// CacheConfig toggles the tag lookup cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// AssetsConfig controls where downloaded binaries land and how they are refreshed.
type AssetsConfig struct {
	StorageRoot      string        `yaml:"storage_root"`
	WebBasePath      string        `yaml:"web_base_path"`
	DefaultExtension string        `yaml:"default_extension"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	MaxBytes         int64         `yaml:"max_bytes"`
	// RefreshPrimary re-downloads cover images even when the file exists.
	RefreshPrimary bool `yaml:"refresh_primary"`
	// RefreshBody re-downloads body images even when the file exists.
	RefreshBody bool `yaml:"refresh_body"`
}

// ExportConfig configures the markdown file export.
type ExportConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Directory  string `yaml:"directory"`
	RenderHTML bool   `yaml:"render_html"`
}

// LoggingConfig selects the logger provider.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// SyncConfig controls pass scheduling.
type SyncConfig struct {
	DryRun bool `yaml:"dry_run"`
	// Interval repeats passes in-process; zero runs a single pass.
	Interval time.Duration `yaml:"interval"`
	// CronExpression registers the pass with a cron registrar when set.
	CronExpression string        `yaml:"cron_expression"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DefaultConfig returns defaults matching the hosted Notion API and a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			BaseURL:           "https://api.notion.com/v1",
			APIVersion:        "2022-06-28",
			StatusProperty:    "Status",
			StatusValue:       "발행됨",
			SortProperty:      "PublishedDate",
			PageSize:          100,
			RequestsPerSecond: 3,
			Burst:             1,
			Timeout:           30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     "sqlite3",
			DSN:        "file:mirror.db?_fk=1",
			InitSchema: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Assets: AssetsConfig{
			StorageRoot:      "images",
			WebBasePath:      "/api/images",
			DefaultExtension: ".png",
			FetchTimeout:     10 * time.Second,
			ProbeTimeout:     5 * time.Second,
			MaxBytes:         20 << 20,
			RefreshPrimary:   true,
			RefreshBody:      false,
		},
		Export: ExportConfig{
			Directory: "content",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Sync: SyncConfig{
			Timeout: 30 * time.Minute,
		},
	}
}

// Validate performs consistency checks. Credentials are only required when
// RequireCredentials is called; tests and dry wiring can skip them.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Source.BaseURL) == "" {
		return ErrSourceBaseURLRequired
	}
	if cfg.Source.PageSize < 1 || cfg.Source.PageSize > 100 {
		return fmt.Errorf("%w: %d", ErrSourcePageSizeInvalid, cfg.Source.PageSize)
	}
	if cfg.Source.RequestsPerSecond <= 0 {
		return ErrSourceRateInvalid
	}
	switch normalize(cfg.Storage.Driver) {
	case "sqlite3", "sqlite", "postgres", "pg":
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, cfg.Storage.Driver)
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		return ErrStorageDSNRequired
	}
	if strings.TrimSpace(cfg.Assets.StorageRoot) == "" {
		return ErrAssetsRootRequired
	}
	if ext := strings.TrimSpace(cfg.Assets.DefaultExtension); ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("%w: %s", ErrAssetsExtensionInvalid, ext)
	}
	if cfg.Export.Enabled && strings.TrimSpace(cfg.Export.Directory) == "" {
		return ErrExportDirectoryRequired
	}
	if cfg.Sync.Interval < 0 {
		return ErrSyncIntervalInvalid
	}
	return cfg.validateLogging()
}

// RequireCredentials reports missing remote credentials.
func (cfg Config) RequireCredentials() error {
	if strings.TrimSpace(cfg.Source.APIKey) == "" {
		return ErrSourceTokenRequired
	}
	if strings.TrimSpace(cfg.Source.DatabaseID) == "" {
		return ErrSourceDatabaseRequired
	}
	return nil
}

func (cfg Config) validateLogging() error {
	provider := normalize(cfg.Logging.Provider)
	switch provider {
	case "", "console", "gologger":
	default:
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := normalize(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		switch normalize(cfg.Logging.Format) {
		case "", "json", "console", "pretty":
		default:
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, cfg.Logging.Format)
		}
	}
	return nil
}

func isSupportedLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
