package mirror

import "github.com/goliatone/go-mirror/internal/runtimeconfig"

var (
	ErrSourceDatabaseRequired  = runtimeconfig.ErrSourceDatabaseRequired
	ErrSourceTokenRequired     = runtimeconfig.ErrSourceTokenRequired
	ErrSourceBaseURLRequired   = runtimeconfig.ErrSourceBaseURLRequired
	ErrSourcePageSizeInvalid   = runtimeconfig.ErrSourcePageSizeInvalid
	ErrSourceRateInvalid       = runtimeconfig.ErrSourceRateInvalid
	ErrStorageDriverUnknown    = runtimeconfig.ErrStorageDriverUnknown
	ErrStorageDSNRequired      = runtimeconfig.ErrStorageDSNRequired
	ErrAssetsRootRequired      = runtimeconfig.ErrAssetsRootRequired
	ErrAssetsExtensionInvalid  = runtimeconfig.ErrAssetsExtensionInvalid
	ErrExportDirectoryRequired = runtimeconfig.ErrExportDirectoryRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
	ErrSyncIntervalInvalid     = runtimeconfig.ErrSyncIntervalInvalid
)

type (
	Config        = runtimeconfig.Config
	SourceConfig  = runtimeconfig.SourceConfig
	StorageConfig = runtimeconfig.StorageConfig
	CacheConfig   = runtimeconfig.CacheConfig
	AssetsConfig  = runtimeconfig.AssetsConfig
	ExportConfig  = runtimeconfig.ExportConfig
	LoggingConfig = runtimeconfig.LoggingConfig
	SyncConfig    = runtimeconfig.SyncConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig overlays the YAML file at path on the defaults and fills missing
// secrets and storage locations from the process environment.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.LoadFile(path)
}
