package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/spf13/viper"
)

// Config holds all configuration for mppread
type Config struct {
	Log      LogConfig
	Decode   DecodeConfig
	Calendar calendar.Spec
	Storage  StorageConfig
	Export   ExportConfig
	Shutdown ShutdownConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DecodeConfig struct {
	FormatVersion string // Overrides the version named by the bundle when set
	Workers       int    // Entities decoded in parallel per class
	Normalize     bool   // Normalize timephased work into day spans
	MergePolicy   string // auto, contiguous or same_day
	MaxBundleSize int64  // Maximum encoded and decompressed bundle size in bytes
	Classes       []string
}

type StorageConfig struct {
	Backend   string
	LocalPath string
	// S3/MinIO configuration
	S3Bucket    string
	S3Region    string
	S3Endpoint  string // Custom endpoint for MinIO (e.g., "http://localhost:9000")
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PathStyle bool // Required for MinIO
	// Azure Blob Storage configuration
	AzureConnectionString   string
	AzureAccountName        string
	AzureAccountKey         string
	AzureSASToken           string
	AzureContainer          string
	AzureEndpoint           string // Custom endpoint (for Azurite testing)
	AzureUseManagedIdentity bool
}

type ExportConfig struct {
	Format      string   // json, msgpack, parquet or sqlite
	Compression string   // Parquet compression: snappy, gzip, zstd, none
	Output      string   // Output path or object key prefix
	Pretty      bool     // Indent JSON output
	SortKeys    []string // Per-class sort keys: "class:field1,field2"
	DefaultSort string   // Sort keys for classes not in SortKeys
}

type ShutdownConfig struct {
	TimeoutSeconds int
}

// Load loads configuration from environment and config file
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit config file, or from the
// default search path when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MPPREAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("mppread")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mppread/")
		v.AddConfigPath("$HOME/.mppread/")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// Config file not found is OK, use defaults
		}
	}

	maxBundleSize, err := ParseSize(v.GetString("decode.max_bundle_size"))
	if err != nil {
		return nil, fmt.Errorf("invalid decode.max_bundle_size: %w", err)
	}

	var cal calendar.Spec
	if err := v.UnmarshalKey("calendar", &cal); err != nil {
		return nil, fmt.Errorf("invalid calendar section: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Decode: DecodeConfig{
			FormatVersion: v.GetString("decode.format_version"),
			Workers:       v.GetInt("decode.workers"),
			Normalize:     v.GetBool("decode.normalize"),
			MergePolicy:   v.GetString("decode.merge_policy"),
			MaxBundleSize: maxBundleSize,
			Classes:       v.GetStringSlice("decode.classes"),
		},
		Calendar: cal,
		Storage: StorageConfig{
			Backend:                 v.GetString("storage.backend"),
			LocalPath:               v.GetString("storage.local_path"),
			S3Bucket:                v.GetString("storage.s3_bucket"),
			S3Region:                v.GetString("storage.s3_region"),
			S3Endpoint:              v.GetString("storage.s3_endpoint"),
			S3AccessKey:             v.GetString("storage.s3_access_key"),
			S3SecretKey:             v.GetString("storage.s3_secret_key"),
			S3UseSSL:                v.GetBool("storage.s3_use_ssl"),
			S3PathStyle:             v.GetBool("storage.s3_path_style"),
			AzureConnectionString:   v.GetString("storage.azure_connection_string"),
			AzureAccountName:        v.GetString("storage.azure_account_name"),
			AzureAccountKey:         v.GetString("storage.azure_account_key"),
			AzureSASToken:           v.GetString("storage.azure_sas_token"),
			AzureContainer:          v.GetString("storage.azure_container"),
			AzureEndpoint:           v.GetString("storage.azure_endpoint"),
			AzureUseManagedIdentity: v.GetBool("storage.azure_use_managed_identity"),
		},
		Export: ExportConfig{
			Format:      v.GetString("export.format"),
			Compression: v.GetString("export.compression"),
			Output:      v.GetString("export.output"),
			Pretty:      v.GetBool("export.pretty"),
			SortKeys:    v.GetStringSlice("export.sort_keys"),
			DefaultSort: v.GetString("export.default_sort"),
		},
		Shutdown: ShutdownConfig{
			TimeoutSeconds: v.GetInt("shutdown.timeout_seconds"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Decode defaults
	v.SetDefault("decode.format_version", "")
	v.SetDefault("decode.workers", getDefaultWorkers())
	v.SetDefault("decode.normalize", true)
	v.SetDefault("decode.merge_policy", "auto")
	v.SetDefault("decode.max_bundle_size", "256MB")
	v.SetDefault("decode.classes", []string{})

	// Calendar defaults: Monday to Friday, 08:00-12:00 and 13:00-17:00
	v.SetDefault("calendar.name", "Standard")
	v.SetDefault("calendar.working_days", []string{})
	v.SetDefault("calendar.hours", []string{})
	v.SetDefault("calendar.exceptions", []string{})

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", ".")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)
	v.SetDefault("storage.s3_path_style", false)

	// Export defaults
	v.SetDefault("export.format", "json")
	v.SetDefault("export.compression", "snappy")
	v.SetDefault("export.output", "")
	v.SetDefault("export.pretty", true)
	v.SetDefault("export.sort_keys", []string{})
	v.SetDefault("export.default_sort", "unique_id")

	v.SetDefault("shutdown.timeout_seconds", 30)
}

func getDefaultWorkers() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		return 2
	}
	if workers > 32 {
		return 32
	}
	return workers
}

// Validate checks enumerated settings
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Export.Format) {
	case "json", "msgpack", "parquet", "sqlite":
	default:
		return fmt.Errorf("invalid export.format %q (use json, msgpack, parquet or sqlite)", cfg.Export.Format)
	}
	switch strings.ToLower(cfg.Storage.Backend) {
	case "local", "s3", "minio", "azure", "azblob":
	default:
		return fmt.Errorf("invalid storage.backend %q (use local, s3 or azure)", cfg.Storage.Backend)
	}
	if cfg.Decode.Workers < 1 {
		return fmt.Errorf("decode.workers must be at least 1, got %d", cfg.Decode.Workers)
	}
	if cfg.Shutdown.TimeoutSeconds < 0 {
		return fmt.Errorf("shutdown.timeout_seconds cannot be negative")
	}
	if _, _, err := ParseSortKeys(cfg.Export); err != nil {
		return err
	}
	return nil
}

// ParseSize parses a human-readable size string (e.g., "1GB", "500MB", "100KB") to bytes.
// Supports: B, KB, MB, GB (case-insensitive). "0" disables a limit.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type unitInfo struct {
		suffix     string
		multiplier int64
	}
	units := []unitInfo{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, unit := range units {
		if strings.HasSuffix(sizeStr, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, unit.suffix))

			var num float64
			var trailing string
			n, _ := fmt.Sscanf(numStr, "%f%s", &num, &trailing)
			if n == 0 {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			if trailing != "" {
				return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
			}
			if num < 0 {
				return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	var num int64
	var trailing string
	n, _ := fmt.Sscanf(sizeStr, "%d%s", &num, &trailing)
	if n == 0 || trailing != "" {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}
