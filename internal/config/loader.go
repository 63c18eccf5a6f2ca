package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/unalkalkan/VoiceReader/pkg/types"
	"gopkg.in/yaml.v3"
)

// Speech rate and pitch bounds accepted by the reading session
const (
	MinSpeechSetting = 0.5
	MaxSpeechSetting = 2.0
)

// Load reads and parses the configuration file on top of GetDefault.
// ${VAR} references in the file are expanded and VR_ prefixed environment
// variables override individual settings.
func Load(configPath string) (*types.Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefault()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads configPath when it exists. A missing file yields the
// default configuration with environment overrides applied.
func LoadOrDefault(configPath string) (*types.Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := GetDefault()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// EngineConfig returns the configuration of the named speech engine
func EngineConfig(cfg *types.Config, name string) (types.SpeechEngineConfig, bool) {
	for _, e := range cfg.Speech.Engines {
		if e.Name == name {
			return e, true
		}
	}
	return types.SpeechEngineConfig{}, false
}

// Validate checks if the configuration is valid and fills zero values with defaults
func Validate(cfg *types.Config) error {
	if err := validation.ValidateStruct(&cfg.Server,
		validation.Field(&cfg.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.Server.ReadTimeout, validation.Min(0)),
		validation.Field(&cfg.Server.WriteTimeout, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Store,
		validation.Field(&cfg.Store.Driver, validation.Required, validation.In("sqlite", "postgres", "blob")),
		validation.Field(&cfg.Store.DSN, validation.When(cfg.Store.Driver != "blob", validation.Required)),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	for i := range cfg.Speech.Engines {
		engine := &cfg.Speech.Engines[i]
		if err := validation.ValidateStruct(engine,
			validation.Field(&engine.Name, validation.Required),
			validation.Field(&engine.Type, validation.Required, validation.In("stub", "openai")),
			validation.Field(&engine.Endpoint, validation.When(engine.Enabled && engine.Type == "openai", validation.Required)),
		); err != nil {
			return fmt.Errorf("speech engine %d: %w", i, err)
		}
	}

	// Playback defaults
	if cfg.Playback.Rate == 0 {
		cfg.Playback.Rate = 1.0
	}
	if cfg.Playback.Pitch == 0 {
		cfg.Playback.Pitch = 1.0
	}
	if err := validation.ValidateStruct(&cfg.Playback,
		validation.Field(&cfg.Playback.Rate, validation.Min(MinSpeechSetting), validation.Max(MaxSpeechSetting)),
		validation.Field(&cfg.Playback.Pitch, validation.Min(MinSpeechSetting), validation.Max(MaxSpeechSetting)),
	); err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	if cfg.Library.Concurrency <= 0 {
		cfg.Library.Concurrency = 4 // default
	}
	if cfg.Library.Watch && cfg.Library.Dir == "" {
		return fmt.Errorf("library: dir is required when watch is enabled")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	return validation.ValidateStruct(&cfg.Log,
		validation.Field(&cfg.Log.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&cfg.Log.Format, validation.In("json", "text")),
	)
}

func validateStorage(cfg *types.StorageConfig) error {
	if err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Adapter, validation.Required, validation.In("local", "s3")),
	); err != nil {
		return err
	}

	if cfg.Adapter == "local" {
		if cfg.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		// Ensure base path is absolute
		if !filepath.IsAbs(cfg.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Local.BasePath)
		}
	}

	if cfg.Adapter == "s3" {
		return validation.ValidateStruct(&cfg.S3,
			validation.Field(&cfg.S3.Bucket, validation.Required),
			validation.Field(&cfg.S3.Region, validation.Required),
		)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
// Environment variables should be prefixed with VR_ (VoiceReader)
func applyEnvOverrides(cfg *types.Config) {
	// Server overrides
	if val := os.Getenv("VR_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("VR_SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Storage overrides
	if val := os.Getenv("VR_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("VR_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("VR_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("VR_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("VR_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("VR_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("VR_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	// Store overrides
	if val := os.Getenv("VR_STORE_DRIVER"); val != "" {
		cfg.Store.Driver = val
	}
	if val := os.Getenv("VR_STORE_DSN"); val != "" {
		cfg.Store.DSN = val
	}

	if val := os.Getenv("VR_LIBRARY_DIR"); val != "" {
		cfg.Library.Dir = val
	}
	if val := os.Getenv("VR_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}

	// Engine overrides
	if val := os.Getenv("VR_SPEECH_DEFAULT_ENGINE"); val != "" {
		cfg.Speech.DefaultEngine = val
	}
	for i := range cfg.Speech.Engines {
		prefix := fmt.Sprintf("VR_SPEECH_%s_", strings.ToUpper(cfg.Speech.Engines[i].Name))
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.Speech.Engines[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.Speech.Engines[i].Endpoint = val
		}
	}
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 15,
			CORSOrigins:  []string{"*"},
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/voicereader/storage",
			},
		},
		Store: types.StoreConfig{
			Driver: "sqlite",
			DSN:    "/var/lib/voicereader/reader.db",
		},
		Speech: types.SpeechConfig{
			DefaultEngine: "stub",
			Engines: []types.SpeechEngineConfig{
				{Name: "stub", Type: "stub", Enabled: true},
			},
		},
		Playback: types.PlaybackConfig{
			Rate:  1.0,
			Pitch: 1.0,
		},
		Library: types.LibraryConfig{
			Concurrency: 4,
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
