package types

// Config represents the overall application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Speech   SpeechConfig   `yaml:"speech" json:"speech"`
	Playback PlaybackConfig `yaml:"playback" json:"playback"`
	Library  LibraryConfig  `yaml:"library" json:"library"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string   `yaml:"host" json:"host"`
	Port         int      `yaml:"port" json:"port"`
	ReadTimeout  int      `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int      `yaml:"write_timeout" json:"write_timeout"` // seconds
	CORSOrigins  []string `yaml:"cors_origins" json:"cors_origins"`
}

// StorageConfig defines blob storage adapter settings
type StorageConfig struct {
	Adapter string            `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local   LocalStorageOpts  `yaml:"local" json:"local"`
	S3      S3StorageOpts     `yaml:"s3" json:"s3"`
	Options map[string]string `yaml:"options" json:"options"` // Additional adapter-specific options
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// StoreConfig selects the reading state store backend
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "sqlite", "postgres" or "blob"
	DSN    string `yaml:"dsn" json:"dsn"`       // sqlite file path or postgres DSN
}

// SpeechConfig lists the speech engines and the one used by default
type SpeechConfig struct {
	DefaultEngine string               `yaml:"default_engine" json:"default_engine"`
	Engines       []SpeechEngineConfig `yaml:"engines" json:"engines"`
}

// SpeechEngineConfig configures a speech engine
type SpeechEngineConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Type     string            `yaml:"type" json:"type"` // "stub" or "openai"
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	APIKey   string            `yaml:"api_key" json:"api_key"`
	Model    string            `yaml:"model" json:"model"`
	Language string            `yaml:"language" json:"language"` // ISO-639-1, empty = English
	Options  map[string]string `yaml:"options" json:"options"`
}

// PlaybackConfig holds initial speech settings
type PlaybackConfig struct {
	Voice string  `yaml:"voice" json:"voice"`
	Rate  float64 `yaml:"rate" json:"rate"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
}

// LibraryConfig configures the document library folder
type LibraryConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	Watch       bool   `yaml:"watch" json:"watch"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json or text
}
