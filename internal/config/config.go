package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
)

// Config holds application configuration.
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Poll       PollConfig       `mapstructure:"poll"`
	Permission PermissionConfig `mapstructure:"permission"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Zotero     ZoteroConfig     `mapstructure:"zotero"`
	Log        LogConfig        `mapstructure:"log"`
	Layout     LayoutConfig     `mapstructure:"layout"`
}

// BackendConfig locates the document service.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds sqlite settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// PollConfig tunes job status polling.
type PollConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	RatePerSecond        float64       `mapstructure:"rate_per_second"`
	MaxTransientFailures int           `mapstructure:"max_transient_failures"`
	Backoff              bool          `mapstructure:"backoff"`
	MaxInterval          time.Duration `mapstructure:"max_interval"`
}

type PermissionConfig struct {
	ReplayOnSuccess bool `mapstructure:"replay_on_success"`
}

// AssistantConfig names the env var holding the OpenAI key. Without a key
// the assistant falls back to the backend chat endpoint.
type AssistantConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"`
}

type ZoteroConfig struct {
	APIKeyEnv    string `mapstructure:"api_key_env"`
	LibraryIDEnv string `mapstructure:"library_id_env"`
}

type LogConfig struct {
	Output   string `mapstructure:"output"`
	Level    string `mapstructure:"level"`
	FilePath string `mapstructure:"file_path"`
}

// LayoutConfig holds the initial divider positions.
type LayoutConfig struct {
	PrimaryPercent   float64 `mapstructure:"primary_percent"`
	SecondaryPercent float64 `mapstructure:"secondary_percent"`
}

// Load reads configuration from file and env. Env var overrides use prefix ACADEMIC_READER_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("storage.path", filepath.Join(os.Getenv("HOME"), ".academic-reader", "reader.db"))
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("poll.rate_per_second", 5.0)
	v.SetDefault("poll.max_transient_failures", 0)
	v.SetDefault("poll.backoff", false)
	v.SetDefault("poll.max_interval", 30*time.Second)
	v.SetDefault("permission.replay_on_success", false)
	v.SetDefault("assistant.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("zotero.api_key_env", "ZOTERO_API_KEY")
	v.SetDefault("zotero.library_id_env", "ZOTERO_LIBRARY_ID")
	v.SetDefault("log.output", "")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file_path", "")
	v.SetDefault("layout.primary_percent", 65.0)
	v.SetDefault("layout.secondary_percent", 50.0)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("ACADEMIC_READER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "academic-reader"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ACADEMIC_READER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Log.FilePath = expandHome(c.Log.FilePath)
	return c, nil
}

// OpenAIKey reads the key from the configured env var.
func (c Config) OpenAIKey() string {
	return os.Getenv(c.Assistant.APIKeyEnv)
}

// ZoteroCredentials reads the library id and key from the configured env vars.
func (c Config) ZoteroCredentials() (libraryID, apiKey string, ok bool) {
	libraryID = os.Getenv(c.Zotero.LibraryIDEnv)
	apiKey = os.Getenv(c.Zotero.APIKeyEnv)
	return libraryID, apiKey, libraryID != "" && apiKey != ""
}

// LoggerConfig converts the log section; empty fields fall back to the
// logger's own env vars and detection.
func (c Config) LoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Output:   c.Log.Output,
		Level:    c.Log.Level,
		FilePath: c.Log.FilePath,
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		return filepath.Join(os.Getenv("HOME"), strings.TrimPrefix(p, "~"))
	}
	return p
}
