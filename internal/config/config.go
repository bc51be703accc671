// Package config manages application configuration from config.yaml,
// COMPANION_* environment variables, and default values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components:
// logging, the companion persona, the Gemini client, the history store,
// the retriever, the Telegram transport, the HTTP API, and the scheduler.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Companion CompanionConfig `mapstructure:"companion"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// CompanionConfig is the persona configuration record: static identity
// fields plus the path of the delimited backstory resource.
type CompanionConfig struct {
	Name           string `mapstructure:"name"            validate:"required"`
	Title          string `mapstructure:"title"           validate:"required"`
	ImageURL       string `mapstructure:"image_url"`
	LLM            string `mapstructure:"llm"             validate:"required"`
	BackstoryPath  string `mapstructure:"backstory_path"  validate:"required"`
	MaxReplyLength int    `mapstructure:"max_reply_length" validate:"min=0"`
}

// GeminiConfig holds settings for the Gemini API client.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"             validate:"required"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	EmbeddingModel    string        `mapstructure:"embedding_model"     validate:"required"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0"`
}

// DatabaseConfig holds history store settings. MaxHistoryTurns is the
// "read latest N" policy applied when assembling recent chat history.
type DatabaseConfig struct {
	Path            string `mapstructure:"path"              validate:"required"`
	MaxHistoryTurns int    `mapstructure:"max_history_turns" validate:"min=1,max=500"`
}

// RetrieverConfig holds semantic retrieval and chunking settings.
type RetrieverConfig struct {
	TopK         int `mapstructure:"top_k"         validate:"min=1,max=50"`
	ChunkSize    int `mapstructure:"chunk_size"    validate:"min=100,max=8000"`
	ChunkOverlap int `mapstructure:"chunk_overlap" validate:"min=0"`
}

// TelegramConfig holds transport settings. BotInfo is populated at runtime
// after the bot identity is fetched, not from the config file.
type TelegramConfig struct {
	Token       string       `mapstructure:"token"         validate:"required"`
	AdminUserID int64        `mapstructure:"admin_user_id" validate:"required,gt=0"`
	BotInfo     *models.User `mapstructure:"-"`
}

// HTTPConfig holds settings for the content-indexing API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// ToolsConfig holds endpoints of the external side-capability services.
// An empty endpoint disables the corresponding tool.
type ToolsConfig struct {
	ImageEndpoint  string        `mapstructure:"image_endpoint"  validate:"omitempty,url"`
	SpeechEndpoint string        `mapstructure:"speech_endpoint" validate:"omitempty,url"`
	VideoEndpoint  string        `mapstructure:"video_endpoint"  validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout"         validate:"min=1s,max=10m"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds user-visible transport messages.
type MessagesConfig struct {
	Welcome           string `mapstructure:"welcome"            validate:"required"`
	ErrorUnauthorized string `mapstructure:"error_unauthorized" validate:"required"`
	ResetConfirm      string `mapstructure:"reset_confirm"      validate:"required"`
	ResetError        string `mapstructure:"reset_error"        validate:"required"`
}

// Load reads configuration from the given YAML file, applies defaults and
// COMPANION_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	startTime := time.Now()
	slog.Info("loading configuration", "path", path)

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("COMPANION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("configuration loaded successfully",
		"companion", cfg.Companion.Name,
		"model", cfg.Gemini.ModelName,
		"db_path", cfg.Database.Path,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("companion.max_reply_length", 0)

	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.timeout", 2*time.Minute)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("database.path", "storage.db")
	v.SetDefault("database.max_history_turns", 20)

	v.SetDefault("retriever.top_k", 3)
	v.SetDefault("retriever.chunk_size", 1000)
	v.SetDefault("retriever.chunk_overlap", 500)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("tools.timeout", 2*time.Minute)

	v.SetDefault("messages.welcome", "Hi! Send me a message to start a conversation.")
	v.SetDefault("messages.error_unauthorized", "You are not authorized to use this command.")
	v.SetDefault("messages.reset_confirm", "Conversation history has been cleared.")
	v.SetDefault("messages.reset_error", "Failed to reset conversation history. Please try again later.")
}
