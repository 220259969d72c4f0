package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/interview-feedback/internal/feedback"
	"github.com/spigell/interview-feedback/internal/logger"
	"github.com/spigell/interview-feedback/internal/server"
)

const (
	storeMemory   = "memory"
	storeMySQL    = "mysql"
	storePostgres = "postgres"
	storeMongo    = "mongo"

	providerGemini = "gemini"
	providerOpenAI = "openai"
)

type Config struct {
	Server   server.Config     `mapstructure:"server"`
	AI       AIConfig          `mapstructure:"ai"`
	Pipeline PipelineConfig    `mapstructure:"pipeline"`
	Store    StoreConfig       `mapstructure:"store"`
	Queue    QueueConfig       `mapstructure:"queue"`
	Log      logger.FileConfig `mapstructure:"log"`
}

type AIConfig struct {
	Provider     string       `mapstructure:"provider"`
	MaxLogLength int          `mapstructure:"max-log-length"`
	Gemini       GeminiConfig `mapstructure:"gemini"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	Backend     string  `mapstructure:"backend"`
	Project     string  `mapstructure:"project"`
	Location    string  `mapstructure:"location"`
	Temperature float32 `mapstructure:"temperature"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base-url"`
	Temperature float32 `mapstructure:"temperature"`
}

type PipelineConfig struct {
	MaxTranscriptRunes   int           `mapstructure:"max-transcript-runes"`
	PreserveTurns        int           `mapstructure:"preserve-turns"`
	MaxRepairs           int           `mapstructure:"max-repairs"`
	MaxGenerationRetries int           `mapstructure:"max-generation-retries"`
	InitialBackoff       time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff           time.Duration `mapstructure:"max-backoff"`
	CallTimeout          time.Duration `mapstructure:"call-timeout"`
}

type StoreConfig struct {
	// Driver is one of memory, mysql, postgres or mongo.
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	DSNFile     string `mapstructure:"dsn-file"`
	AutoMigrate bool   `mapstructure:"auto-migrate"`
	Database    string `mapstructure:"database"`
	Collection  string `mapstructure:"collection"`
}

type QueueConfig struct {
	URL      string `mapstructure:"url"`
	URLFile  string `mapstructure:"url-file"`
	Name     string `mapstructure:"name"`
	Prefetch int    `mapstructure:"prefetch"`
}

// Enabled reports whether a broker is configured.
func (q QueueConfig) Enabled() bool {
	return strings.TrimSpace(q.URL) != "" || strings.TrimSpace(q.URLFile) != ""
}

func (p PipelineConfig) RetryPolicy() feedback.RetryPolicy {
	return feedback.RetryPolicy{
		MaxRepairs:           p.MaxRepairs,
		MaxGenerationRetries: p.MaxGenerationRetries,
		InitialBackoff:       p.InitialBackoff,
		MaxBackoff:           p.MaxBackoff,
		CallTimeout:          p.CallTimeout,
	}
}

// setDefaults registers every key so that AutomaticEnv can fill it on Unmarshal.
func setDefaults(v *viper.Viper) {
	policy := feedback.DefaultRetryPolicy()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read-timeout", 30*time.Second)
	v.SetDefault("server.write-timeout", 6*time.Minute)

	v.SetDefault("ai.provider", providerGemini)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash-001")
	v.SetDefault("ai.gemini.backend", "gemini-api")
	v.SetDefault("ai.gemini.project", "")
	v.SetDefault("ai.gemini.location", "")
	v.SetDefault("ai.gemini.temperature", 0.2)
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.openai.temperature", 0.2)

	v.SetDefault("pipeline.max-transcript-runes", 24000)
	v.SetDefault("pipeline.preserve-turns", 4)
	v.SetDefault("pipeline.max-repairs", policy.MaxRepairs)
	v.SetDefault("pipeline.max-generation-retries", policy.MaxGenerationRetries)
	v.SetDefault("pipeline.initial-backoff", policy.InitialBackoff)
	v.SetDefault("pipeline.max-backoff", policy.MaxBackoff)
	v.SetDefault("pipeline.call-timeout", policy.CallTimeout)

	v.SetDefault("store.driver", storeMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.dsn-file", "")
	v.SetDefault("store.auto-migrate", true)
	v.SetDefault("store.database", "interview_feedback")
	v.SetDefault("store.collection", "feedback")

	v.SetDefault("queue.url", "")
	v.SetDefault("queue.url-file", "")
	v.SetDefault("queue.name", "feedback_jobs")
	v.SetDefault("queue.prefetch", 4)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 100)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 28)
	v.SetDefault("log.compress", false)
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case providerGemini, providerOpenAI:
	default:
		return fmt.Errorf("unsupported ai provider: %q", c.AI.Provider)
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case storeMemory, storeMySQL, storePostgres, storeMongo:
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}

	if c.Pipeline.MaxRepairs < 0 || c.Pipeline.MaxGenerationRetries < 0 {
		return fmt.Errorf("pipeline retry budgets must not be negative")
	}

	worst := c.Pipeline.RetryPolicy().WorstCase()
	budget := server.SubmitTimeout(c.Server.WriteTimeout)
	if budget > 0 && (worst == 0 || worst > budget) {
		return fmt.Errorf("server.write-timeout %s leaves %s for a pipeline run that can take %s; raise it or lower pipeline.call-timeout",
			c.Server.WriteTimeout, budget, describeWorstCase(worst))
	}

	return nil
}

func describeWorstCase(d time.Duration) string {
	if d == 0 {
		return "unbounded time"
	}
	return d.String()
}
