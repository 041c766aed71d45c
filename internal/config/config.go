// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sparkai/config.yaml)
//  3. Default values
//
// Two PostgreSQL databases are configured: the knowledge database holding
// embedded medical-knowledge chunks, and the profile database exposing the
// denormalized per-user view. Sensitive values are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidSetting indicates a configuration value failed validation.
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrInvalidPort indicates a database port outside the valid range.
	ErrInvalidPort = errors.New("invalid database port")

	// ErrInvalidOllamaURL indicates the Ollama base URL is malformed.
	ErrInvalidOllamaURL = errors.New("invalid ollama URL")

	// ErrInvalidChunking indicates chunk size/overlap values that cannot
	// produce a terminating split.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
)

// Default model and sampling parameters. Sampling values are configuration,
// not per-call constants, per the generation client contract.
const (
	DefaultEmbeddingModel  = "nomic-embed-text"
	DefaultGenerationModel = "llama3.2"

	DefaultTemperature     = 0.5
	DefaultTopP            = 0.9
	DefaultTopK            = 40
	DefaultMaxOutputTokens = 512

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100

	// DefaultRetrievalTopK is the number of knowledge chunks retrieved per
	// query.
	DefaultRetrievalTopK = 2
)

// Config stores the application's startup configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Knowledge database (medical chunks + embeddings)
	DBHost     string `mapstructure:"db_host" json:"db_host"`
	DBPort     int    `mapstructure:"db_port" json:"db_port"`
	DBUser     string `mapstructure:"db_user" json:"db_user"`
	DBPassword string `mapstructure:"db_password" json:"db_password"` // SENSITIVE: masked in MarshalJSON
	DBName     string `mapstructure:"db_name" json:"db_name"`
	DBSSLMode  string `mapstructure:"db_ssl_mode" json:"db_ssl_mode"`

	// Profile database (read-only rag_data_view). A full DSN, since the
	// profile store lives outside this system and is typically provided as
	// a single connection string.
	ProfileDatabaseURL string `mapstructure:"profile_database_url" json:"profile_database_url"` // SENSITIVE: masked in MarshalJSON

	// Provider configuration
	OllamaURL      string `mapstructure:"ollama_url" json:"ollama_url"`
	OllamaModel    string `mapstructure:"ollama_model" json:"ollama_model"`
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"`

	// Generation sampling parameters
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	TopP            float32 `mapstructure:"top_p" json:"top_p"`
	TopK            int     `mapstructure:"top_k" json:"top_k"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`

	// Ingestion chunking parameters
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval parameters
	RetrievalTopK int `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sparkai")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the discrete knowledge-DB fields.
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		if err := cfg.applyDatabaseURL(raw); err != nil {
			return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "0.0.0.0:5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Knowledge database defaults (matching docker-compose.yml)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "sparkai")
	v.SetDefault("db_password", "sparkai_dev_password")
	v.SetDefault("db_name", "sparkai_knowledge")
	v.SetDefault("db_ssl_mode", "disable")

	// Provider defaults
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("ollama_model", DefaultGenerationModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)

	// Sampling defaults
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("top_p", DefaultTopP)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("max_output_tokens", DefaultMaxOutputTokens)

	// Chunking defaults
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "SPARKAI_LISTEN_ADDR")
	mustBind("log_level", "SPARKAI_LOG_LEVEL")
	mustBind("db_password", "SPARKAI_DB_PASSWORD")
	mustBind("profile_database_url", "MAIN_DATABASE_URL")
	mustBind("ollama_url", "SPARKAI_OLLAMA_URL")
	mustBind("ollama_model", "SPARKAI_OLLAMA_MODEL")
	mustBind("embedding_model", "SPARKAI_EMBEDDING_MODEL")
}

// applyDatabaseURL overrides the knowledge-DB fields from a postgres:// URL.
func (c *Config) applyDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSetting, u.Scheme)
	}

	c.DBHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPort, p)
		}
		c.DBPort = port
	}
	if u.User != nil {
		c.DBUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.DBPassword = pw
		}
	}
	if name := filepath.Base(u.Path); name != "." && name != "/" {
		c.DBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.DBSSLMode = mode
	}
	return nil
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: db_host must not be empty", ErrInvalidSetting)
	}
	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.DBPort)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: db_name must not be empty", ErrInvalidSetting)
	}
	if _, err := url.ParseRequestURI(c.OllamaURL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidOllamaURL, c.OllamaURL)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model must not be empty", ErrInvalidSetting)
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("%w: ollama_model must not be empty", ErrInvalidSetting)
	}
	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("%w: retrieval_top_k must be positive", ErrInvalidSetting)
	}
	return nil
}

// KnowledgeDSN returns the knowledge database DSN for pgx.
// Password is single-quoted to handle special characters.
func (c *Config) KnowledgeDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, quoteDSNValue(c.DBPassword), c.DBName, c.DBSSLMode)
}

// KnowledgeURL returns the knowledge database URL for golang-migrate.
// Uses url.URL for proper encoding of special characters in credentials.
func (c *Config) KnowledgeURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Settings returns the mutable runtime settings seeded from this
// configuration. The snapshot is what administrative endpoints read and
// replace.
func (c *Config) Settings() Settings {
	return Settings{
		DBUser:         c.DBUser,
		DBPassword:     c.DBPassword,
		DBHost:         c.DBHost,
		DBPort:         c.DBPort,
		DBName:         c.DBName,
		DBSSLMode:      c.DBSSLMode,
		OllamaURL:      c.OllamaURL,
		OllamaModel:    c.OllamaModel,
		EmbeddingModel: c.EmbeddingModel,
	}
}

// quoteDSNValue single-quotes a DSN value, escaping embedded quotes and
// backslashes, so passwords with spaces or '=' parse correctly.
func quoteDSNValue(s string) string {
	quoted := make([]byte, 0, len(s)+2)
	quoted = append(quoted, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' || s[i] == '\\' {
			quoted = append(quoted, '\\')
		}
		quoted = append(quoted, s[i])
	}
	return string(append(quoted, '\''))
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep two characters on each end for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DBPassword = maskSecret(a.DBPassword)
	a.ProfileDatabaseURL = maskSecret(a.ProfileDatabaseURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
