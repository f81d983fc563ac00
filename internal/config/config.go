package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Chat      ChatConfig
	Templates TemplatesConfig
	OCR       OCRConfig
	Convert   ConvertConfig
	Tokens    TokensConfig
	Pipeline  PipelineConfig
	Jobs      JobsConfig
	Storage   StorageConfig
	Auth      AuthConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ChatProviderConfig holds settings for a single chat-completion provider.
type ChatProviderConfig struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	Preset      string `mapstructure:"preset"`
	BaseURL     string `mapstructure:"base_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// ChatConfig holds the primary chat provider and an optional fallback.
type ChatConfig struct {
	ChatProviderConfig `mapstructure:",squash"`

	Fallback ChatProviderConfig `mapstructure:"fallback"`
}

// PrimaryConfig returns the primary chat provider config.
func (c *ChatConfig) PrimaryConfig() *ChatProviderConfig {
	return &c.ChatProviderConfig
}

// FallbackConfig returns the fallback chat provider config, or nil if not configured.
func (c *ChatConfig) FallbackConfig() *ChatProviderConfig {
	if c.Fallback.Provider == "" {
		return nil
	}
	fb := c.Fallback
	if fb.TimeoutSecs == 0 {
		fb.TimeoutSecs = c.TimeoutSecs
	}
	if fb.MaxRetries == 0 {
		fb.MaxRetries = c.MaxRetries
	}
	return &fb
}

// TemplatesConfig holds template store settings.
type TemplatesConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	CatalogPath  string `mapstructure:"catalog_path"`
	WatchCatalog bool   `mapstructure:"watch_catalog"`
}

// OCRConfig holds document OCR/structuring service settings.
type OCRConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	TimeoutSecs      int    `mapstructure:"timeout_secs"`
	PollMaxWaitSecs  int    `mapstructure:"poll_max_wait_secs"`
	TablesAsMarkdown bool   `mapstructure:"tables_as_markdown"`
}

// ConvertConfig holds office-to-PDF conversion settings.
type ConvertConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSecs     int    `mapstructure:"timeout_secs"`
	PollMaxWaitSecs int    `mapstructure:"poll_max_wait_secs"`
}

// TokensConfig holds token counter settings.
type TokensConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	HardLimit   int    `mapstructure:"hard_limit"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	FanoutConcurrency int    `mapstructure:"fanout_concurrency"`
	AutoReadLimit     int    `mapstructure:"auto_read_limit"`
	PlanFailureMode   string `mapstructure:"plan_failure_mode"`
	LogPrompts        bool   `mapstructure:"log_prompts"`
	PromptLogDir      string `mapstructure:"prompt_log_dir"`
}

// JobsConfig holds async job worker settings.
type JobsConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueSize   int `mapstructure:"queue_size"`
}

// StorageConfig holds AWS S3 settings.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	PromptLogPrefix string `mapstructure:"prompt_log_prefix"`
	ArchiveUploads  bool   `mapstructure:"archive_uploads"`
}

// AuthConfig holds optional request authentication settings.
type AuthConfig struct {
	Mode           string `mapstructure:"mode"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	GoogleClientID string `mapstructure:"google_client_id"`
	AllowedDomain  string `mapstructure:"allowed_domain"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Plan failure modes.
const (
	PlanFailureAbort = "abort"
	PlanFailureMark  = "mark"
)

// Auth modes.
const (
	AuthModeNone   = "none"
	AuthModeJWT    = "jwt"
	AuthModeGoogle = "google"
)

// envBindings maps config keys to their environment variables. The first name
// is the prefixed one; the rest are legacy names still honoured.
var envBindings = map[string][]string{
	"server.port":                 {"PLANEXTRACT_SERVER_PORT"},
	"server.read_timeout":         {"PLANEXTRACT_SERVER_READ_TIMEOUT"},
	"server.write_timeout":        {"PLANEXTRACT_SERVER_WRITE_TIMEOUT"},
	"server.environment":          {"PLANEXTRACT_SERVER_ENVIRONMENT"},
	"server.max_upload_mb":        {"PLANEXTRACT_SERVER_MAX_UPLOAD_MB"},
	"log.level":                   {"PLANEXTRACT_LOG_LEVEL"},
	"log.format":                  {"PLANEXTRACT_LOG_FORMAT"},
	"chat.provider":               {"PLANEXTRACT_CHAT_PROVIDER"},
	"chat.api_key":                {"PLANEXTRACT_CHAT_API_KEY", "OPENROUTER_API_KEY"},
	"chat.model":                  {"PLANEXTRACT_CHAT_MODEL", "MODEL_ID"},
	"chat.preset":                 {"PLANEXTRACT_CHAT_PRESET", "OPENROUTER_PRESET"},
	"chat.base_url":               {"PLANEXTRACT_CHAT_BASE_URL"},
	"chat.timeout_secs":           {"PLANEXTRACT_CHAT_TIMEOUT_SECS"},
	"chat.max_retries":            {"PLANEXTRACT_CHAT_MAX_RETRIES"},
	"chat.fallback.provider":      {"PLANEXTRACT_CHAT_FALLBACK_PROVIDER"},
	"chat.fallback.api_key":       {"PLANEXTRACT_CHAT_FALLBACK_API_KEY"},
	"chat.fallback.model":         {"PLANEXTRACT_CHAT_FALLBACK_MODEL"},
	"chat.fallback.base_url":      {"PLANEXTRACT_CHAT_FALLBACK_BASE_URL"},
	"templates.api_key":           {"PLANEXTRACT_TEMPLATES_API_KEY", "VELLUM_API_KEY"},
	"templates.base_url":          {"PLANEXTRACT_TEMPLATES_BASE_URL", "VELLUM_BASE_URL"},
	"templates.timeout_secs":      {"PLANEXTRACT_TEMPLATES_TIMEOUT_SECS"},
	"templates.catalog_path":      {"PLANEXTRACT_TEMPLATES_CATALOG_PATH"},
	"templates.watch_catalog":     {"PLANEXTRACT_TEMPLATES_WATCH_CATALOG"},
	"ocr.api_key":                 {"PLANEXTRACT_OCR_API_KEY", "REDUCTO_API_KEY"},
	"ocr.base_url":                {"PLANEXTRACT_OCR_BASE_URL", "REDUCTO_BASE_URL"},
	"ocr.timeout_secs":            {"PLANEXTRACT_OCR_TIMEOUT_SECS"},
	"ocr.poll_max_wait_secs":      {"PLANEXTRACT_OCR_POLL_MAX_WAIT_SECS"},
	"ocr.tables_as_markdown":      {"PLANEXTRACT_OCR_TABLES_AS_MARKDOWN"},
	"convert.api_key":             {"PLANEXTRACT_CONVERT_API_KEY", "CLOUDCONVERT_API_KEY"},
	"convert.base_url":            {"PLANEXTRACT_CONVERT_BASE_URL"},
	"convert.timeout_secs":        {"PLANEXTRACT_CONVERT_TIMEOUT_SECS"},
	"convert.poll_max_wait_secs":  {"PLANEXTRACT_CONVERT_POLL_MAX_WAIT_SECS"},
	"tokens.api_key":              {"PLANEXTRACT_TOKENS_API_KEY", "GOOGLE_API_KEY"},
	"tokens.model":                {"PLANEXTRACT_TOKENS_MODEL"},
	"tokens.hard_limit":           {"PLANEXTRACT_TOKENS_HARD_LIMIT", "TOKEN_HARD_LIMIT"},
	"tokens.timeout_secs":         {"PLANEXTRACT_TOKENS_TIMEOUT_SECS"},
	"pipeline.fanout_concurrency": {"PLANEXTRACT_PIPELINE_FANOUT_CONCURRENCY"},
	"pipeline.auto_read_limit":    {"PLANEXTRACT_PIPELINE_AUTO_READ_LIMIT"},
	"pipeline.plan_failure_mode":  {"PLANEXTRACT_PIPELINE_PLAN_FAILURE_MODE"},
	"pipeline.log_prompts":        {"PLANEXTRACT_PIPELINE_LOG_PROMPTS", "LOG_PROMPTS"},
	"pipeline.prompt_log_dir":     {"PLANEXTRACT_PIPELINE_PROMPT_LOG_DIR"},
	"jobs.concurrency":            {"PLANEXTRACT_JOBS_CONCURRENCY"},
	"jobs.queue_size":             {"PLANEXTRACT_JOBS_QUEUE_SIZE"},
	"storage.enabled":             {"PLANEXTRACT_STORAGE_ENABLED"},
	"storage.region":              {"PLANEXTRACT_STORAGE_REGION"},
	"storage.bucket":              {"PLANEXTRACT_STORAGE_BUCKET"},
	"storage.endpoint":            {"PLANEXTRACT_STORAGE_ENDPOINT"},
	"storage.access_key":          {"PLANEXTRACT_STORAGE_ACCESS_KEY"},
	"storage.secret_key":          {"PLANEXTRACT_STORAGE_SECRET_KEY"},
	"storage.prompt_log_prefix":   {"PLANEXTRACT_STORAGE_PROMPT_LOG_PREFIX"},
	"storage.archive_uploads":     {"PLANEXTRACT_STORAGE_ARCHIVE_UPLOADS"},
	"auth.mode":                   {"PLANEXTRACT_AUTH_MODE"},
	"auth.jwt_secret":             {"PLANEXTRACT_AUTH_JWT_SECRET"},
	"auth.jwt_issuer":             {"PLANEXTRACT_AUTH_JWT_ISSUER"},
	"auth.google_client_id":       {"PLANEXTRACT_AUTH_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
	"auth.allowed_domain":         {"PLANEXTRACT_AUTH_ALLOWED_DOMAIN"},
	"cors.allowed_origins":        {"PLANEXTRACT_CORS_ALLOWED_ORIGINS"},
}

// Load reads configuration from environment variables with the PLANEXTRACT_
// prefix. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PLANEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 100)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Chat defaults
	v.SetDefault("chat.provider", "openrouter")
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.model", "")
	v.SetDefault("chat.preset", "")
	v.SetDefault("chat.base_url", "")
	v.SetDefault("chat.timeout_secs", 180)
	v.SetDefault("chat.max_retries", 4)
	v.SetDefault("chat.fallback.provider", "")
	v.SetDefault("chat.fallback.api_key", "")
	v.SetDefault("chat.fallback.model", "")
	v.SetDefault("chat.fallback.base_url", "")

	// Template store defaults
	v.SetDefault("templates.api_key", "")
	v.SetDefault("templates.base_url", "https://api.vellum.ai")
	v.SetDefault("templates.timeout_secs", 30)
	v.SetDefault("templates.catalog_path", "")
	v.SetDefault("templates.watch_catalog", false)

	// OCR defaults
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.base_url", "https://platform.reducto.ai")
	v.SetDefault("ocr.timeout_secs", 300)
	v.SetDefault("ocr.poll_max_wait_secs", 180)
	v.SetDefault("ocr.tables_as_markdown", false)

	// Conversion defaults
	v.SetDefault("convert.api_key", "")
	v.SetDefault("convert.base_url", "https://api.cloudconvert.com/v2")
	v.SetDefault("convert.timeout_secs", 300)
	v.SetDefault("convert.poll_max_wait_secs", 300)

	// Token counter defaults
	v.SetDefault("tokens.api_key", "")
	v.SetDefault("tokens.model", "gemini-2.5-flash")
	v.SetDefault("tokens.hard_limit", 50000)
	v.SetDefault("tokens.timeout_secs", 60)

	// Pipeline defaults
	v.SetDefault("pipeline.fanout_concurrency", 8)
	v.SetDefault("pipeline.auto_read_limit", 4)
	v.SetDefault("pipeline.plan_failure_mode", PlanFailureAbort)
	v.SetDefault("pipeline.log_prompts", false)
	v.SetDefault("pipeline.prompt_log_dir", "/tmp/llm_prompts")

	// Job worker defaults
	v.SetDefault("jobs.concurrency", 2)
	v.SetDefault("jobs.queue_size", 100)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "planextract")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.prompt_log_prefix", "llm_prompts")
	v.SetDefault("storage.archive_uploads", false)

	// Auth defaults
	v.SetDefault("auth.mode", AuthModeNone)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.allowed_domain", "planyear.com")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	cfg := &Config{}

	// Render/Heroku set a PORT env var. Use it if PLANEXTRACT_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PLANEXTRACT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Chat = ChatConfig{
		ChatProviderConfig: ChatProviderConfig{
			Provider:    v.GetString("chat.provider"),
			APIKey:      v.GetString("chat.api_key"),
			Model:       v.GetString("chat.model"),
			Preset:      v.GetString("chat.preset"),
			BaseURL:     v.GetString("chat.base_url"),
			TimeoutSecs: v.GetInt("chat.timeout_secs"),
			MaxRetries:  v.GetInt("chat.max_retries"),
		},
		Fallback: ChatProviderConfig{
			Provider: v.GetString("chat.fallback.provider"),
			APIKey:   v.GetString("chat.fallback.api_key"),
			Model:    v.GetString("chat.fallback.model"),
			BaseURL:  v.GetString("chat.fallback.base_url"),
		},
	}
	cfg.Templates = TemplatesConfig{
		APIKey:       v.GetString("templates.api_key"),
		BaseURL:      v.GetString("templates.base_url"),
		TimeoutSecs:  v.GetInt("templates.timeout_secs"),
		CatalogPath:  v.GetString("templates.catalog_path"),
		WatchCatalog: v.GetBool("templates.watch_catalog"),
	}
	cfg.OCR = OCRConfig{
		APIKey:           v.GetString("ocr.api_key"),
		BaseURL:          v.GetString("ocr.base_url"),
		TimeoutSecs:      v.GetInt("ocr.timeout_secs"),
		PollMaxWaitSecs:  v.GetInt("ocr.poll_max_wait_secs"),
		TablesAsMarkdown: v.GetBool("ocr.tables_as_markdown"),
	}
	cfg.Convert = ConvertConfig{
		APIKey:          v.GetString("convert.api_key"),
		BaseURL:         v.GetString("convert.base_url"),
		TimeoutSecs:     v.GetInt("convert.timeout_secs"),
		PollMaxWaitSecs: v.GetInt("convert.poll_max_wait_secs"),
	}
	cfg.Tokens = TokensConfig{
		APIKey:      v.GetString("tokens.api_key"),
		Model:       v.GetString("tokens.model"),
		HardLimit:   v.GetInt("tokens.hard_limit"),
		TimeoutSecs: v.GetInt("tokens.timeout_secs"),
	}
	cfg.Pipeline = PipelineConfig{
		FanoutConcurrency: v.GetInt("pipeline.fanout_concurrency"),
		AutoReadLimit:     v.GetInt("pipeline.auto_read_limit"),
		PlanFailureMode:   v.GetString("pipeline.plan_failure_mode"),
		LogPrompts:        v.GetBool("pipeline.log_prompts"),
		PromptLogDir:      v.GetString("pipeline.prompt_log_dir"),
	}
	cfg.Jobs = JobsConfig{
		Concurrency: v.GetInt("jobs.concurrency"),
		QueueSize:   v.GetInt("jobs.queue_size"),
	}
	cfg.Storage = StorageConfig{
		Enabled:         v.GetBool("storage.enabled"),
		Region:          v.GetString("storage.region"),
		Bucket:          v.GetString("storage.bucket"),
		Endpoint:        v.GetString("storage.endpoint"),
		AccessKey:       v.GetString("storage.access_key"),
		SecretKey:       v.GetString("storage.secret_key"),
		PromptLogPrefix: v.GetString("storage.prompt_log_prefix"),
		ArchiveUploads:  v.GetBool("storage.archive_uploads"),
	}
	cfg.Auth = AuthConfig{
		Mode:           v.GetString("auth.mode"),
		JWTSecret:      v.GetString("auth.jwt_secret"),
		JWTIssuer:      v.GetString("auth.jwt_issuer"),
		GoogleClientID: v.GetString("auth.google_client_id"),
		AllowedDomain:  v.GetString("auth.allowed_domain"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Pipeline.PlanFailureMode {
	case PlanFailureAbort, PlanFailureMark:
	default:
		return fmt.Errorf("pipeline.plan_failure_mode must be %q or %q, got %q",
			PlanFailureAbort, PlanFailureMark, c.Pipeline.PlanFailureMode)
	}
	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required when auth.mode is %q", AuthModeJWT)
		}
	case AuthModeGoogle:
		if c.Auth.GoogleClientID == "" {
			return fmt.Errorf("auth.google_client_id is required when auth.mode is %q", AuthModeGoogle)
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}
	if c.Pipeline.FanoutConcurrency <= 0 {
		return fmt.Errorf("pipeline.fanout_concurrency must be positive")
	}
	if c.Tokens.HardLimit <= 0 {
		return fmt.Errorf("tokens.hard_limit must be positive")
	}
	return nil
}

// MissingCredentials lists the upstream credentials that are not set.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Chat.APIKey == "" {
		missing = append(missing, "chat.api_key")
	}
	if c.Chat.Model == "" && c.Chat.Preset == "" {
		missing = append(missing, "chat.model")
	}
	if c.Templates.APIKey == "" {
		missing = append(missing, "templates.api_key")
	}
	if c.OCR.APIKey == "" {
		missing = append(missing, "ocr.api_key")
	}
	if c.Tokens.APIKey == "" {
		missing = append(missing, "tokens.api_key")
	}
	return missing
}
