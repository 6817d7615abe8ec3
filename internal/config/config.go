package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Data          DataConfig
	AI            AIConfig
	Chat          ChatConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DataConfig locates the master order dataset and describes how order codes
// are recognized inside free-form login text.
type DataConfig struct {
	Dir        string
	MasterFile string
	CodeColumn string
	NameColumn string
	CodeMarker string
	CodeLength int
	PromptPath string
	// TableToken is the table name the prompt instructs the model to query.
	// It must match the prompt template text, not the master file on disk.
	TableToken string
}

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type ChatConfig struct {
	MaxReflections int
	SummaryContext string
}

type ObjectStoreConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
	ObjectKey       string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SHIPCHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SHIPCHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SHIPCHAT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SHIPCHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SHIPCHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SHIPCHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_DIR", &cfg.Data.Dir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_MASTER_FILE", &cfg.Data.MasterFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_CODE_COLUMN", &cfg.Data.CodeColumn); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_NAME_COLUMN", &cfg.Data.NameColumn); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_CODE_MARKER", &cfg.Data.CodeMarker); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SHIPCHAT_DATA_CODE_LENGTH", &cfg.Data.CodeLength); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_TABLE_TOKEN", &cfg.Data.TableToken); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_DATA_PROMPT_PATH", &cfg.Data.PromptPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SHIPCHAT_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SHIPCHAT_CHAT_MAX_REFLECTIONS", &cfg.Chat.MaxReflections); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_CHAT_SUMMARY_CONTEXT", &cfg.Chat.SummaryContext); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SHIPCHAT_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SHIPCHAT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_OBJECTSTORE_OBJECT_KEY", &cfg.ObjectStore.ObjectKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SHIPCHAT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SHIPCHAT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SHIPCHAT_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHIPCHAT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Data.CodeMarker == "" {
		return Config{}, fmt.Errorf("order code marker is required")
	}
	if cfg.Data.CodeLength < len(cfg.Data.CodeMarker) {
		return Config{}, fmt.Errorf("order code length %d is shorter than marker %q", cfg.Data.CodeLength, cfg.Data.CodeMarker)
	}
	if cfg.Data.TableToken == "" {
		return Config{}, fmt.Errorf("query table token is required")
	}
	if cfg.Chat.MaxReflections < 0 || cfg.Chat.MaxReflections > 10 {
		return Config{}, fmt.Errorf("SHIPCHAT_CHAT_MAX_REFLECTIONS must be in [0,10], got %d", cfg.Chat.MaxReflections)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "shipchat-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Data: DataConfig{
			Dir:        "data",
			MasterFile: "data.csv",
			CodeColumn: "Codice",
			NameColumn: "Nome_e_Cognome",
			CodeMarker: "1R2",
			CodeLength: 9,
			PromptPath: "prompts/base_prompt.txt",
			TableToken: "data.csv",
		},
		AI: AIConfig{
			BaseURL: "https://api.groq.com/openai",
			Model:   "llama3-70b-8192",
			Timeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			MaxReflections: 5,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:   false,
			Endpoint:  "localhost:9000",
			Region:    "us-east-1",
			Bucket:    "shipchat",
			UseSSL:    false,
			ObjectKey: "data.csv",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
