package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/extraction"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/store"
)

type Config struct {
	// Application identity, first segment of every dataset path
	AppID string

	// Extraction Configuration
	ExtractionProvider    string
	GeminiAPIKey          string
	GeminiModel           string
	GeminiEndpoint        string
	OpenAIAPIKey          string
	OpenAIModel           string
	ExtractionMaxAttempts int
	ExtractionBackoff     time.Duration
	BatchWorkers          int

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Persistence Configuration
	StoreBackend     string
	DatabaseURL      string
	FirestoreProject string
	KafkaBrokers     []string
	KafkaTopic       string

	// Google Sheets Configuration
	GoogleSheetURL string

	// HTTP Configuration
	HTTPPort int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		AppID:                 getEnv("APP_ID", "swipe-invoice"),
		ExtractionProvider:    strings.ToLower(getEnv("EXTRACTION_PROVIDER", extraction.ProviderGemini)),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", extraction.DefaultGeminiModel),
		GeminiEndpoint:        getEnv("GEMINI_ENDPOINT", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", extraction.DefaultOpenAIModel),
		ExtractionMaxAttempts: getEnvInt("EXTRACTION_MAX_ATTEMPTS", extraction.DefaultMaxAttempts),
		ExtractionBackoff:     getEnvDuration("EXTRACTION_INITIAL_BACKOFF", extraction.DefaultInitialBackoff),
		BatchWorkers:          getEnvInt("BATCH_WORKERS", 12),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", store.BackendPostgres)),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		FirestoreProject:      getEnv("FIRESTORE_PROJECT", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		KafkaBrokers:          splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "dataset-changes"),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		HTTPPort:              getEnvInt("HTTP_PORT", 8080),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.AppID == "" {
		return fmt.Errorf("APP_ID must not be empty")
	}

	switch c.ExtractionProvider {
	case extraction.ProviderGemini, extraction.ProviderOpenAI, extraction.ProviderDocumentAI:
	default:
		return fmt.Errorf("unknown EXTRACTION_PROVIDER: %s", c.ExtractionProvider)
	}

	switch c.StoreBackend {
	case store.BackendMemory:
	case store.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case store.BackendFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT or GOOGLE_CLOUD_PROJECT is required for the firestore store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	if c.ExtractionMaxAttempts < 1 {
		return fmt.Errorf("EXTRACTION_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// ValidateExtraction checks the credentials of the selected provider. Only
// commands that call the extraction service need them.
func (c *Config) ValidateExtraction() error {
	switch c.ExtractionProvider {
	case extraction.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case extraction.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case extraction.ProviderDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai provider")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai provider")
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetExtractionConfig returns the provider settings for the extraction adapter
func (c *Config) GetExtractionConfig() extraction.Config {
	return extraction.Config{
		Provider:              c.ExtractionProvider,
		GeminiAPIKey:          c.GeminiAPIKey,
		GeminiModel:           c.GeminiModel,
		GeminiEndpoint:        c.GeminiEndpoint,
		OpenAIAPIKey:          c.OpenAIAPIKey,
		OpenAIModel:           c.OpenAIModel,
		ProjectID:             c.GoogleCloudProject,
		Location:              c.GoogleCloudLocation,
		DocumentAIProcessorID: c.DocumentAIProcessorID,
		Retry: extraction.RetryPolicy{
			MaxAttempts:    c.ExtractionMaxAttempts,
			InitialBackoff: c.ExtractionBackoff,
		},
	}
}

// GetStoreConfig returns the persistence settings
func (c *Config) GetStoreConfig() store.Config {
	return store.Config{
		Backend:          c.StoreBackend,
		AppID:            c.AppID,
		DatabaseURL:      c.DatabaseURL,
		FirestoreProject: c.FirestoreProject,
		KafkaBrokers:     c.KafkaBrokers,
		KafkaTopic:       c.KafkaTopic,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
