package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("EXTRACTION_PROVIDER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("BATCH_WORKERS", "")
	t.Setenv("APP_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "swipe-invoice", cfg.AppID)
	assert.Equal(t, "gemini", cfg.ExtractionProvider)
	assert.Equal(t, 3, cfg.ExtractionMaxAttempts)
	assert.Equal(t, time.Second, cfg.ExtractionBackoff)
	assert.Equal(t, 12, cfg.BatchWorkers)
	assert.Equal(t, "dataset-changes", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/invoices")
	t.Setenv("EXTRACTION_PROVIDER", "OpenAI")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("EXTRACTION_INITIAL_BACKOFF", "250ms")
	t.Setenv("BATCH_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, "openai", cfg.ExtractionProvider)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.ExtractionBackoff)
	assert.Equal(t, 12, cfg.BatchWorkers)

	sc := cfg.GetStoreConfig()
	assert.Equal(t, "postgres://localhost/invoices", sc.DatabaseURL)
	assert.Equal(t, cfg.KafkaBrokers, sc.KafkaBrokers)

	ec := cfg.GetExtractionConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, 250*time.Millisecond, ec.Retry.InitialBackoff)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{AppID: "app", ExtractionProvider: "gemini", StoreBackend: "memory", ExtractionMaxAttempts: 3}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty app id", mutate: func(c *Config) { c.AppID = "" }, wantErr: "APP_ID"},
		{name: "unknown provider", mutate: func(c *Config) { c.ExtractionProvider = "llama" }, wantErr: "EXTRACTION_PROVIDER"},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "sqlite" }, wantErr: "STORE_BACKEND"},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreBackend = "postgres" }, wantErr: "DATABASE_URL"},
		{name: "firestore without project", mutate: func(c *Config) { c.StoreBackend = "firestore" }, wantErr: "FIRESTORE_PROJECT"},
		{name: "zero attempts", mutate: func(c *Config) { c.ExtractionMaxAttempts = 0 }, wantErr: "EXTRACTION_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateExtraction(t *testing.T) {
	c := &Config{ExtractionProvider: "gemini"}
	assert.ErrorContains(t, c.ValidateExtraction(), "GEMINI_API_KEY")
	c.GeminiAPIKey = "k"
	assert.NoError(t, c.ValidateExtraction())

	c = &Config{ExtractionProvider: "documentai", GoogleCloudProject: "p"}
	assert.ErrorContains(t, c.ValidateExtraction(), "DOCUMENT_AI_PROCESSOR_ID")
}
