package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// VectorBackend selects the vector index implementation: "postgres" stores
	// chunks in pgvector, "memory" keeps a linear-scan index snapshotted under
	// DataDir.
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"postgres"`
	DataDir       string `envconfig:"DATA_DIR" default:"./data"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`

	PerplexityAPIKey string `envconfig:"PERPLEXITY_API_KEY"`
	PerplexityModel  string `envconfig:"PERPLEXITY_MODEL" default:"sonar"`

	IBMAPIKey    string `envconfig:"IBM_API_KEY"`
	IBMProjectID string `envconfig:"IBM_PROJECT_ID"`
	IBMURL       string `envconfig:"IBM_URL" default:"https://api.us-south.ml.cloud.ibm.com"`
	IBMModel     string `envconfig:"IBM_MODEL" default:"ibm/granite-3-3-8b-instruct"`

	// LLMProvider pins the answer provider ("openai", "perplexity", "ibm").
	// Empty means auto-detect from whichever credentials are present.
	LLMProvider string `envconfig:"LLM_PROVIDER"`

	// Optional archive of raw uploaded source bytes.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"doctalk-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCTALK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// The required tag only catches an unset variable; an empty value would
	// otherwise slip through to the pool constructor.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DOCTALK_DATABASE_URL must not be empty")
	}

	if cfg.VectorBackend != "postgres" && cfg.VectorBackend != "memory" {
		return nil, fmt.Errorf("invalid vector backend %q (want postgres or memory)", cfg.VectorBackend)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasPerplexity() bool {
	return c.PerplexityAPIKey != ""
}

func (c *Config) HasWatsonx() bool {
	return c.IBMAPIKey != "" && c.IBMProjectID != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
