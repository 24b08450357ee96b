// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	LLM           LLMConfig               `mapstructure:"llm"`
	WebSearch     WebSearchConfig         `mapstructure:"web_search"`
	Fetch         FetchConfig             `mapstructure:"fetch"`
	Orchestration OrchestrationConfig     `mapstructure:"orchestration"`
	Escalation    EscalationConfig        `mapstructure:"escalation"`
	AWS           AWSConfig               `mapstructure:"aws"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	TLS            bool   `mapstructure:"tls"`

	// ActivityRegistry points at an activity catalog file; empty uses the built-in one.
	ActivityRegistry string `mapstructure:"activity_registry"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	// Address is host:port or a redis:// URL.
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Collaborator Configuration ---

// LLMConfig configures the chat completion and embedding endpoints.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	EmbeddingDims  int     `mapstructure:"embedding_dims"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	MaxRetries     int     `mapstructure:"max_retries"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
}

type WebSearchConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	EngineID  string `mapstructure:"engine_id"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

type FetchConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// --- Policy Configuration ---

// OrchestrationConfig holds the routing and retrieval policy knobs.
type OrchestrationConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ParallelDispatch    bool    `mapstructure:"parallel_dispatch"`
	MaxParallel         int     `mapstructure:"max_parallel"`
	MemoryLimit         int     `mapstructure:"memory_limit"`
	MemoryTTL           int     `mapstructure:"memory_ttl"` // milliseconds, 0 keeps conversations
	ContextTurns        int     `mapstructure:"context_turns"`
	RetrievalLimit      int     `mapstructure:"retrieval_limit"`
	RetrievalMinScore   float64 `mapstructure:"retrieval_min_score"`
	FallbackLimit       int     `mapstructure:"fallback_limit"`
	MaxSearchResults    int     `mapstructure:"max_search_results"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // milliseconds
	SynthesisPenalty    float64 `mapstructure:"synthesis_penalty"`
}

// EscalationConfig holds the human handoff settings.
type EscalationConfig struct {
	EstimatedWaitMinutes int                      `mapstructure:"estimated_wait_minutes"`
	FallbackWaitMinutes  int                      `mapstructure:"fallback_wait_minutes"`
	ModelReview          bool                     `mapstructure:"model_review"` // ask the model when confidence passes
	Notify               EscalationNotifierConfig `mapstructure:"notify"`
}

// EscalationNotifierConfig configures operator alerts over SES and SNS.
type EscalationNotifierConfig struct {
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"email"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type AWSConfig struct {
	Region            string `mapstructure:"region"`
	LocalDocumentRoot string `mapstructure:"local_document_root"`
	MaxDocumentBytes  int64  `mapstructure:"max_document_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export to a Jaeger collector.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
