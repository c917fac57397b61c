// Package config defines the configuration of every barecourier binary.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"barecourier/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only the
// sections they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"barecourier"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Push          PushConfig
	Email         EmailConfig
	Retry         RetryConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
	Feature       FeatureConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings and public URLs.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// AppURL is the web app base used for notification links (no trailing slash).
	AppURL         string        `envconfig:"APP_URL" validate:"required,url"`
	InternalAPIKey SecretString  `envconfig:"INTERNAL_API_KEY" validate:"required,min=16"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"55s"`
}

// DatabaseConfig holds connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	MigrateOnStart    bool          `envconfig:"DB_MIGRATE_ON_START" default:"false"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-1"`

	// NotificationQueue receives async dispatch requests. Empty disables the
	// queue and async requests run in-process.
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// PushConfig points at the downstream web-push sender.
type PushConfig struct {
	EndpointURL string        `envconfig:"PUSH_ENDPOINT_URL" validate:"omitempty,url"`
	APIKey      SecretString  `envconfig:"PUSH_API_KEY"`
	MaxRetries  int           `envconfig:"PUSH_MAX_RETRIES" default:"2" validate:"min=0,max=10"`
	Timeout     time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
}

// EmailConfig points at the downstream transactional email sender.
type EmailConfig struct {
	EndpointURL string        `envconfig:"EMAIL_ENDPOINT_URL" validate:"omitempty,url"`
	APIKey      SecretString  `envconfig:"EMAIL_API_KEY"`
	MaxRetries  int           `envconfig:"EMAIL_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
	Timeout     time.Duration `envconfig:"EMAIL_TIMEOUT" default:"15s"`
}

// RetryConfig holds the backoff parameters shared by outbound transports.
type RetryConfig struct {
	BaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	MaxJitter     time.Duration `envconfig:"RETRY_MAX_JITTER" default:"500ms"`
	MaxRetryDelay time.Duration `envconfig:"RETRY_MAX_DELAY" default:"30s"`
	// FunctionTimeout is the soft wall-clock budget of one invocation. Retries
	// stop once it is spent; zero disables the guard.
	FunctionTimeout time.Duration `envconfig:"FUNCTION_TIMEOUT" default:"50s"`
}

// SchedulerConfig drives the periodic jobs.
type SchedulerConfig struct {
	PastDueSchedule      string `envconfig:"PAST_DUE_SCHEDULE" default:"*/15 * * * *"`
	DailySummarySchedule string `envconfig:"DAILY_SUMMARY_SCHEDULE" default:"0 8 * * *"`
	CleanupSchedule      string `envconfig:"CLEANUP_SCHEDULE" default:"30 3 * * *"`
	// Timezone interprets the cron schedules.
	Timezone            string `envconfig:"SCHEDULER_TIMEZONE" default:"Europe/Lisbon" validate:"timezone"`
	DispatchConcurrency int    `envconfig:"DISPATCH_CONCURRENCY" default:"5" validate:"min=1,max=50"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BareCourier"`
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=cloudwatch prometheus none"`
}

// FeatureConfig holds kill switches for external channels.
type FeatureConfig struct {
	EnablePush  bool `envconfig:"FEATURE_ENABLE_PUSH" default:"true"`
	EnableEmail bool `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// UseStubTransports reports whether outbound transports should be replaced by
// logging stubs.
func (c *Config) UseStubTransports() bool {
	return c.Environment == "local" || c.IsTestMode
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
