// Package app assembles the runtime object graph shared by every binary:
// database pool, repositories, outbound senders, the dispatcher and the
// scheduled jobs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"barecourier/internal/config"
	"barecourier/internal/db"
	"barecourier/internal/external"
	notify "barecourier/internal/notifications/core"
	"barecourier/internal/notifications/templates"
	"barecourier/internal/scheduler"
	"barecourier/internal/types"
)

// App is the wired dependency graph. Fields are exported so entry points can
// pick the pieces they serve.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Dispatcher *notify.Dispatcher
	// Publisher is nil when no notification queue is configured.
	Publisher *notify.DispatchPublisher
	Runner    *scheduler.Runner
	Metrics   notify.NotificationMetrics
	// Registry is set only for the prometheus metrics backend.
	Registry *prometheus.Registry
}

// Options tweaks construction per binary.
type Options struct {
	// WorkerID names this process in job_locks.
	WorkerID string
	// ClientOptions are passed to the outbound retry clients.
	ClientOptions []external.ClientOption
}

// New connects to the database and wires every component. The caller owns
// the result and must call Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Database.MigrateOnStart {
		if err := db.MigrateUp(cfg.Database.URL.Unmask(), logger); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool}
	if err := a.wire(ctx, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Config
	clock := types.RealClock{}
	typedLogger := types.NewSlogLogger(a.Logger)

	var awsCfg aws.Config
	needsAWS := cfg.AWS.NotificationQueue != "" || cfg.Observability.MetricsBackend == "cloudwatch"
	if needsAWS {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading aws config: %w", err)
		}
		awsCfg = loaded
	}

	switch cfg.Observability.MetricsBackend {
	case "cloudwatch":
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.Metrics = notify.NewCloudWatchNotificationMetrics(client, cfg.Observability.MetricNamespace, typedLogger.With("component", "metrics"))
	case "prometheus":
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = notify.NewPrometheusNotificationMetrics(a.Registry)
	default:
		a.Metrics = notify.NoopMetrics{}
	}

	profiles := db.NewProfileRepository(a.Pool)
	services := db.NewServiceRepository(a.Pool)
	senders := external.NewClientRegistry(cfg, a.Logger, opts.ClientOptions...)
	renderer, err := templates.NewRenderer()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	a.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Resolver:      notify.NewPreferenceResolver(profiles, typedLogger.With("component", "preferences")),
		Notifications: db.NewNotificationRepository(a.Pool),
		Subscriptions: db.NewPushSubscriptionRepository(a.Pool),
		Push:          senders.Push,
		Email:         senders.Email,
		Templates:     renderer,
		Metrics:       a.Metrics,
		Clock:         clock,
		Logger:        typedLogger.With("component", "dispatcher"),
		AsyncTimeout:  cfg.Retry.FunctionTimeout,
	})

	if cfg.AWS.NotificationQueue != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.Publisher = notify.NewDispatchPublisher(client, cfg.AWS.NotificationQueue, clock, typedLogger.With("component", "publisher"))
	}

	workerID := opts.WorkerID
	if workerID == "" {
		workerID, _ = os.Hostname()
	}

	a.Runner = &scheduler.Runner{
		PastDue: scheduler.NewPastDueDetector(scheduler.PastDueConfig{
			Couriers:        profiles,
			Services:        services,
			Dispatcher:      a.Dispatcher,
			Renderer:        renderer,
			Metrics:         a.Metrics,
			Clock:           clock,
			Logger:          a.Logger,
			AppURL:          cfg.Server.AppURL,
			Concurrency:     cfg.Scheduler.DispatchConcurrency,
			FunctionTimeout: cfg.Retry.FunctionTimeout,
		}),
		DailySummary: scheduler.NewDailySummaryJob(scheduler.DailySummaryConfig{
			Couriers:   profiles,
			Services:   services,
			Locks:      db.NewJobLockRepository(a.Pool),
			Dispatcher: a.Dispatcher,
			Renderer:   renderer,
			Logger:     a.Logger,
			AppURL:     cfg.Server.AppURL,
			WorkerID:   workerID,
		}),
		Cleanup: scheduler.NewCleanupService(db.NewCleanupRepository(a.Pool), 0, 0, a.Logger),
		History: db.NewJobHistoryRepository(a.Pool),
		Clock:   clock,
		Logger:  a.Logger,
	}
	return nil
}

// Ping checks database connectivity. It backs the /health probe.
func (a *App) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewLogger creates a JSON slog.Logger for the given level name. Unknown
// names fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// IsLambdaEnvironment reports whether the process runs inside AWS Lambda.
func IsLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// SecretProvider picks the backend that resolves *_SSM_PARAM pointers.
// SECRETS_BACKEND=env reads the pointed-to names from the environment, which
// suits container platforms that mount secrets as variables. Local runs need
// no provider.
func SecretProvider() config.SecretProvider {
	switch {
	case os.Getenv("SECRETS_BACKEND") == "env":
		return config.NewEnvVarProvider()
	case os.Getenv("APP_ENV") == "local":
		return nil
	default:
		return config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
}
