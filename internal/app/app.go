// Package app builds the runtime dependencies shared by the eventmail
// binaries from a loaded config.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventmail/internal/config"
	"eventmail/internal/core"
	"eventmail/internal/db"
	"eventmail/internal/external"
	"eventmail/internal/mailer"
	"eventmail/internal/queue"
	"eventmail/internal/telemetry"
	"eventmail/internal/types"
)

// Deps holds everything a binary needs. Optional components are nil when the
// matching configuration is absent:
//
//	Metrics    ENABLE_METRICS=true
//	Publisher  SQS_EMAIL_QUEUE set
//	Pool       DATABASE_URL set
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	Mailer     *mailer.Mailer
	Metrics    *telemetry.CloudWatchMetrics
	Publisher  *queue.Publisher
	Pool       *pgxpool.Pool
	Deliveries *db.DeliveryRepository
}

// Build constructs Deps from cfg. AWS configuration is loaded only when a
// component needs it. The database pool connects lazily.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger}
	typedLogger := types.NewSlogAdapter(logger)

	var awsCfg aws.Config
	if cfg.Observability.EnableMetrics || cfg.AWS.EmailQueueURL != "" {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
	}

	if cfg.Observability.EnableMetrics {
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		d.Metrics = telemetry.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, typedLogger)
	}

	if cfg.AWS.EmailQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		d.Publisher = queue.NewPublisher(sqsClient, cfg.AWS.EmailQueueURL, logger)
	}

	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
		}
		poolCfg.MaxConns = cfg.Database.MaxConns
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("creating database pool: %w", err)
		}
		d.Pool = pool
		d.Deliveries = db.NewDeliveryRepository(pool)
	}

	m, err := newMailer(cfg, d.Metrics, typedLogger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Mailer = m

	return d, nil
}

func newMailer(cfg *config.Config, metrics *telemetry.CloudWatchMetrics, logger types.Logger) (*mailer.Mailer, error) {
	templateIDs, err := cfg.Email.TemplateIDs()
	if err != nil {
		return nil, err
	}

	retry := external.NoRetryPolicy()
	retry.MaxRetries = cfg.Email.MaxRetries

	provider := external.NewSendGridClient(
		&http.Client{Timeout: cfg.Email.HTTPTimeout},
		external.SendGridClientConfig{
			APIKey:  cfg.Email.SendGridAPIKey,
			BaseURL: cfg.Email.BaseURL,
			Sandbox: cfg.Email.Sandbox,
			Retry:   retry,
			Logger:  logger,
		},
	)

	mcfg := mailer.Config{
		Provider:    provider,
		TemplateIDs: templateIDs,
		Sender: types.SenderIdentity{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		},
		PublicURL: cfg.Server.PublicURL,
		Logger:    logger,
	}
	if metrics != nil {
		mcfg.Metrics = metrics
	}

	m, err := mailer.New(mcfg)
	if err != nil {
		return nil, fmt.Errorf("creating mailer: %w", err)
	}
	return m, nil
}

// HealthProbes returns a probe per configured dependency that can be pinged.
func (d *Deps) HealthProbes() []core.HealthProbe {
	if d.Pool == nil {
		return nil
	}
	return []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: d.Pool.Ping},
	}
}

// Close releases the database pool.
func (d *Deps) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// NewLogger creates a JSON slog.Logger on stdout for the given level name.
// Unknown levels fall back to info.
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
