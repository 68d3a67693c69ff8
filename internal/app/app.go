package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/exaring/otelpgx"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/metinatakli/creator-marketplace/internal/entitlement"
	"github.com/metinatakli/creator-marketplace/internal/identity"
	"github.com/metinatakli/creator-marketplace/internal/mailer"
	"github.com/metinatakli/creator-marketplace/internal/payment"
	"github.com/metinatakli/creator-marketplace/internal/repository"
	"github.com/metinatakli/creator-marketplace/internal/storage"
	appvalidator "github.com/metinatakli/creator-marketplace/internal/validator"
	"github.com/metinatakli/creator-marketplace/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

type entitlementService interface {
	CheckAccess(ctx context.Context, buyerID, bundleID string) (*entitlement.AccessResult, error)
	GrantAccess(ctx context.Context, in entitlement.GrantInput) (*entitlement.GrantResult, error)
	GetUnlockedContent(ctx context.Context, buyerID, bundleID string) ([]domain.UnlockedContentItem, error)
	StartCheckout(ctx context.Context, buyer domain.Identity, bundleID string) (*domain.CheckoutSession, error)
	RecordPaymentFailure(ctx context.Context, paymentReference, reason string) (bool, error)
	ListPurchases(ctx context.Context, buyerID string, pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error)
}

type Application struct {
	config    Config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate
	mailer    mailer.Mailer

	identity      domain.IdentityVerifier
	entitlements  entitlementService
	webhookEvents domain.WebhookEventStore

	openapiRouter routers.Router
}

type Config struct {
	Port             int    `env:"PORT" envDefault:"3000"`
	Env              string `env:"ENV" envDefault:"dev"`
	OtelCollectorUrl string `env:"OTEL_COLLECTOR_URL"`

	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
	ContentURLTTL   time.Duration `env:"CONTENT_URL_TTL" envDefault:"15m"`
	BundleCacheTTL  time.Duration `env:"BUNDLE_CACHE_TTL" envDefault:"5m"`
	PlatformFeeBps  int64         `env:"PLATFORM_FEE_BPS" envDefault:"1000"`

	DB     DBConfig     `envPrefix:"DB_"`
	Redis  RedisConfig  `envPrefix:"REDIS_"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_"`
	Stripe StripeConfig `envPrefix:"STRIPE_"`
	JWT    JWTConfig    `envPrefix:"JWT_"`
	S3     S3Config     `envPrefix:"S3_"`
}

type DBConfig struct {
	DSN          string        `env:"DSN"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleTime  time.Duration `env:"MAX_IDLE_TIME" envDefault:"15m"`
}

type RedisConfig struct {
	URL          string        `env:"URL"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxIdleTime  time.Duration `env:"MAX_IDLE_TIME" envDefault:"2m"`
}

type SMTPConfig struct {
	Host     string `env:"HOST" envDefault:"sandbox.smtp.mailtrap.io"`
	Port     int    `env:"PORT" envDefault:"2525"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Sender   string `env:"SENDER" envDefault:"Creator Marketplace <no-reply@creators.metinatakli.net>"`
}

type StripeConfig struct {
	SecretKey     string `env:"KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	SuccessUrl    string `env:"SUCCESS_URL" envDefault:"https://example.com/success.html"`
	FailureUrl    string `env:"FAILURE_URL" envDefault:"https://example.com/failure.html"`
}

type JWTConfig struct {
	Secret   string `env:"SECRET"`
	Issuer   string `env:"ISSUER"`
	Audience string `env:"AUDIENCE"`
}

type S3Config struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"bundle-content"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	UseSSL    bool   `env:"USE_SSL"`
}

// LoadConfig reads the environment first so that every flag defaults to its
// environment value.
func LoadConfig(args []string) (Config, bool, error) {
	var cfg Config

	err := env.Parse(&cfg)
	if err != nil {
		return cfg, false, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", cfg.Port, "server port")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (dev|staging|prod)")
	fs.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", cfg.OtelCollectorUrl, "OpenTelemetry collector gRPC endpoint")

	fs.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", cfg.UpstreamTimeout, "Timeout of every payment processor and store call")
	fs.DurationVar(&cfg.ContentURLTTL, "content-url-ttl", cfg.ContentURLTTL, "Lifetime of presigned content URLs")
	fs.DurationVar(&cfg.BundleCacheTTL, "bundle-cache-ttl", cfg.BundleCacheTTL, "Lifetime of cached bundles")
	fs.Int64Var(&cfg.PlatformFeeBps, "platform-fee-bps", cfg.PlatformFeeBps, "Platform fee in basis points")

	fs.StringVar(&cfg.DB.DSN, "db-dsn", cfg.DB.DSN, "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", cfg.DB.MaxOpenConns, "PostgreSQL max open connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", cfg.DB.MaxIdleTime, "PostgreSQL max idle time for connections")

	fs.StringVar(&cfg.Redis.URL, "redis-url", cfg.Redis.URL, "Redis URL")
	fs.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", cfg.Redis.MaxOpenConns, "Redis max open connections")
	fs.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", cfg.Redis.MaxIdleConns, "Redis max idle connections")
	fs.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", cfg.Redis.MaxIdleTime, "Redis max idle time for connections")

	fs.StringVar(&cfg.SMTP.Host, "smtp-host", cfg.SMTP.Host, "SMTP host")
	fs.IntVar(&cfg.SMTP.Port, "smtp-port", cfg.SMTP.Port, "SMTP port")
	fs.StringVar(&cfg.SMTP.Username, "smtp-username", cfg.SMTP.Username, "SMTP username")
	fs.StringVar(&cfg.SMTP.Password, "smtp-password", cfg.SMTP.Password, "SMTP password")
	fs.StringVar(&cfg.SMTP.Sender, "smtp-sender", cfg.SMTP.Sender, "SMTP sender")

	fs.StringVar(&cfg.Stripe.SecretKey, "stripe-key", cfg.Stripe.SecretKey, "Stripe secret key")
	fs.StringVar(&cfg.Stripe.WebhookSecret, "stripe-webhook-secret", cfg.Stripe.WebhookSecret, "Stripe webhook secret")
	fs.StringVar(&cfg.Stripe.SuccessUrl, "stripe-success-url", cfg.Stripe.SuccessUrl, "Stripe payment success page")
	fs.StringVar(&cfg.Stripe.FailureUrl, "stripe-failure-url", cfg.Stripe.FailureUrl, "Stripe payment failure page")

	fs.StringVar(&cfg.JWT.Secret, "jwt-secret", cfg.JWT.Secret, "HMAC secret of bearer tokens")
	fs.StringVar(&cfg.JWT.Issuer, "jwt-issuer", cfg.JWT.Issuer, "Expected issuer of bearer tokens")
	fs.StringVar(&cfg.JWT.Audience, "jwt-audience", cfg.JWT.Audience, "Expected audience of bearer tokens")

	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.S3.AccessKey, "s3-access-key", cfg.S3.AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3.SecretKey, "s3-secret-key", cfg.S3.SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3.Bucket, "s3-bucket", cfg.S3.Bucket, "S3 bucket holding bundle content")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")
	fs.BoolVar(&cfg.S3.UseSSL, "s3-use-ssl", cfg.S3.UseSSL, "Use TLS for S3")

	displayVersion := fs.Bool("version", false, "Display version and exit")

	err = fs.Parse(args)
	if err != nil {
		return cfg, false, err
	}

	return cfg, *displayVersion, nil
}

func Run() error {
	cfg, displayVersion, err := LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	shutdownTelemetry, err := InitTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(
			logger.Handler(),
			otelslog.NewHandler(serviceName),
		))
	}

	db, err := NewDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	s3Client, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return err
	}

	bundleRepo := repository.NewCachedBundleRepository(
		repository.NewPostgresBundleRepository(db),
		redisClient,
		cfg.BundleCacheTTL,
	)

	entitlements := entitlement.NewService(entitlement.Dependencies{
		Purchases: repository.NewPostgresPurchaseRepository(db),
		Bundles:   bundleRepo,
		Creators:  repository.NewPostgresCreatorRepository(db),
		Payments: payment.NewStripePaymentProvider(
			cfg.Stripe.SecretKey,
			cfg.UpstreamTimeout,
			cfg.Stripe.FailureUrl,
			cfg.Stripe.SuccessUrl,
		),
		Signer: storage.NewS3ContentSigner(s3Client, cfg.S3.Bucket),
		Logger: logger,
	}, entitlement.Config{
		UpstreamTimeout: cfg.UpstreamTimeout,
		ContentURLTTL:   cfg.ContentURLTTL,
		PlatformFeeBps:  cfg.PlatformFeeBps,
	})

	app, err := NewApp(
		cfg,
		logger,
		db,
		redisClient,
		appvalidator.NewValidator(),
		mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		identity.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience),
		entitlements,
		repository.NewRedisWebhookEventStore(redisClient, repository.DefaultWebhookEventTTL),
	)
	if err != nil {
		return err
	}

	return app.run()
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	redis redis.UniversalClient,
	validator *validator.Validate,
	mailer mailer.Mailer,
	identity domain.IdentityVerifier,
	entitlements entitlementService,
	webhookEvents domain.WebhookEventStore,
) (*Application, error) {

	openapiRouter, err := newOpenAPIRouter()
	if err != nil {
		return nil, err
	}

	return &Application{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redis,
		validator:     validator,
		mailer:        mailer,
		identity:      identity,
		entitlements:  entitlements,
		webhookEvents: webhookEvents,
		openapiRouter: openapiRouter,
	}, nil
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := redisotel.InstrumentTracing(rdb)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10*time.Second + app.config.UpstreamTimeout,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
