package integration_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/app"
	"github.com/metinatakli/creator-marketplace/internal/entitlement"
	"github.com/metinatakli/creator-marketplace/internal/identity"
	"github.com/metinatakli/creator-marketplace/internal/mailer"
	"github.com/metinatakli/creator-marketplace/internal/payment"
	"github.com/metinatakli/creator-marketplace/internal/repository"
	"github.com/metinatakli/creator-marketplace/internal/storage"
	appvalidator "github.com/metinatakli/creator-marketplace/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type TestApp struct {
	App      *app.Application
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Mailer   *mailer.MockMailer
	Payments *payment.MockPaymentProvider
	Tokens   *identity.JWTVerifier
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mockMailer := mailer.NewMockMailer()

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	// presigning is computed locally, the endpoint is never contacted
	s3Client, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
	})
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}

	payments := payment.NewMockPaymentProvider()
	verifier := identity.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	entitlements := entitlement.NewService(entitlement.Dependencies{
		Purchases: repository.NewPostgresPurchaseRepository(db),
		Bundles: repository.NewCachedBundleRepository(
			repository.NewPostgresBundleRepository(db),
			redisClient,
			cfg.BundleCacheTTL,
		),
		Creators: repository.NewPostgresCreatorRepository(db),
		Payments: payments,
		Signer:   storage.NewS3ContentSigner(s3Client, cfg.S3.Bucket),
		Logger:   logger,
	}, entitlement.Config{
		UpstreamTimeout: cfg.UpstreamTimeout,
		ContentURLTTL:   cfg.ContentURLTTL,
		PlatformFeeBps:  cfg.PlatformFeeBps,
	})

	application, err := app.NewApp(
		cfg,
		logger,
		db,
		redisClient,
		appvalidator.NewValidator(),
		mockMailer,
		verifier,
		entitlements,
		repository.NewRedisWebhookEventStore(redisClient, repository.DefaultWebhookEventTTL),
	)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}

	return &TestApp{
		App:      application,
		DB:       db,
		Redis:    redisClient,
		Mailer:   mockMailer,
		Payments: payments,
		Tokens:   verifier,
	}, nil
}

func (a *TestApp) Reset(t testing.TB) {
	truncatePurchasesAndCatalog(t, a.DB)
	require.NoError(t, a.Redis.FlushAll(context.Background()).Err())

	a.Payments.Reset()
	a.Mailer.Reset()
}

func (a *TestApp) Close() {
	a.Redis.Close()
	a.DB.Close()
}
