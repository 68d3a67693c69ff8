package integration_test

const (
	// Auth related constants
	TestJWTSecret   = "integration-test-secret"
	TestJWTIssuer   = "https://auth.creators.test"
	TestJWTAudience = "entitlements"

	TestBuyerId    = "buyer_1"
	TestBuyerEmail = "buyer@example.com"
	TestOtherBuyer = "buyer_2"

	// Catalog related constants
	TestCreatorId          = "creator_1"
	TestCreatorName        = "Ana Lens"
	TestCreatorAccount     = "acct_1TestCreator"
	TestBundleId           = "bundle_1"
	TestBundleTitle        = "Film Presets"
	TestBundlePrice        = "19.99"
	TestBundlePriceInCents = 1999

	// Payment related constants
	TestCheckoutSessionId  = "cs_test_a1B2c3"
	TestCheckoutSessionURL = "https://checkout.stripe.com/c/pay/cs_test_a1B2c3"
	TestPaymentIntentId    = "pi_3Nq9xyzTest"
	TestWebhookSecret      = "whsec_integration_test"

	// Storage related constants
	TestS3Endpoint = "localhost:9000"
	TestS3Bucket   = "bundle-content"
)
