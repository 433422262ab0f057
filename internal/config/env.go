// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core
	EnvLogLevel = "OPENCT_LOG_LEVEL"
	EnvDataDir  = "OPENCT_DATA_DIR"

	// Scraper
	EnvScraperTimeout = "OPENCT_SCRAPER_TIMEOUT"
	EnvScraperRate    = "OPENCT_SCRAPER_RATE"
	EnvScraperBurst   = "OPENCT_SCRAPER_BURST"
	EnvRetries        = "OPENCT_RETRIES"
	EnvRetryInitial   = "OPENCT_RETRY_INITIAL"

	// Portal credentials, read by the CLI when no flag is given
	EnvUsername = "OPENCT_USERNAME"
	EnvPassword = "OPENCT_PASSWORD"

	// Registry
	EnvInstitutionsFile = "OPENCT_INSTITUTIONS_FILE"

	// Metrics
	EnvMetricsTextfile = "OPENCT_METRICS_TEXTFILE"

	// Class cell regex overrides
	EnvClassNameRE    = "OPENCT_CLASS_NAME_RE"
	EnvClassTypeRE    = "OPENCT_CLASS_TYPE_RE"
	EnvClassDuringRE  = "OPENCT_CLASS_DURING_RE"
	EnvClassTimeRE    = "OPENCT_CLASS_TIME_RE"
	EnvClassPlaceRE   = "OPENCT_CLASS_PLACE_RE"
	EnvClassTeacherRE = "OPENCT_CLASS_TEACHER_RE"

	// R2 Snapshot Feature
	EnvR2AccountID       = "OPENCT_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "OPENCT_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "OPENCT_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "OPENCT_R2_BUCKET_NAME"
	EnvR2SnapshotPrefix  = "OPENCT_R2_SNAPSHOT_PREFIX"

	// Sentry Feature
	EnvSentryToken       = "OPENCT_SENTRY_TOKEN"
	EnvSentryHost        = "OPENCT_SENTRY_HOST"
	EnvSentryEnvironment = "OPENCT_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "OPENCT_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "OPENCT_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "OPENCT_BETTERSTACK_ENDPOINT"
)
