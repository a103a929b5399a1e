// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required in server mode)
	EnvLineChannelAccessToken = "FAQ_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "FAQ_LINE_CHANNEL_SECRET"

	// Server
	EnvPort            = "FAQ_PORT"
	EnvLogLevel        = "FAQ_LOG_LEVEL"
	EnvShutdownTimeout = "FAQ_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir           = "FAQ_DATA_DIR"
	EnvCorpusFile        = "FAQ_CORPUS_FILE"
	EnvStopwordsZHFile   = "FAQ_STOPWORDS_ZH_FILE"
	EnvStopwordsENFile   = "FAQ_STOPWORDS_EN_FILE"
	EnvTokenizer         = "FAQ_TOKENIZER"
	EnvSegmenterDict     = "FAQ_SEGMENTER_DICT"
	EnvCorpusLoadTimeout = "FAQ_CORPUS_LOAD_TIMEOUT"

	// Matching
	EnvThreshold      = "FAQ_THRESHOLD"
	EnvFallbackAnswer = "FAQ_FALLBACK_ANSWER"

	// Webhook
	EnvWebhookTimeout = "FAQ_WEBHOOK_TIMEOUT"
	EnvGroupAnswerAll = "FAQ_GROUP_ANSWER_ALL"

	// Rate Limits
	EnvGlobalRateRPS  = "FAQ_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "FAQ_USER_RATE_BURST"
	EnvUserRateRefill = "FAQ_USER_RATE_REFILL"

	// R2 Corpus Feature
	EnvR2Enabled         = "FAQ_R2_ENABLED"
	EnvR2AccountID       = "FAQ_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "FAQ_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "FAQ_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "FAQ_R2_BUCKET_NAME"
	EnvR2Prefix          = "FAQ_R2_PREFIX"

	// Sentry Feature
	EnvSentryToken       = "FAQ_SENTRY_TOKEN"
	EnvSentryHost        = "FAQ_SENTRY_HOST"
	EnvSentryEnvironment = "FAQ_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "FAQ_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "FAQ_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "FAQ_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "FAQ_METRICS_USERNAME"
	EnvMetricsPassword = "FAQ_METRICS_PASSWORD"
)
