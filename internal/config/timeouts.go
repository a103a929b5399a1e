// Package config provides centralized timeout constants for the application.
//
// LINE expects the webhook to be acknowledged quickly. Events are processed
// after the 200 OK, so WebhookProcessing bounds the background work for one
// event, not the HTTP response.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event,
	// matching plus the reply API call.
	WebhookProcessing = 30 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Corpus timeouts
const (
	// CorpusLoad bounds remote sync plus local load and index build at startup.
	CorpusLoad = 2 * time.Minute

	// R2Request is the timeout for a single R2 object operation.
	R2Request = 30 * time.Second

	// ReadinessRetryAfter is the Retry-After value sent while the index builds.
	ReadinessRetryAfter = 10 * time.Second
)

// Background job intervals
const (
	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
