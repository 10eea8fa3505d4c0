package utils

import (
	"time"
)

// Queue job types
const (
	// JobTypePublishPost is carried by jobs that publish a scheduled post
	JobTypePublishPost = "post:publish"

	// JobTypeDeliverWebhook is carried by jobs that deliver an outbound webhook
	JobTypeDeliverWebhook = "webhook:deliver"
)

// Scheduling constants
const (
	// MaxMediaURLs is the maximum number of media attachments per post
	MaxMediaURLs = 4

	// DequeueBlockTimeout is how long a worker blocks on an empty queue before looping
	DequeueBlockTimeout = 1 * time.Second
)

// Webhook delivery constants
const (
	// WebhookRequestTimeout is the per-attempt timeout for outbound webhook requests
	WebhookRequestTimeout = 30 * time.Second

	// WebhookMaxRetries is the number of retries after the initial delivery attempt
	WebhookMaxRetries = 3

	// WebhookSignatureHeader carries the hex HMAC-SHA256 of the request body
	WebhookSignatureHeader = "X-Webhook-Signature"

	// RequestIDHeader carries the caller-supplied or generated request id
	RequestIDHeader = "X-Request-ID"

	// WebhookDeliveryStatusTTL is how long transient delivery status is kept for polling
	WebhookDeliveryStatusTTL = 24 * time.Hour
)

// WebhookRetryDelays is the escalating backoff between delivery attempts
var WebhookRetryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}
