// Package businessflow contains the core business logic and use cases for post scheduling workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Post-related errors
	ErrPostNotFound         = errors.New("post not found")
	ErrPostAccessDenied     = errors.New("post access denied")
	ErrPostContentRequired  = errors.New("post content is required")
	ErrPostContentTooLong   = errors.New("post content is too long")
	ErrPlatformsRequired    = errors.New("at least one platform is required")
	ErrPlatformNotSupported = errors.New("platform is not supported")
	ErrTooManyMediaURLs     = errors.New("too many media URLs")
	ErrScheduleTimeRequired = errors.New("schedule time is required")
	ErrScheduleTimeInPast   = errors.New("schedule time is in the past")
	ErrPostNotCancellable   = errors.New("post cannot be cancelled in its current status")
	ErrPostNotReschedulable = errors.New("post can only be rescheduled while scheduled")
	ErrPostNotRetryable     = errors.New("post has no failed platforms to retry")
	ErrPostUUIDRequired     = errors.New("post UUID is required")

	// Webhook config errors
	ErrWebhookConfigNotFound = errors.New("webhook config not found")
	ErrWebhookURLInvalid     = errors.New("webhook URL must be a valid http or https URL")
	ErrWebhookEventsRequired = errors.New("at least one event is required")
	ErrWebhookEventUnknown   = errors.New("unknown webhook event")
	ErrWebhookConfigInactive = errors.New("webhook config is inactive")
	ErrWebhookUpdateRequired = errors.New("at least one field must be provided for update")

	// Queue errors
	ErrEnqueueFailed     = errors.New("failed to enqueue job")
	ErrQueueNotAvailable = errors.New("queue not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsPostNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}

func IsPostAccessDenied(err error) bool {
	return errors.Is(err, ErrPostAccessDenied)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsPostNotCancellable(err error) bool {
	return errors.Is(err, ErrPostNotCancellable)
}

func IsPostNotReschedulable(err error) bool {
	return errors.Is(err, ErrPostNotReschedulable)
}

func IsPostNotRetryable(err error) bool {
	return errors.Is(err, ErrPostNotRetryable)
}

func IsPlatformNotSupported(err error) bool {
	return errors.Is(err, ErrPlatformNotSupported)
}

func IsWebhookConfigNotFound(err error) bool {
	return errors.Is(err, ErrWebhookConfigNotFound)
}

func IsWebhookURLInvalid(err error) bool {
	return errors.Is(err, ErrWebhookURLInvalid)
}

func IsWebhookEventUnknown(err error) bool {
	return errors.Is(err, ErrWebhookEventUnknown)
}
