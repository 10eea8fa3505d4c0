// Package platform provides a uniform publish contract per external social
// platform. Adapters are stateless; the post processor fans out to them.
package platform

import (
	"context"
	"fmt"
)

// ErrorKind classifies a failed publish into a uniform shape
type ErrorKind string

const (
	// ErrorKindAuth marks rejected or expired credentials
	ErrorKindAuth ErrorKind = "authentication_failed"
	// ErrorKindPlatform marks an error returned by the platform API itself
	ErrorKindPlatform ErrorKind = "platform_api_error"
	// ErrorKindNetwork marks transport failures and timeouts
	ErrorKindNetwork ErrorKind = "network_error"
	// ErrorKindValidation marks content rejected before any network call
	ErrorKindValidation ErrorKind = "validation_failed"
	// ErrorKindNotConnected marks a missing platform account for the team
	ErrorKindNotConnected ErrorKind = "account_not_connected"
	// ErrorKindNotSupported marks a platform with no registered adapter
	ErrorKindNotSupported ErrorKind = "platform_not_supported"
)

// PublishError is the uniform error shape produced by adapters
type PublishError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
}

// Error implements the error interface
func (e *PublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// PublishRequest carries everything an adapter needs for one publish call
type PublishRequest struct {
	Content   string
	MediaURLs []string
	UserID    uint
	TeamID    uint
}

// PublishResult is the outcome of one adapter call. Errors are captured here,
// never raised out of the fan-out.
type PublishResult struct {
	Platform       string        `json:"platform"`
	Success        bool          `json:"success"`
	PlatformPostID string        `json:"platform_post_id,omitempty"`
	URL            string        `json:"url,omitempty"`
	Error          *PublishError `json:"error,omitempty"`
}

// Adapter publishes a post to one external platform
type Adapter interface {
	// Name returns the platform identifier used in Post.Platforms
	Name() string

	// MaxContentLength is the platform's own content limit, checked before
	// any network call
	MaxContentLength() int

	// PublishPost publishes the content, uploading media first when the
	// platform requires it. Failures are reported in the result, not as an
	// error return.
	PublishPost(ctx context.Context, req PublishRequest) PublishResult
}

// Credentials is the stored token bundle for one (team, platform) pair
type Credentials struct {
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_secret,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
}

// CredentialStore resolves stored platform credentials. Implemented by an
// external collaborator; a nil bundle means the account is not connected.
type CredentialStore interface {
	GetCredentials(ctx context.Context, teamID uint, platform string) (*Credentials, error)
}

func failure(platform string, kind ErrorKind, message string, statusCode int) PublishResult {
	return PublishResult{
		Platform: platform,
		Success:  false,
		Error: &PublishError{
			Kind:       kind,
			Message:    message,
			StatusCode: statusCode,
		},
	}
}

// validateContent rejects oversized or empty content before any network call
func validateContent(a Adapter, content string) *PublishResult {
	if content == "" {
		r := failure(a.Name(), ErrorKindValidation, "content is empty", 0)
		return &r
	}
	if len([]rune(content)) > a.MaxContentLength() {
		r := failure(a.Name(), ErrorKindValidation,
			fmt.Sprintf("content exceeds %s limit of %d characters", a.Name(), a.MaxContentLength()), 0)
		return &r
	}
	return nil
}

// resolveCredentials loads the team's token bundle, mapping absence and
// lookup failures into uniform results
func resolveCredentials(ctx context.Context, store CredentialStore, a Adapter, teamID uint) (*Credentials, *PublishResult) {
	creds, err := store.GetCredentials(ctx, teamID, a.Name())
	if err != nil {
		r := failure(a.Name(), ErrorKindAuth, fmt.Sprintf("credential lookup failed: %v", err), 0)
		return nil, &r
	}
	if creds == nil || creds.AccessToken == "" {
		r := failure(a.Name(), ErrorKindNotConnected,
			fmt.Sprintf("%s account is not connected for this team", a.Name()), 0)
		return nil, &r
	}
	return creds, nil
}
