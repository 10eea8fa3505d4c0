package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig configures one adapter's HTTP client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func (c ClientConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// apiError is the portion of a platform error envelope common enough to
// extract a message from
type apiError struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Title   string `json:"title"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	case e.Error.Message != "":
		return e.Error.Message
	case len(e.Errors) > 0 && e.Errors[0].Message != "":
		return e.Errors[0].Message
	case e.Title != "":
		return e.Title
	default:
		return "unknown platform error"
	}
}

// postJSON sends an authorized JSON request and decodes the response body
// into out. Non-2xx statuses are mapped into the uniform error shape.
func postJSON(ctx context.Context, client *http.Client, platform, url, bearer string, payload any, out any) *PublishError {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishError{Kind: ErrorKindPlatform, Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &PublishError{Kind: ErrorKindNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &PublishError{Kind: ErrorKindNetwork, Message: "request timed out"}
		}
		return &PublishError{Kind: ErrorKindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &PublishError{
			Kind:       ErrorKindAuth,
			Message:    decodeErrorMessage(resp.Body),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PublishError{
			Kind:       ErrorKindPlatform,
			Message:    decodeErrorMessage(resp.Body),
			StatusCode: resp.StatusCode,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &PublishError{Kind: ErrorKindPlatform, Message: fmt.Sprintf("failed to decode response: %v", err)}
		}
	}
	return nil
}

func decodeErrorMessage(r io.Reader) string {
	var envelope apiError
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return "unknown platform error"
	}
	return envelope.text()
}
