package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupAndSupports(t *testing.T) {
	store := &MockCredentialStore{}
	registry := NewRegistry(
		NewTwitterAdapter(store, ClientConfig{}),
		NewMastodonAdapter(store, ClientConfig{}),
	)

	assert.True(t, registry.Supports("twitter"))
	assert.True(t, registry.Supports("  Twitter "))
	assert.True(t, registry.Supports("mastodon"))
	assert.False(t, registry.Supports("myspace"))

	assert.Equal(t, "twitter", registry.Lookup("twitter").Name())
	assert.ElementsMatch(t, []string{"twitter", "mastodon"}, registry.Names())
}

func TestRegistryUnsupportedPlatformStub(t *testing.T) {
	registry := NewRegistry()

	result := registry.Lookup("myspace").PublishPost(context.Background(), PublishRequest{
		Content: "hello",
		TeamID:  1,
	})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindNotSupported, result.Error.Kind)
}

func TestValidateContentRejectsOversized(t *testing.T) {
	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{})

	result := adapter.PublishPost(context.Background(), PublishRequest{
		Content: strings.Repeat("x", twitterMaxContentLength+1),
		TeamID:  1,
	})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindValidation, result.Error.Kind)
}

func TestValidateContentRejectsEmpty(t *testing.T) {
	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{})

	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindValidation, result.Error.Kind)
}

func TestValidateContentCountsRunes(t *testing.T) {
	// 280 multibyte characters are within the limit even though the byte
	// length is far larger
	content := strings.Repeat("é", twitterMaxContentLength)
	require.Greater(t, len(content), twitterMaxContentLength)

	if r := validateContent(NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{}), content); r != nil {
		t.Fatalf("expected rune-counted content to pass validation, got %v", r.Error)
	}
}

func TestPublishMissingCredentials(t *testing.T) {
	store := &MockCredentialStore{
		GetCredentialsFunc: func(ctx context.Context, teamID uint, platform string) (*Credentials, error) {
			return nil, nil
		},
	}
	adapter := NewTwitterAdapter(store, ClientConfig{})

	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "hello", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindNotConnected, result.Error.Kind)
}

func TestPublishCredentialLookupFailure(t *testing.T) {
	store := &MockCredentialStore{
		GetCredentialsFunc: func(ctx context.Context, teamID uint, platform string) (*Credentials, error) {
			return nil, errors.New("redis down")
		},
	}
	adapter := NewTwitterAdapter(store, ClientConfig{})

	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "hello", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindAuth, result.Error.Kind)
}

func TestTwitterPublishSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tweets", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"1234567890"}}`))
	}))
	defer srv.Close()

	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{BaseURL: srv.URL})
	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "hello world", TeamID: 1})

	require.Nil(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, "twitter", result.Platform)
	assert.Equal(t, "1234567890", result.PlatformPostID)
	assert.Contains(t, result.URL, "1234567890")
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "hello world", gotBody["text"])
}

func TestTwitterPublishWithMedia(t *testing.T) {
	var uploads int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/media/upload":
			uploads++
			_, _ = w.Write([]byte(`{"media_id_string":"m1"}`))
		case "/tweets":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Contains(t, body, "media")
			_, _ = w.Write([]byte(`{"data":{"id":"42"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{BaseURL: srv.URL})
	result := adapter.PublishPost(context.Background(), PublishRequest{
		Content:   "with media",
		MediaURLs: []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
		TeamID:    1,
	})

	require.Nil(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, 2, uploads)
}

func TestPublishPlatformAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"duplicate content"}`))
	}))
	defer srv.Close()

	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{BaseURL: srv.URL})
	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "dup", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindPlatform, result.Error.Kind)
	assert.Equal(t, http.StatusBadRequest, result.Error.StatusCode)
	assert.Contains(t, result.Error.Message, "duplicate content")
}

func TestPublishExpiredCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"token expired"}}`))
	}))
	defer srv.Close()

	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{BaseURL: srv.URL})
	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "hello", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindAuth, result.Error.Kind)
}

func TestPublishNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	adapter := NewTwitterAdapter(&MockCredentialStore{}, ClientConfig{BaseURL: srv.URL})
	result := adapter.PublishPost(context.Background(), PublishRequest{Content: "hello", TeamID: 1})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorKindNetwork, result.Error.Kind)
}

func TestPublishErrorString(t *testing.T) {
	withStatus := &PublishError{Kind: ErrorKindPlatform, Message: "boom", StatusCode: 500}
	assert.Equal(t, "platform_api_error: boom (status 500)", withStatus.Error())

	withoutStatus := &PublishError{Kind: ErrorKindValidation, Message: "too long"}
	assert.Equal(t, "validation_failed: too long", withoutStatus.Error())
}
