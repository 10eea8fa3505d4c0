package platform

import (
	"context"
	"fmt"
	"net/http"
)

const twitterMaxContentLength = 280

// TwitterAdapter publishes posts through the Twitter v2 API. Media is
// uploaded as a prerequisite step before the tweet itself.
type TwitterAdapter struct {
	store  CredentialStore
	cfg    ClientConfig
	client *http.Client
}

// NewTwitterAdapter creates a Twitter adapter
func NewTwitterAdapter(store CredentialStore, cfg ClientConfig) *TwitterAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com/2"
	}
	return &TwitterAdapter{store: store, cfg: cfg, client: cfg.httpClient()}
}

// Name returns the platform identifier
func (a *TwitterAdapter) Name() string { return "twitter" }

// MaxContentLength returns the tweet character limit
func (a *TwitterAdapter) MaxContentLength() int { return twitterMaxContentLength }

// PublishPost validates, resolves credentials, uploads media when present,
// and creates the tweet
func (a *TwitterAdapter) PublishPost(ctx context.Context, req PublishRequest) PublishResult {
	if r := validateContent(a, req.Content); r != nil {
		return *r
	}

	creds, failed := resolveCredentials(ctx, a.store, a, req.TeamID)
	if failed != nil {
		return *failed
	}

	payload := map[string]any{"text": req.Content}

	if len(req.MediaURLs) > 0 {
		mediaIDs := make([]string, 0, len(req.MediaURLs))
		for _, mediaURL := range req.MediaURLs {
			mediaID, perr := a.uploadMedia(ctx, creds, mediaURL)
			if perr != nil {
				return PublishResult{Platform: a.Name(), Success: false, Error: perr}
			}
			mediaIDs = append(mediaIDs, mediaID)
		}
		payload["media"] = map[string]any{"media_ids": mediaIDs}
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/tweets", creds.AccessToken, payload, &out); perr != nil {
		return PublishResult{Platform: a.Name(), Success: false, Error: perr}
	}

	return PublishResult{
		Platform:       a.Name(),
		Success:        true,
		PlatformPostID: out.Data.ID,
		URL:            fmt.Sprintf("https://twitter.com/i/web/status/%s", out.Data.ID),
	}
}

// uploadMedia registers remote media ahead of the tweet and returns the media id
func (a *TwitterAdapter) uploadMedia(ctx context.Context, creds *Credentials, mediaURL string) (string, *PublishError) {
	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	payload := map[string]any{"media_url": mediaURL, "media_category": "tweet_image"}
	if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/media/upload", creds.AccessToken, payload, &out); perr != nil {
		return "", perr
	}
	if out.MediaIDString == "" {
		return "", &PublishError{Kind: ErrorKindPlatform, Message: "media upload returned no media id"}
	}
	return out.MediaIDString, nil
}
