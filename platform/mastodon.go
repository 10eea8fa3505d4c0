package platform

import (
	"context"
	"net/http"
)

const mastodonMaxContentLength = 500

// MastodonAdapter publishes statuses to a Mastodon instance
type MastodonAdapter struct {
	store  CredentialStore
	cfg    ClientConfig
	client *http.Client
}

// NewMastodonAdapter creates a Mastodon adapter. BaseURL points at the
// caller's instance, e.g. https://mastodon.social/api/v1.
func NewMastodonAdapter(store CredentialStore, cfg ClientConfig) *MastodonAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://mastodon.social/api/v1"
	}
	return &MastodonAdapter{store: store, cfg: cfg, client: cfg.httpClient()}
}

// Name returns the platform identifier
func (a *MastodonAdapter) Name() string { return "mastodon" }

// MaxContentLength returns the status character limit
func (a *MastodonAdapter) MaxContentLength() int { return mastodonMaxContentLength }

// PublishPost validates, resolves credentials, uploads media when present,
// and creates the status
func (a *MastodonAdapter) PublishPost(ctx context.Context, req PublishRequest) PublishResult {
	if r := validateContent(a, req.Content); r != nil {
		return *r
	}

	creds, failed := resolveCredentials(ctx, a.store, a, req.TeamID)
	if failed != nil {
		return *failed
	}

	payload := map[string]any{"status": req.Content}

	if len(req.MediaURLs) > 0 {
		mediaIDs := make([]string, 0, len(req.MediaURLs))
		for _, mediaURL := range req.MediaURLs {
			var media struct {
				ID string `json:"id"`
			}
			mediaPayload := map[string]any{"url": mediaURL}
			if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/media", creds.AccessToken, mediaPayload, &media); perr != nil {
				return PublishResult{Platform: a.Name(), Success: false, Error: perr}
			}
			mediaIDs = append(mediaIDs, media.ID)
		}
		payload["media_ids"] = mediaIDs
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/statuses", creds.AccessToken, payload, &out); perr != nil {
		return PublishResult{Platform: a.Name(), Success: false, Error: perr}
	}

	return PublishResult{
		Platform:       a.Name(),
		Success:        true,
		PlatformPostID: out.ID,
		URL:            out.URL,
	}
}
