package platform

import (
	"context"
	"fmt"
	"net/http"
)

const facebookMaxContentLength = 63206

// FacebookAdapter publishes posts to a Facebook page feed through the Graph API
type FacebookAdapter struct {
	store  CredentialStore
	cfg    ClientConfig
	client *http.Client
}

// NewFacebookAdapter creates a Facebook adapter
func NewFacebookAdapter(store CredentialStore, cfg ClientConfig) *FacebookAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	return &FacebookAdapter{store: store, cfg: cfg, client: cfg.httpClient()}
}

// Name returns the platform identifier
func (a *FacebookAdapter) Name() string { return "facebook" }

// MaxContentLength returns the page post character limit
func (a *FacebookAdapter) MaxContentLength() int { return facebookMaxContentLength }

// PublishPost validates, resolves credentials, and posts to the page feed.
// The Graph API accepts a remote media URL inline, so no separate upload
// step is needed.
func (a *FacebookAdapter) PublishPost(ctx context.Context, req PublishRequest) PublishResult {
	if r := validateContent(a, req.Content); r != nil {
		return *r
	}

	creds, failed := resolveCredentials(ctx, a.store, a, req.TeamID)
	if failed != nil {
		return *failed
	}

	endpoint := fmt.Sprintf("%s/%s/feed", a.cfg.BaseURL, creds.AccountID)
	payload := map[string]any{
		"message":      req.Content,
		"access_token": creds.AccessToken,
	}
	switch {
	case len(req.MediaURLs) == 1:
		endpoint = fmt.Sprintf("%s/%s/photos", a.cfg.BaseURL, creds.AccountID)
		payload["url"] = req.MediaURLs[0]
		payload["caption"] = req.Content
		delete(payload, "message")
	case len(req.MediaURLs) > 1:
		// Multi-photo posts attach unpublished photo uploads to a feed post
		attached := make([]map[string]any, 0, len(req.MediaURLs))
		for _, mediaURL := range req.MediaURLs {
			photoID, perr := a.uploadUnpublishedPhoto(ctx, creds, mediaURL)
			if perr != nil {
				return PublishResult{Platform: a.Name(), Success: false, Error: perr}
			}
			attached = append(attached, map[string]any{"media_fbid": photoID})
		}
		payload["attached_media"] = attached
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), endpoint, "", payload, &out); perr != nil {
		return PublishResult{Platform: a.Name(), Success: false, Error: perr}
	}

	postID := out.PostID
	if postID == "" {
		postID = out.ID
	}

	return PublishResult{
		Platform:       a.Name(),
		Success:        true,
		PlatformPostID: postID,
		URL:            fmt.Sprintf("https://www.facebook.com/%s", postID),
	}
}

// uploadUnpublishedPhoto uploads a photo without publishing it and returns its id
func (a *FacebookAdapter) uploadUnpublishedPhoto(ctx context.Context, creds *Credentials, mediaURL string) (string, *PublishError) {
	endpoint := fmt.Sprintf("%s/%s/photos", a.cfg.BaseURL, creds.AccountID)
	payload := map[string]any{
		"url":          mediaURL,
		"published":    false,
		"access_token": creds.AccessToken,
	}
	var out struct {
		ID string `json:"id"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), endpoint, "", payload, &out); perr != nil {
		return "", perr
	}
	if out.ID == "" {
		return "", &PublishError{Kind: ErrorKindPlatform, Message: "photo upload returned no id"}
	}
	return out.ID, nil
}
