package platform

import (
	"context"
	"fmt"
	"net/http"
)

const linkedinMaxContentLength = 3000

// LinkedInAdapter publishes posts through the LinkedIn UGC API. Media is
// registered first, then referenced from the share.
type LinkedInAdapter struct {
	store  CredentialStore
	cfg    ClientConfig
	client *http.Client
}

// NewLinkedInAdapter creates a LinkedIn adapter
func NewLinkedInAdapter(store CredentialStore, cfg ClientConfig) *LinkedInAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.linkedin.com/v2"
	}
	return &LinkedInAdapter{store: store, cfg: cfg, client: cfg.httpClient()}
}

// Name returns the platform identifier
func (a *LinkedInAdapter) Name() string { return "linkedin" }

// MaxContentLength returns the share character limit
func (a *LinkedInAdapter) MaxContentLength() int { return linkedinMaxContentLength }

// PublishPost validates, resolves credentials, registers media when present,
// and creates the UGC share
func (a *LinkedInAdapter) PublishPost(ctx context.Context, req PublishRequest) PublishResult {
	if r := validateContent(a, req.Content); r != nil {
		return *r
	}

	creds, failed := resolveCredentials(ctx, a.store, a, req.TeamID)
	if failed != nil {
		return *failed
	}

	author := fmt.Sprintf("urn:li:person:%s", creds.AccountID)

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": req.Content},
		"shareMediaCategory": "NONE",
	}

	if len(req.MediaURLs) > 0 {
		media := make([]map[string]any, 0, len(req.MediaURLs))
		for _, mediaURL := range req.MediaURLs {
			asset, perr := a.registerUpload(ctx, creds, author, mediaURL)
			if perr != nil {
				return PublishResult{Platform: a.Name(), Success: false, Error: perr}
			}
			media = append(media, map[string]any{"status": "READY", "media": asset})
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = media
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/ugcPosts", creds.AccessToken, payload, &out); perr != nil {
		return PublishResult{Platform: a.Name(), Success: false, Error: perr}
	}

	return PublishResult{
		Platform:       a.Name(),
		Success:        true,
		PlatformPostID: out.ID,
		URL:            fmt.Sprintf("https://www.linkedin.com/feed/update/%s", out.ID),
	}
}

// registerUpload registers the media asset ahead of the share and returns its URN
func (a *LinkedInAdapter) registerUpload(ctx context.Context, creds *Credentials, author, mediaURL string) (string, *PublishError) {
	payload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes":   []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":     author,
			"sourceUrl": mediaURL,
		},
	}
	var out struct {
		Value struct {
			Asset string `json:"asset"`
		} `json:"value"`
	}
	if perr := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/assets?action=registerUpload", creds.AccessToken, payload, &out); perr != nil {
		return "", perr
	}
	if out.Value.Asset == "" {
		return "", &PublishError{Kind: ErrorKindPlatform, Message: "media registration returned no asset"}
	}
	return out.Value.Asset, nil
}
