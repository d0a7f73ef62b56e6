// Package accounts is a thin HTTP client for the profile CRUD service.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
)

// DefaultTimeout bounds one profile lookup.
const DefaultTimeout = 5 * time.Second

// Client looks up registered contact profiles by identity.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a profile client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the registered profile for an identity, or nil when the
// contact is unknown. Lookup first tries the raw channel identity, then
// falls back to the bare number with any channel suffix stripped.
func (c *Client) Profile(ctx context.Context, identity string) (*models.UserProfile, error) {
	profile, err := c.fetch(ctx, "/api/users/wa/"+url.PathEscape(identity))
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	number := extractNumber(identity)
	if number == "" || number == identity {
		return nil, nil
	}
	return c.fetch(ctx, "/api/users/phone/"+url.PathEscape(number))
}

func (c *Client) fetch(ctx context.Context, path string) (*models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Accounts lookup failed", "error", err)
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var profile models.UserProfile
		if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		slog.Debug("Accounts profile found", "name", profile.Name)
		return &profile, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		slog.Warn("Accounts lookup unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("profile lookup returned status %d", resp.StatusCode)
	}
}

// extractNumber strips a channel suffix from an identity, e.g.
// "5511999998888@s.whatsapp.net" becomes "5511999998888".
func extractNumber(identity string) string {
	number, _, _ := strings.Cut(identity, "@")
	return number
}
