package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/platform/config"
	"agt_platform/internal/platform/logger"

	"github.com/rs/zerolog"
)

// Metadata is what the provider keeps about a user on our behalf. It is a mirror of the
// users table, never read back as the source of truth.
type Metadata struct {
	DBID string `json:"dbId"`
	Role string `json:"role"`
}

// MetadataSyncer pushes internal id/role to the identity provider.
type MetadataSyncer interface {
	SyncMetadata(ctx context.Context, externalID string, md Metadata) error
}

// NoopProvider is used when no provider API is configured.
type NoopProvider struct{}

func (NoopProvider) SyncMetadata(context.Context, string, Metadata) error { return nil }

// HTTPProvider patches public metadata through the provider's management API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

func NewHTTPProvider(cfg *config.Config) *HTTPProvider {
	retries := cfg.IdentitySyncRetries
	if retries < 1 {
		retries = 1
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.IdentityAPIURL, "/"),
		apiKey:     cfg.IdentityAPIKey,
		retries:    retries,
		retryDelay: cfg.IdentitySyncRetryDelay,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.Component("identity_provider"),
	}
}

// NewProvider picks the HTTP provider when an API url is configured.
func NewProvider(cfg *config.Config) MetadataSyncer {
	if cfg.IdentityAPIURL == "" {
		logger.Get().Warn().Msg("IDENTITY_API_URL not set, provider metadata sync disabled")
		return NoopProvider{}
	}
	return NewHTTPProvider(cfg)
}

func (p *HTTPProvider) SyncMetadata(ctx context.Context, externalID string, md Metadata) error {
	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		lastErr = p.patchMetadata(ctx, externalID, md)
		if lastErr == nil {
			return nil
		}
		if !common.IsRetryable(lastErr) || attempt == p.retries {
			break
		}
		p.log.Warn().Err(lastErr).Str("external_id", externalID).Int("attempt", attempt).Msg("Metadata sync failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}
	return lastErr
}

func (p *HTTPProvider) patchMetadata(ctx context.Context, externalID string, md Metadata) error {
	body, err := json.Marshal(map[string]interface{}{"public_metadata": md})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/metadata", p.baseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return common.NewRetryableError(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.log.Debug().Str("external_id", externalID).Str("role", md.Role).Msg("Provider metadata updated")
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return common.NewRetryableError(errors.New("unauthorized"), "authentication failed")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return common.NewRetryableError(fmt.Errorf("HTTP %d", resp.StatusCode), "identity provider unavailable")
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("user %s unknown to provider: %w", externalID, common.ErrNotFound)
	default:
		return fmt.Errorf("identity provider rejected metadata update: HTTP %d", resp.StatusCode)
	}
}
