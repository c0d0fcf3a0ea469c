package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"agt_platform/internal/common"

	svix "github.com/svix/svix-webhooks/go"
)

const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"
)

var ErrMissingSignatureHeaders = errors.New("no svix headers")

// WebhookVerifier checks identity-provider deliveries signed with the shared whsec_ secret.
type WebhookVerifier struct {
	wh *svix.Webhook
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	return &WebhookVerifier{wh: wh}, nil
}

// Verify returns the delivery id on success. Every failure wraps common.ErrAuthentication.
func (v *WebhookVerifier) Verify(payload []byte, header http.Header) (string, error) {
	id := header.Get(HeaderSvixID)
	if id == "" || header.Get(HeaderSvixTimestamp) == "" || header.Get(HeaderSvixSignature) == "" {
		return "", fmt.Errorf("%w: %w", common.ErrAuthentication, ErrMissingSignatureHeaders)
	}
	if err := v.wh.Verify(payload, header); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return id, nil
}

// SecretsEqual compares shared secrets in constant time. An empty expected secret never matches.
func SecretsEqual(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
