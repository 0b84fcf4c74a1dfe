package jira

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookSignatureHeaders are the headers Jira may carry the HMAC
// signature in, in lookup order.
var WebhookSignatureHeaders = []string{
	"X-Hub-Signature",
	"X-Atlassian-Webhook-Signature",
}

// WebhookPayload is the body of a Jira webhook event.
type WebhookPayload struct {
	Timestamp    int64      `json:"timestamp"`
	WebhookEvent string     `json:"webhookEvent"`
	Issue        *Issue     `json:"issue,omitempty"`
	User         *User      `json:"user,omitempty"`
	Comment      *Comment   `json:"comment,omitempty"`
	Changelog    *Changelog `json:"changelog,omitempty"`
}

// Changelog describes the field changes of an issue_updated event.
type Changelog struct {
	ID    string          `json:"id"`
	Items []ChangelogItem `json:"items"`
}

// ChangelogItem is one changed field.
type ChangelogItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// StatusChange returns the status change in the changelog, if any.
func (c *Changelog) StatusChange() (from, to string, ok bool) {
	if c == nil {
		return "", "", false
	}
	for _, item := range c.Items {
		if item.Field == "status" {
			return item.FromString, item.ToString, true
		}
	}
	return "", "", false
}

// ValidateWebhookSignature verifies the HMAC-SHA256 signature of a
// webhook body against the shared secret.
func ValidateWebhookSignature(body []byte, signature, secret string) error {
	if signature == "" || secret == "" {
		return ErrWebhookInvalidSignature
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrWebhookInvalidSignature
	}
	return nil
}

// ParseWebhookPayload decodes and minimally validates a webhook body.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalidPayload, err)
	}
	if payload.WebhookEvent == "" {
		return nil, fmt.Errorf("%w: missing webhookEvent", ErrWebhookInvalidPayload)
	}
	return &payload, nil
}

// ConnectClaims are the JWT claims of an Atlassian Connect webhook.
// QSH is the query string hash binding the token to the request.
type ConnectClaims struct {
	QSH string `json:"qsh"`
	jwt.RegisteredClaims
}

// ValidateConnectJWT verifies an Atlassian Connect JWT (symmetric
// HS256, as issued for Connect app webhooks) and returns its claims.
// expectedIssuer is the app's clientKey; pass "" to skip the issuer
// check.
func ValidateConnectJWT(tokenString, sharedSecret, expectedIssuer string) (*ConnectClaims, error) {
	if tokenString == "" || sharedSecret == "" {
		return nil, ErrWebhookInvalidJWT
	}

	claims := &ConnectClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(sharedSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalidJWT, err)
	}
	if !token.Valid {
		return nil, ErrWebhookInvalidJWT
	}

	if claims.QSH == "" {
		return nil, fmt.Errorf("%w: missing qsh claim", ErrWebhookInvalidJWT)
	}
	if expectedIssuer != "" && claims.Issuer != expectedIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrWebhookInvalidJWT, claims.Issuer)
	}
	return claims, nil
}
