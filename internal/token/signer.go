package token

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hivestreaming/partner-keytool/internal/expiry"
)

const (
	// Audience is the fixed service identifier carried in every token.
	Audience = "https://hivestreaming.com"

	// Version is the claims schema version.
	Version = "1.0"

	actionReporting = "reporting"

	redirectPath = "v1/url-redirect/adminportal-jwt"
)

var reportingHosts = map[string]string{
	"prod": "api.hivestreaming.com",
	"test": "api-test.hivestreaming.com",
}

type InvalidEndpointError struct {
	Endpoint string
}

func (e *InvalidEndpointError) Error() string {
	return fmt.Sprintf("unknown endpoint %q, expected prod or test", e.Endpoint)
}

// Identity is the fixed claims context of a signer: one partner, one
// private key.
type Identity struct {
	PartnerID string
	Key       *rsa.PrivateKey
}

type Signer struct {
	logger   *slog.Logger
	identity Identity
}

func NewSigner(logger *slog.Logger, identity Identity) *Signer {
	return &Signer{
		logger:   logger,
		identity: identity,
	}
}

// Sign produces a compact RS256 token over the partner's claims. expiresIn
// is either a second count or a duration string, resolved relative to now.
// An empty eventName on a ReportingOnly target falls back to the reporting
// action marker.
func (s *Signer) Sign(keyID, customerID, videoID string, target Target, eventName, expiresIn string, now time.Time) (string, error) {
	ttl, err := expiry.Relative(expiresIn)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", &expiry.InvalidExpirationError{Input: expiresIn}
	}

	claims := jwt.MapClaims{
		"iss": s.identity.PartnerID,
		"sub": videoID,
		"aud": Audience,
		"ver": Version,
		"cid": customerID,
		"iat": now.Unix(),
		"exp": now.Unix() + ttl,
	}
	action := eventName
	switch t := target.(type) {
	case ManifestTarget:
		claims["man"] = []string(t)
	case RegexTarget:
		claims["man"] = []string{}
		claims["regexes"] = []string(t)
	case ReportingOnly:
		if action == "" {
			action = actionReporting
		}
	}
	if action != "" {
		claims["act"] = action
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID

	signed, err := tok.SignedString(s.identity.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Debug("signed token",
		slog.String("kid", keyID),
		slog.String("cid", customerID),
		slog.Int64("ttl", ttl))
	return signed, nil
}

// SignReporting signs a reporting-only token and wraps it into the admin
// portal redirect URL for the selected endpoint.
func (s *Signer) SignReporting(keyID, customerID, videoID, expiresIn, endpoint string, now time.Time) (string, error) {
	host, ok := reportingHosts[endpoint]
	if !ok {
		return "", &InvalidEndpointError{Endpoint: endpoint}
	}
	signed, err := s.Sign(keyID, customerID, videoID, ReportingOnly{}, "", expiresIn, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s/%s/%s", host, redirectPath, signed), nil
}
