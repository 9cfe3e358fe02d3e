package token

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/hivestreaming/partner-keytool/internal/expiry"
	"github.com/hivestreaming/partner-keytool/internal/key"
)

func testSigner(t *testing.T) (*Signer, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := NewSigner(slog.Default(), Identity{PartnerID: "acme", Key: privateKey})
	return signer, &privateKey.PublicKey
}

func parseToken(t *testing.T, signed string, publicKey *rsa.PublicKey) (map[string]any, jwt.MapClaims) {
	t.Helper()
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return publicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return parsed.Header, claims
}

func TestResolveTarget(t *testing.T) {
	t.Parallel()

	t.Run("manifests only", func(t *testing.T) {
		target, err := ResolveTarget([]string{"a"}, nil)
		require.NoError(t, err)
		require.Equal(t, ManifestTarget([]string{"a"}), target)
	})

	t.Run("regexes only", func(t *testing.T) {
		target, err := ResolveTarget(nil, []string{"b.*"})
		require.NoError(t, err)
		require.Equal(t, RegexTarget([]string{"b.*"}), target)
	})

	t.Run("neither is reporting-only", func(t *testing.T) {
		target, err := ResolveTarget(nil, nil)
		require.NoError(t, err)
		require.Equal(t, ReportingOnly{}, target)
	})

	t.Run("both rejects", func(t *testing.T) {
		_, err := ResolveTarget([]string{"a"}, []string{"b"})
		var claimErr *ClaimError
		require.ErrorAs(t, err, &claimErr)
	})
}

func TestSign(t *testing.T) {
	t.Parallel()

	signer, publicKey := testSigner(t)

	t.Run("content token claims", func(t *testing.T) {
		now := time.Now()
		signed, err := signer.Sign("kid-1", "cust-1", "video-1", ManifestTarget{"m1", "m2"}, "", "10h", now)
		require.NoError(t, err)

		header, claims := parseToken(t, signed, publicKey)
		require.Equal(t, "RS256", header["alg"])
		require.Equal(t, "kid-1", header["kid"])
		require.Equal(t, "acme", claims["iss"])
		require.Equal(t, "video-1", claims["sub"])
		require.Equal(t, Audience, claims["aud"])
		require.Equal(t, "1.0", claims["ver"])
		require.Equal(t, "cust-1", claims["cid"])
		require.Equal(t, []any{"m1", "m2"}, claims["man"])
		require.NotContains(t, claims, "regexes")
		require.NotContains(t, claims, "act")
		require.Equal(t, float64(now.Unix()), claims["iat"])
		require.Equal(t, float64(now.Unix()+36000), claims["exp"])
	})

	t.Run("regex target keeps man empty", func(t *testing.T) {
		signed, err := signer.Sign("kid-1", "cust-1", "video-1", RegexTarget{"ep[0-9]+"}, "", "1h", time.Now())
		require.NoError(t, err)

		_, claims := parseToken(t, signed, publicKey)
		require.Contains(t, claims, "man")
		require.Empty(t, claims["man"])
		require.Equal(t, []any{"ep[0-9]+"}, claims["regexes"])
	})

	t.Run("reporting-only sets the action marker", func(t *testing.T) {
		signed, err := signer.Sign("kid-1", "cust-1", "video-1", ReportingOnly{}, "", "1h", time.Now())
		require.NoError(t, err)

		_, claims := parseToken(t, signed, publicKey)
		require.Equal(t, "reporting", claims["act"])
		require.NotContains(t, claims, "man")
		require.NotContains(t, claims, "regexes")
	})

	t.Run("event name overrides the action", func(t *testing.T) {
		signed, err := signer.Sign("kid-1", "cust-1", "video-1", ReportingOnly{}, "stats", "1h", time.Now())
		require.NoError(t, err)

		_, claims := parseToken(t, signed, publicKey)
		require.Equal(t, "stats", claims["act"])
	})

	t.Run("deterministic for a fixed clock", func(t *testing.T) {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		first, err := signer.Sign("kid-1", "cust-1", "video-1", ManifestTarget{"m1"}, "", "600", now)
		require.NoError(t, err)
		second, err := signer.Sign("kid-1", "cust-1", "video-1", ManifestTarget{"m1"}, "", "600", now)
		require.NoError(t, err)
		require.Equal(t, first, second)

		other, err := signer.Sign("kid-2", "cust-1", "video-1", ManifestTarget{"m1"}, "", "600", now)
		require.NoError(t, err)
		require.NotEqual(t, first, other)
		// Only the header differs between the two key ids.
		require.Equal(t, strings.SplitN(first, ".", 3)[1], strings.SplitN(other, ".", 3)[1])
	})

	t.Run("bad expiration fails", func(t *testing.T) {
		_, err := signer.Sign("kid-1", "cust-1", "video-1", ReportingOnly{}, "", "whenever", time.Now())
		var invalid *expiry.InvalidExpirationError
		require.ErrorAs(t, err, &invalid)

		_, err = signer.Sign("kid-1", "cust-1", "video-1", ReportingOnly{}, "", "0", time.Now())
		require.ErrorAs(t, err, &invalid)
	})
}

func TestSignReporting(t *testing.T) {
	t.Parallel()

	signer, publicKey := testSigner(t)

	t.Run("prod uses the bare hostname", func(t *testing.T) {
		redirectURL, err := signer.SignReporting("kid-1", "cust-1", "video-1", "1h", "prod", time.Now())
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(redirectURL, "https://api.hivestreaming.com/v1/url-redirect/adminportal-jwt/"))

		signed := redirectURL[strings.LastIndex(redirectURL, "/")+1:]
		_, claims := parseToken(t, signed, publicKey)
		require.Equal(t, "reporting", claims["act"])
	})

	t.Run("test uses the suffixed hostname", func(t *testing.T) {
		redirectURL, err := signer.SignReporting("kid-1", "cust-1", "video-1", "1h", "test", time.Now())
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(redirectURL, "https://api-test.hivestreaming.com/v1/url-redirect/adminportal-jwt/"))
	})

	t.Run("anything else rejects", func(t *testing.T) {
		_, err := signer.SignReporting("kid-1", "cust-1", "video-1", "1h", "staging", time.Now())
		var invalid *InvalidEndpointError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, "staging", invalid.Endpoint)
	})
}

// Signing with a generated pair and verifying against its exported JWK
// proves the export encoding matches what verifiers will reconstruct.
func TestExportedJWKVerifiesToken(t *testing.T) {
	t.Parallel()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pair := &key.Pair{Private: privateKey, Public: &privateKey.PublicKey}

	signer := NewSigner(slog.Default(), Identity{PartnerID: "acme", Key: pair.Private})
	signed, err := signer.Sign("kid-1", "cust-1", "video-1", ManifestTarget{"m1"}, "", "1h", time.Now())
	require.NoError(t, err)

	jwk := pair.PublicJWK()
	modulus, err := base64.RawURLEncoding.DecodeString(jwk.Modulus)
	require.NoError(t, err)
	exponent, err := base64.RawURLEncoding.DecodeString(jwk.Exponent)
	require.NoError(t, err)

	rebuilt := &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus),
		E: int(new(big.Int).SetBytes(exponent).Int64()),
	}
	parseToken(t, signed, rebuilt)
}
