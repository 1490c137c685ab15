package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/config"
)

const redirectURICookieName = "console.redirect_uri"

// RelyingParty handles OIDC authentication against the federated identity
// provider by wrapping the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty creates a new RelyingParty from provider configuration.
// Discovery runs against cfg.Authority; the scope list is cfg.Scopes(), which
// prepends the audience-scoped "<audience>/.default" entry when configured.
func NewRelyingParty(ctx context.Context, cfg *config.OIDCConfig) (*RelyingParty, error) {
	// The hash and crypto keys should be sourced from secure configuration in
	// production deployments. For local development, random keys per startup.
	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, httphelper.WithUnsecure())

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Authority, cfg.ClientID, cfg.ClientSecret,
		cfg.RedirectURI, cfg.Scopes(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// RP exposes the wrapped zitadel/oidc RelyingParty for the library's
// AuthURLHandler / CodeExchangeHandler helpers.
func (r *RelyingParty) RP() rp.RelyingParty {
	return r.rp
}

// Refresh performs the refresh-token grant to obtain fresh tokens without
// user interaction. Callers must treat any error as session loss.
func (r *RelyingParty) Refresh(ctx context.Context, refreshToken string) (*oidc.Tokens[*oidc.IDTokenClaims], error) {
	return rp.RefreshTokens[*oidc.IDTokenClaims](ctx, r.rp, refreshToken, "", "")
}

// EndSessionURL builds the provider's sign-out URL. Returns "" when the
// provider does not advertise an end-session endpoint; callers then fall back
// to local cleanup only.
func (r *RelyingParty) EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI string) string {
	u, err := rp.EndSession(ctx, r.rp, idTokenHint, postLogoutRedirectURI, "", "", nil)
	if err != nil || u == nil {
		return ""
	}
	return u.String()
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string for the OIDC state parameter.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetRedirectURICookie stores the post-login redirect target in a short-lived
// cookie so the SSO callback can resume the originally requested path.
func SetRedirectURICookie(w http.ResponseWriter, r *http.Request, redirectURI string) {
	http.SetCookie(w, &http.Cookie{
		Name:     redirectURICookieName,
		Value:    redirectURI,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// GetRedirectURICookie retrieves and clears the redirect URI cookie.
// Returns empty string if the cookie is not found or expired.
func GetRedirectURICookie(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(redirectURICookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     redirectURICookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})

	return cookie.Value
}
