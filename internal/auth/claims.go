package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// ProfileClaims is the subset of ID-token claims the console cares about.
// These are display-level only: admin flags never come from claims, so a
// profile built from here alone carries no elevated privilege.
type ProfileClaims struct {
	Subject string `mapstructure:"sub"`
	Email   string `mapstructure:"email"`
	Name    string `mapstructure:"name"`
}

// DecodeProfile extracts profile claims from a raw claim map.
func DecodeProfile(claims map[string]interface{}) (ProfileClaims, error) {
	var profile ProfileClaims
	if err := mapstructure.Decode(claims, &profile); err != nil {
		return ProfileClaims{}, fmt.Errorf("decode profile claims: %w", err)
	}
	if profile.Subject == "" {
		return ProfileClaims{}, fmt.Errorf("claims missing sub")
	}
	return profile, nil
}

// ProfileFromIDToken decodes a stored ID token and extracts profile claims.
// The token is parsed without signature verification: it was verified at
// exchange time and has lived in session storage since.
func ProfileFromIDToken(idToken string) (ProfileClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(idToken, claims); err != nil {
		return ProfileClaims{}, fmt.Errorf("parse ID token: %w", err)
	}
	return DecodeProfile(claims)
}
