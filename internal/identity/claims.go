package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// idClaims are the OpenID Connect claims capsule reads from an ID token.
type idClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

func (c idClaims) principal() *Principal {
	p := &Principal{
		Subject:     c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
	}
	if c.ExpiresAt != nil {
		p.Expiry = c.ExpiresAt.Time
	}
	return p
}

// principalFromIDToken decodes a previously verified ID token without checking its signature.
//
// Only tokens read back from the local credential cache go through here; tokens fresh from the network are verified
// at exchange time.
func principalFromIDToken(raw string) (*Principal, error) {
	if raw == "" {
		return nil, fmt.Errorf("credential has no id token")
	}

	var claims idClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("id token has no subject")
	}
	return claims.principal(), nil
}
