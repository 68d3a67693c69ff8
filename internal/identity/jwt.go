package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/metinatakli/creator-marketplace/internal/domain"
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier maps HS256 bearer tokens issued by the identity platform to a
// stable user id and email.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt secret is empty")
	}

	raw := strings.TrimSpace(credential)
	if raw == "" {
		return nil, domain.ErrInvalidCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(raw, parsed, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || token == nil || !token.Valid {
		return nil, domain.ErrInvalidCredential
	}

	if strings.TrimSpace(parsed.Subject) == "" {
		return nil, domain.ErrInvalidCredential
	}

	return &domain.Identity{
		UserID: parsed.Subject,
		Email:  parsed.Email,
	}, nil
}

// Issue signs a token for userID. It exists for local tooling and tests; in
// production tokens come from the identity platform.
func (v *JWTVerifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := v.now().UTC()

	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		c.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
