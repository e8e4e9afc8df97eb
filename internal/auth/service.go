package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrInvalidToken is returned for any session token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// Identity is the authenticated user as asserted by the identity provider.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

type Service interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// Verifier checks HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

func NewVerifier(secret, audience string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Verifier{secret: []byte(secret), audience: audience, parser: jwt.NewParser(opts...)}, nil
}

// Ensure Verifier implements Service at compile time.
var _ Service = (*Verifier)(nil)

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (v *Verifier) ValidateToken(_ context.Context, token string) (*Identity, error) {
	var c claims
	tok, err := v.parser.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return &Identity{
		UserID:   id,
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		FullName: metadataFullName(v.parser, token),
	}, nil
}

// metadataFullName reads user_metadata.full_name from the token payload.
// Providers put arbitrary JSON under user_metadata, so it is queried rather than decoded.
func metadataFullName(p *jwt.Parser, token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := p.DecodeSegment(parts[1])
	if err != nil {
		return ""
	}
	return strings.TrimSpace(gjson.GetBytes(payload, "user_metadata.full_name").String())
}
