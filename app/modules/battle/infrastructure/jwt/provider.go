// Package battlejwt issues and validates the bearer tokens the HTTP surface
// uses to resolve caller identity.
package battlejwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Claims is the identity the token carries.
type Claims struct {
	UserID     battletypes.UserID
	VoterClass battletypes.VoterClass
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Provider signs and validates tokens.
type Provider interface {
	GenerateToken(claims *Claims, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	VoterClass string `json:"voter_class,omitempty"`
}

type provider struct {
	secret []byte
}

// NewProvider creates an HMAC-signed JWT provider.
func NewProvider(secret string) Provider {
	return &provider{secret: []byte(secret)}
}

func (p *provider) GenerateToken(domainClaims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   string(domainClaims.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		VoterClass: string(domainClaims.VoterClass),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

func (p *provider) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	domainClaims := &Claims{
		UserID:     battletypes.UserID(claims.Subject),
		VoterClass: battletypes.VoterClass(claims.VoterClass),
	}
	if domainClaims.VoterClass == "" {
		domainClaims.VoterClass = battletypes.VoterPeer
	}
	if claims.IssuedAt != nil {
		domainClaims.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		domainClaims.ExpiresAt = claims.ExpiresAt.Time
	}
	return domainClaims, nil
}
