package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the caller a request acts for. Every store call receives
// OrganizationID explicitly; ActorID ends up on change entries.
type Principal struct {
	OrganizationID string
	ActorID        string
}

type Claims struct {
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

func (c Claims) Principal() Principal {
	return Principal{OrganizationID: c.OrganizationID, ActorID: c.Subject}
}

func GenerateToken(secret string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrganizationID: p.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ActorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.OrganizationID); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "org claim is not an organization id")
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "sub claim is required")
	}
	return claims, nil
}
