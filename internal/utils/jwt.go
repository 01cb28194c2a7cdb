package utils

import (
	"fmt"
	"time"

	"counselmeet/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

// PrincipalClaims are the JWT claims issued by the identity service
type PrincipalClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// TokenIssuer signs and verifies principal tokens with a shared HMAC secret
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Generate issues a token for p. The service itself only verifies tokens;
// generation backs the migration script and tests.
func (t *TokenIssuer) Generate(p models.Principal) (string, error) {
	now := time.Now()
	claims := PrincipalClaims{
		UserID: p.UserID,
		Role:   p.Role,
		StandardClaims: jwt.StandardClaims{
			Issuer:    t.issuer,
			Subject:   p.UserID,
			ExpiresAt: now.Add(t.ttl).Unix(),
			NotBefore: now.Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses tokenString and returns the principal it carries
func (t *TokenIssuer) Validate(tokenString string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PrincipalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return models.Principal{}, err
	}

	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || !token.Valid {
		return models.Principal{}, fmt.Errorf("invalid token")
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return models.Principal{}, fmt.Errorf("unexpected token issuer")
	}
	if claims.UserID == "" || !models.ValidRole(claims.Role) {
		return models.Principal{}, fmt.Errorf("token carries no usable principal")
	}
	return models.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
