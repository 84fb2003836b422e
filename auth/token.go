package auth

import (
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "adoption-chat"

// CustomClaims defines the structure of the data stored inside the JWT.
// The subject is the user id.
type CustomClaims struct {
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

func (c CustomClaims) Author() chat.Author {
	return chat.Author{ID: c.Subject, DisplayName: c.DisplayName}
}

// Signer issues and validates HS256 tokens with a shared secret.
type Signer struct {
	secret   []byte
	duration time.Duration
}

func NewSigner(secret string, duration time.Duration) Signer {
	return Signer{secret: []byte(secret), duration: duration}
}

// GenerateToken creates a signed JWT for a specific user.
func (s Signer) GenerateToken(author chat.Author) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		DisplayName: author.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   author.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func (s Signer) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// ReadClaims extracts the claims of a token without checking its signature.
// Clients use it to learn who they are; the server always validates.
func ReadClaims(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
