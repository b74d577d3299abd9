// Package auth signs and parses the HS256 access tokens handed out with a
// session.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the id of the session the token
// belongs to. Subject is the user id and ID (jti) is 256 bits of randomness
// so no two tokens are ever equal.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// GenerateToken signs an access token for the session valid from issuedAt
// for ttl.
func GenerateToken(userID, sessionID string, secretKey []byte, issuedAt time.Time, ttl time.Duration) (string, error) {
	jti, err := common.MakeRandHexString(common.TokenBytes)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and the expiry against now. A token
// with a valid signature that has expired is returned together with
// common.ErrSessionExpired; any other failure yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, common.ErrSessionExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
