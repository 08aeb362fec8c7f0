package session

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every authentication failure. Callers map it to a
// single 401 response so the client learns nothing about which check failed.
var ErrUnauthorized = errors.New("session: unauthorized")

// Claims binds a token to the session record that was created at login.
// Secret is a one-time random value stored server side; Fingerprint and
// ClientIP tie the token to the client that received it.
type Claims struct {
	Secret      string `json:"secret"`
	Fingerprint string `json:"fingerprint"`
	ClientIP    string `json:"client_ip"`
	jwt.RegisteredClaims
}

// Fingerprint derives a stable client identifier from the User-Agent header.
func Fingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// Sign issues an RS256 token carrying the claims.
func Sign(priv *rsa.PrivateKey, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
}

func parseToken(pub *rsa.PublicKey, raw string, now func() time.Time) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return pub, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}
	return claims, nil
}
