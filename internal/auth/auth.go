// Package auth verifies and issues the bearer tokens that gate the storage API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDClaim is the claim carrying the caller's identifier.
const UserIDClaim = "user_id"

const bearerPrefix = "Bearer "

// Authentication failures. Each maps to a 401 response.
var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidPayload = errors.New("invalid token payload")
)

// Detail returns the client-facing message for an authentication failure.
func Detail(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "Missing Token"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid Token Payload"
	default:
		return "Invalid Token"
	}
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a Verifier for the given secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Authenticate validates an Authorization header value and returns the
// user_id claim. A leading "Bearer " is stripped; a header without it is
// verified as a raw token.
func (v *Verifier) Authenticate(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	tokenString := strings.TrimPrefix(header, bearerPrefix)

	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, ok := claimString(claims[UserIDClaim])
	if !ok {
		return "", ErrInvalidPayload
	}
	return userID, nil
}

// claimString renders a user_id claim. Numeric ids arrive as float64 from the
// JSON decoder.
func claimString(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return fmt.Sprint(id), true
	}
}

// Issuer mints tokens accepted by a Verifier sharing the same secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer for the given secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue creates a signed token for userID that expires after ttl.
// A non-positive ttl produces a token without an exp claim.
func (i *Issuer) Issue(userID string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		UserIDClaim: userID,
		"sub":       userID,
		"iat":       now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
