package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway refreshes slightly early so a token does not die in flight.
const expiryLeeway = 30 * time.Second

// tokenExpired inspects the access token's exp claim without verifying the
// signature (verification is the server's job). Tokens that cannot be parsed
// or carry no exp claim are treated as live and left for the server to judge.
func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now.Add(expiryLeeway))
}
