// Package ownership issues and verifies signed tokens that prove which HTTP
// client created a boxed user. Only the bearer of the token returned on
// creation may release the handle.
package ownership

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/patric-chuzhbe/nativebridge/internal/handles"
)

// ErrMissingToken is returned when a request carries no ownership token.
var ErrMissingToken = errors.New("missing ownership token")

// ErrNotOwner is returned when a token is invalid or was issued for another handle.
var ErrNotOwner = errors.New("token does not own this handle")

// TokenHeader carries the ownership token, optionally prefixed with "Bearer ".
const TokenHeader = "Authorization"

// Claims binds a token to one handle.
type Claims struct {
	jwt.RegisteredClaims
	Handle uint64 `json:"handle"`
}

type Tokens struct {
	signingKey []byte
}

func New(signingKey []byte) *Tokens {
	return &Tokens{signingKey: signingKey}
}

// Issue signs a token owning h.
func (t *Tokens) Issue(h handles.Handle) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Handle: uint64(h)})

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing ownership token: %w", err)
	}

	return signed, nil
}

// Verify checks that tokenString was issued by t for h.
func (t *Tokens) Verify(tokenString string, h handles.Handle) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return t.signingKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ErrNotOwner
	}
	if claims.Handle != uint64(h) {
		return ErrNotOwner
	}

	return nil
}

// FromRequest extracts the token from the Authorization header.
func FromRequest(request *http.Request) (string, error) {
	value := strings.TrimSpace(request.Header.Get(TokenHeader))
	value = strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
	if value == "" {
		return "", ErrMissingToken
	}

	return value, nil
}
