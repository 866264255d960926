// Package auth resolves the acting user from a bearer token. Login and sessions live in
// another service; this package only verifies what that service signed.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
)

const (
	RoleMember = "member"
	RoleBoard  = "board"
	RoleAdmin  = "admin"
)

// Actor is the user a request acts for. SchoolID is 0 when no school is selected.
type Actor struct {
	UserID   int
	SchoolID int
	Roles    []string
}

func (a Actor) HasRole(roles ...string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// RequireSchool returns the selected school or ErrNoSchoolSelected.
func (a Actor) RequireSchool() (int, error) {
	if a.SchoolID == 0 {
		return 0, appErrors.ErrNoSchoolSelected
	}
	return a.SchoolID, nil
}

// Claims represents JWT claims
type Claims struct {
	UserID   int      `json:"user_id"`
	SchoolID int      `json:"school_id,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for actor, valid for ttl.
func GenerateJWT(actor Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   actor.UserID,
		SchoolID: actor.SchoolID,
		Roles:    actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// ErrorWriter renders an error response. The controller package supplies one so auth
// failures share the API's JSON error shape.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests without a valid bearer token and stores the Actor.
func Middleware(secret string, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeErr(w, r, appErrors.ErrUnauthenticated)
				return
			}
			claims, err := ValidateJWT(token, secret)
			if err != nil {
				writeErr(w, r, appErrors.ErrUnauthenticated)
				return
			}
			actor := Actor{UserID: claims.UserID, SchoolID: claims.SchoolID, Roles: claims.Roles}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole lets through actors holding any of roles.
func RequireRole(writeErr ErrorWriter, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := FromContext(r.Context())
			if !ok {
				writeErr(w, r, appErrors.ErrUnauthenticated)
				return
			}
			if !actor.HasRole(roles...) {
				writeErr(w, r, appErrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
