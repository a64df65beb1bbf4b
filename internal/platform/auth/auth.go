package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/platform/requestctx"
)

// Role values carried in the token's role claim.
const (
	RoleCustomer = "customer"
	RoleManager  = "manager"
)

const (
	defaultRoleClaim    = "role"
	defaultFallbackRole = RoleCustomer
	defaultLeeway       = 30 * time.Second
)

var (
	// ErrTokenExpired signals that the presented token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the presented token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Authenticator verifies HMAC-signed bearer tokens and attaches the resulting
// identity to the request context. Token issuance happens elsewhere; this
// package only validates.
type Authenticator struct {
	secret       []byte
	roleClaim    string
	fallbackRole string
	leeway       time.Duration
	parser       *jwt.Parser
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole sets the role assumed when the token carries none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithLeeway sets the clock skew tolerance applied to time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) {
		if d >= 0 {
			a.leeway = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(secret string, opts ...Option) (*Authenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}

	a := &Authenticator{
		secret:       []byte(secret),
		roleClaim:    defaultRoleClaim,
		fallbackRole: defaultFallbackRole,
		leeway:       defaultLeeway,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	)
	return a, nil
}

// Verify parses and validates the raw token, returning the embedded identity.
func (a *Authenticator) Verify(tokenStr string) (requestctx.Identity, error) {
	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestctx.Identity{}, ErrTokenExpired
		}
		return requestctx.Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return requestctx.Identity{}, ErrTokenInvalid
	}

	subject, _ := claims["sub"].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return requestctx.Identity{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	role := normaliseRole(claimAsString(claims, a.roleClaim))
	if role == "" {
		role = a.fallbackRole
	}

	return requestctx.Identity{Subject: subject, Role: role}, nil
}

// Require verifies the Authorization bearer token and, when allowedRoles is
// non-empty, ensures the identity holds one of them.
func (a *Authenticator) Require(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if a == nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}

			identity, err := a.Verify(tokenStr)
			if err != nil {
				writeVerificationError(ctx, w, err)
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[identity.Role]; !ok {
					httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithIdentity(ctx, identity)))
		})
	}
}

func writeVerificationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "bearer token expired", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "bearer token invalid", http.StatusUnauthorized))
	}
}

func claimAsString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	str, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
