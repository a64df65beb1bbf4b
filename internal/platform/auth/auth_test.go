package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roastline/api/internal/platform/requestctx"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T, opts ...Option) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestVerifyExtractsIdentity(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub":  "cus_123",
		"role": "Manager",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	identity, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.Subject != "cus_123" {
		t.Errorf("expected subject cus_123, got %q", identity.Subject)
	}
	if identity.Role != RoleManager {
		t.Errorf("expected normalised manager role, got %q", identity.Role)
	}
}

func TestVerifyDefaultsMissingRoleToCustomer(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "cus_456",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.Role != RoleCustomer {
		t.Errorf("expected fallback customer role, got %q", identity.Role)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := newTestAuthenticator(t, WithLeeway(0))
	token := signToken(t, jwt.MapClaims{
		"sub": "cus_789",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := a.Verify(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	a := newTestAuthenticator(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cus_1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := a.Verify(signed); err == nil {
		t.Fatal("expected verification error")
	}
}

func TestRequireAttachesIdentity(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub":  "cus_42",
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	var captured requestctx.Identity
	handler := a.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = requestctx.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if captured.Subject != "cus_42" || captured.Role != RoleCustomer {
		t.Errorf("unexpected identity: %+v", captured)
	}
}

func TestRequireRejectsMissingHeader(t *testing.T) {
	a := newTestAuthenticator(t)
	handler := a.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireEnforcesRole(t *testing.T) {
	a := newTestAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub":  "cus_77",
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	handler := a.Require(RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
