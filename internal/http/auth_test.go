package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret, "https://id.example.com")

	tests := []struct {
		name    string
		header  func(t *testing.T) string
		want    string
		wantErr bool
	}{
		{
			name: "valid",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com"})
			},
			want: "u1",
		},
		{
			name:    "missing header",
			header:  func(*testing.T) string { return "" },
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			header:  func(t *testing.T) string { return "Basic dXNlcjpwYXNz" },
			wantErr: true,
		},
		{
			name: "wrong secret",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, "another-secret-0123456", jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com"})
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://evil.example.com"})
			},
			wantErr: true,
		},
		{
			name: "expired",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{
					Subject:   "u1",
					Issuer:    "https://id.example.com",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				})
			},
			wantErr: true,
		},
		{
			name: "no subject",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{Issuer: "https://id.example.com"})
			},
			wantErr: true,
		},
		{
			name: "unsigned",
			header: func(t *testing.T) string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
					Subject:   "u1",
					Issuer:    "https://id.example.com",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("sign: %v", err)
				}
				return "Bearer " + token
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Authenticate(tt.header(t))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Authenticate() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Authenticate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticateMissingTokenSentinel(t *testing.T) {
	_, err := NewAuthenticator(testSecret, "").Authenticate("Bearer ")
	if !errors.Is(err, errMissingToken) {
		t.Fatalf("expected errMissingToken, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator(testSecret, "")
	var seen string
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.RegisteredClaims{Subject: "u9"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "u9" {
		t.Fatalf("status = %d, user = %q", rec.Code, seen)
	}
}
