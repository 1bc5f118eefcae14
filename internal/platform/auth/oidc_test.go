package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

func newJWKSServer(t *testing.T, kid string, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	doc := map[string]any{
		"keys": []map[string]string{{
			"kid": kid,
			"kty": "RSA",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRequireOIDCAcceptsValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := newJWKSServer(t, "kid-1", &key.PublicKey)
	defer server.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))
	validator := NewOIDCValidator(cache, WithOIDCClock(func() time.Time { return now }))

	tokenStr := signToken(t, key, "kid-1", jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"aud":   "https://api.kograph.test/internal/deliveries",
		"sub":   "113000000000000000001",
		"email": "delivery-push@kograph.iam.gserviceaccount.com",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	var identity *ServiceIdentity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = ServiceIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	validator.RequireOIDC("https://api.kograph.test/internal/deliveries", []string{"https://accounts.google.com"})(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if identity == nil || identity.Email != "delivery-push@kograph.iam.gserviceaccount.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestRequireOIDCRejectsAudienceMismatch(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := newJWKSServer(t, "kid-1", &key.PublicKey)
	defer server.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))
	validator := NewOIDCValidator(cache, WithOIDCClock(func() time.Time { return now }))

	tokenStr := signToken(t, key, "kid-1", jwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "https://elsewhere.example.com",
		"sub": "113000000000000000001",
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	validator.RequireOIDC("https://api.kograph.test/internal/deliveries", nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOIDCRejectsExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := newJWKSServer(t, "kid-1", &key.PublicKey)
	defer server.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))
	validator := NewOIDCValidator(cache, WithOIDCClock(func() time.Time { return now }))

	tokenStr := signToken(t, key, "kid-1", jwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "https://api.kograph.test/internal/deliveries",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	validator.RequireOIDC("https://api.kograph.test/internal/deliveries", nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
