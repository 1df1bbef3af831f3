package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testConfig = Config{Secret: "unit-test-secret", Issuer: "tri.identity"}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testConfig.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(scopes interface{}) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "owner-1",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": scopes,
	}
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, validClaims([]string{ScopeWorkoutsRead, ScopeWorkoutsWrite}))

	claims, err := Parse(token, testConfig)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "owner-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if !claims.HasScope(ScopeWorkoutsWrite) || claims.HasScope(ScopeAccountDelete) {
		t.Errorf("scopes = %v", claims.Scopes)
	}
}

func TestParseScopeFormats(t *testing.T) {
	cases := map[string]interface{}{
		"slice":        []string{ScopeProfileWrite},
		"space-joined": ScopeProfileWrite + "  " + ScopeWorkoutsRead,
	}
	for name, scopes := range cases {
		claims, err := Parse(signToken(t, validClaims(scopes)), testConfig)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !claims.HasScope(ScopeProfileWrite) {
			t.Errorf("%s: profile:write missing from %v", name, claims.Scopes)
		}
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	expired := validClaims(nil)
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims(nil)
	wrongIssuer["iss"] = "someone-else"

	noSubject := validClaims(nil)
	delete(noSubject, "sub")

	for name, token := range map[string]string{
		"expired":      signToken(t, expired),
		"wrong issuer": signToken(t, wrongIssuer),
		"no subject":   signToken(t, noSubject),
		"garbage":      "not.a.jwt",
	} {
		if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}

	if _, err := Parse("  ", testConfig); !errors.Is(err, ErrMissingToken) {
		t.Errorf("blank token err = %v, want ErrMissingToken", err)
	}
}

func TestParseRejectsUnsignedAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(nil))
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(signed, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg=none accepted: %v", err)
	}
}

func TestMiddlewareInjectsClaims(t *testing.T) {
	mw := NewMiddleware(testConfig, SkipHealthz)

	var got *Claims
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims([]string{ScopeWorkoutsRead})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.Subject != "owner-1" {
		t.Fatalf("claims = %+v", got)
	}
}

func TestMiddlewareRejectsMissingAndMalformedHeaders(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	}))

	for name, header := range map[string]string{
		"absent":    "",
		"not a bearer": "Basic dXNlcjpwYXNz",
		"empty bearer": "Bearer ",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	mw := NewMiddleware(testConfig, SkipHealthz)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestMiddlewareAcceptsLowercaseBearer(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	req.Header.Set("Authorization", "bearer "+signToken(t, validClaims(nil)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lowercase bearer status = %d", rec.Code)
	}
}
