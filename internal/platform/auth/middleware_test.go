package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func runProtected(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrgID: "org-42",
		Roles: []string{RoleClinician},
	}
	tokenStr := signToken(t, claims, testKey)

	mw := JWTMiddleware(JWTConfig{SigningKey: testKey})
	rec, c := runProtected(t, mw, "Bearer "+tokenStr)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, _ := c.Get("jwt_org_id").(string); got != "org-42" {
		t.Errorf("jwt_org_id = %q, want org-42", got)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "user-1" {
		t.Errorf("user id = %q, want user-1", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleClinician {
		t.Errorf("roles = %v, want [clinician]", roles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: testKey})

	expired := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testKey)
	wrongKey := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, []byte("other-key"))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
	}
	for _, tc := range cases {
		rec, _ := runProtected(t, mw, tc.header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}

func TestJWTMiddleware_IssuerAudience(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{
		SigningKey: testKey,
		Issuer:     "https://issuer.example",
		Audience:   "sanoa-api",
	})

	good := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://issuer.example",
			Audience:  jwt.ClaimStrings{"sanoa-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testKey)
	rec, _ := runProtected(t, mw, "Bearer "+good)
	if rec.Code != http.StatusOK {
		t.Errorf("valid issuer/audience: status = %d, want 200", rec.Code)
	}

	bad := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://evil.example",
			Audience:  jwt.ClaimStrings{"sanoa-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testKey)
	rec, _ = runProtected(t, mw, "Bearer "+bad)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong issuer: status = %d, want 401", rec.Code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	rec, c := runProtected(t, DevAuthMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	roles := RolesFromContext(c.Request().Context())
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("roles = %v, want [admin]", roles)
	}
}
