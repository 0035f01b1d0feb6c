package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runOrg(t *testing.T, defaultOrg string, setup func(c echo.Context, req *http.Request)) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c, req)
	}

	var got string
	handler := Org(defaultOrg)(func(c echo.Context) error {
		got, _ = c.Get("org_id").(string)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return got
}

func TestOrg_FromJWTClaim(t *testing.T) {
	got := runOrg(t, "default", func(c echo.Context, req *http.Request) {
		c.Set("jwt_org_id", "org-jwt")
		req.Header.Set(OrgHeader, "org-header")
	})
	if got != "org-jwt" {
		t.Errorf("org_id = %q, want org-jwt (claim wins over header)", got)
	}
}

func TestOrg_FromHeader(t *testing.T) {
	got := runOrg(t, "default", func(c echo.Context, req *http.Request) {
		req.Header.Set(OrgHeader, "org-header")
	})
	if got != "org-header" {
		t.Errorf("org_id = %q, want org-header", got)
	}
}

func TestOrg_FromQueryParam(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?org_id=org-query", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := Org("default")(func(c echo.Context) error {
		got, _ = c.Get("org_id").(string)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "org-query" {
		t.Errorf("org_id = %q, want org-query", got)
	}
}

func TestOrg_Default(t *testing.T) {
	got := runOrg(t, "clinic-default", nil)
	if got != "clinic-default" {
		t.Errorf("org_id = %q, want clinic-default", got)
	}
}
