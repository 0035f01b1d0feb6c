package middleware

import (
	"github.com/labstack/echo/v4"
)

// OrgHeader is the header callers may use to name the org a request acts on.
const OrgHeader = "X-Org-ID"

// Org resolves the org for the request and sets it as "org_id" on the echo
// context. Resolution order: JWT claim, X-Org-ID header, org_id query
// parameter, configured default. Handlers read c.Get("org_id") when the
// query string does not name an org explicitly.
func Org(defaultOrg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID, _ := c.Get("jwt_org_id").(string)
			if orgID == "" {
				orgID = c.Request().Header.Get(OrgHeader)
			}
			if orgID == "" {
				orgID = c.QueryParam("org_id")
			}
			if orgID == "" {
				orgID = defaultOrg
			}
			c.Set("org_id", orgID)
			return next(c)
		}
	}
}
