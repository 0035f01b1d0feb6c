package agenda

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanoapro/sanoa-lab-sub000/internal/platform/auth"
	"github.com/sanoapro/sanoa-lab-sub000/pkg/pagination"
)

// Handler exposes the agenda analytics reports over HTTP. It is a thin
// translation layer: parameter parsing and status codes here, computation
// in the service.
type Handler struct {
	svc  *Service
	repo BookingRepository
}

// NewHandler creates a Handler. repo may be nil when bookings come from an
// external calendar provider; the raw listing endpoint then returns 404.
func NewHandler(svc *Service, repo BookingRepository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reports := api.Group("/agenda", auth.RequireRole("admin", "clinician"))
	reports.GET("/summary", h.GetSummary)
	reports.GET("/rates/resources", h.GetResourceRates)
	reports.GET("/rates/patients", h.GetPatientRates)
	reports.GET("/risk/patients", h.GetPatientRisk)
	reports.GET("/risk/patients/predicted", h.GetPredictedRisk)
	reports.GET("/patients/:key/trend", h.GetPatientTrend)

	if h.repo != nil {
		bookings := api.Group("/bookings", auth.RequireRole("admin", "clinician", "reception"))
		bookings.GET("", h.ListBookings)
	}
}

// queryFromRequest assembles the shared report query. org_id comes from the
// query string first, then from the org resolved by middleware.
func queryFromRequest(c echo.Context) Query {
	orgID := c.QueryParam("org_id")
	if orgID == "" {
		orgID, _ = c.Get("org_id").(string)
	}
	return Query{
		OrgID: orgID,
		From:  c.QueryParam("from"),
		To:    c.QueryParam("to"),
		TZ:    c.QueryParam("tz"),
	}
}

// reportError maps a service error to HTTP: query validation is the
// caller's fault, anything else is a source failure.
func reportError(err error) error {
	if errors.Is(err, ErrInvalidQuery) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func intParam(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetSummary returns the day/resource KPI report for a date range.
func (h *Handler) GetSummary(c echo.Context) error {
	q := queryFromRequest(c)
	fallback := c.QueryParam("resource_fallback")
	summary, err := h.svc.Summary(c.Request().Context(), q, fallback)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// GetResourceRates returns resources ranked by no-show rate.
func (h *Handler) GetResourceRates(c echo.Context) error {
	q := queryFromRequest(c)
	minN := intParam(c, "min_n", DefaultResourceMinN)
	report, err := h.svc.RatesByResource(c.Request().Context(), q, minN)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetPatientRates returns patients ranked by no-show rate.
func (h *Handler) GetPatientRates(c echo.Context) error {
	q := queryFromRequest(c)
	minN := intParam(c, "min_n", DefaultPatientMinN)
	report, err := h.svc.RatesByPatient(c.Request().Context(), q, minN)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetPatientRisk returns the top at-risk patients for the window.
func (h *Handler) GetPatientRisk(c echo.Context) error {
	q := queryFromRequest(c)
	minN := intParam(c, "min_n", DefaultRiskMinN)
	top := intParam(c, "top", DefaultRiskTop)
	rows, err := h.svc.PatientRisk(c.Request().Context(), q, minN, top)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// GetPredictedRisk returns risk rows adjusted by each patient's recent
// week-over-week trend.
func (h *Handler) GetPredictedRisk(c echo.Context) error {
	q := queryFromRequest(c)
	minN := intParam(c, "min_n", DefaultRiskMinN)
	top := intParam(c, "top", DefaultRiskTop)
	weeks := intParam(c, "recent_weeks", DefaultRecentWeeks)
	rows, err := h.svc.PredictedRisk(c.Request().Context(), q, minN, top, weeks)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// GetPatientTrend returns one patient's weekly no-show series and delta.
func (h *Handler) GetPatientTrend(c echo.Context) error {
	q := queryFromRequest(c)
	weeks := intParam(c, "recent_weeks", DefaultRecentWeeks)
	trend, err := h.svc.PatientTrend(c.Request().Context(), q, c.Param("key"), weeks)
	if err != nil {
		return reportError(err)
	}
	return c.JSON(http.StatusOK, trend)
}

// ListBookings returns the raw booking rows behind a report, paginated.
func (h *Handler) ListBookings(c echo.Context) error {
	q := queryFromRequest(c)
	if q.OrgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org_id is required")
	}

	loc, err := h.svc.Location(q.TZ)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := time.ParseInLocation("2006-01-02", q.From, loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
	}
	to, err := time.ParseInLocation("2006-01-02", q.To, loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListBookingsPage(c.Request().Context(), q.OrgID, from, to.AddDate(0, 0, 1), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
