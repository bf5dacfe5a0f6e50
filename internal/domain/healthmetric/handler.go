package healthmetric

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/pkg/pagination"
	"github.com/carebridge/clinic/pkg/queryparam"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/health-metrics", auth.RequireAuth())
	g.POST("", h.Create)
	g.GET("/my", h.My)
	g.GET("/my/stats", h.Stats)
	g.GET("/my/dashboard", h.Dashboard)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func idParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.Create(c.Request().Context(), principal(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.Update(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Health metric deleted successfully"})
}

func (h *Handler) My(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.Metrics)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	f := Filter{MetricType: c.QueryParam("metric_type"), RecordedBy: c.QueryParam("recorded_by")}
	if f.RecordedFrom, err = queryparam.Time(c, "recorded_from"); err != nil {
		return apperr.Validation(err.Error())
	}
	if f.RecordedTo, err = queryparam.Time(c, "recorded_to"); err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.My(c.Request().Context(), principal(c), f, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Dashboard(c echo.Context) error {
	out, err := h.svc.Dashboard(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
