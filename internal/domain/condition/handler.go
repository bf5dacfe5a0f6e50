package condition

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
	g := api.Group("/medical-conditions", auth.RequireAuth())
	g.POST("", h.Create)
	g.GET("/search", h.Search)
	g.GET("/my/list", h.MyList)
	g.GET("/my/active", h.MyActive)
	g.GET("/allergies/:patient_id", h.Allergies)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.Create(c.Request().Context(), principal(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.Update(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Medical condition deleted successfully"})
}

func (h *Handler) Search(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.Search)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	f := Filter{
		ConditionType:   c.QueryParam("condition_type"),
		Status:          c.QueryParam("status"),
		Name:            c.QueryParam("name"),
		AllergySeverity: c.QueryParam("allergy_severity"),
	}
	if f.PatientID, err = queryparam.UUID(c, "patient_id"); err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.Search(c.Request().Context(), principal(c), f, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyList(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.MyList)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.MyList(c.Request().Context(), principal(c), c.QueryParam("status"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyActive(c echo.Context) error {
	out, err := h.svc.MyActive(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Allergies(c echo.Context) error {
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	out, err := h.svc.Allergies(c.Request().Context(), principal(c), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
