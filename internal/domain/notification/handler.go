package notification

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
	g := api.Group("/notifications", auth.RequireAuth())
	g.GET("/my", h.My)
	g.PUT("/:id/read", h.MarkRead)
}

func (h *Handler) My(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.MyList)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	unread, err := queryparam.Bool(c, "unread")
	if err != nil {
		return apperr.Validation(err.Error())
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	resp, err := h.svc.My(c.Request().Context(), p, unread != nil && *unread, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	n, err := h.svc.MarkRead(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}
