package profile

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/profiles")

	// public directory
	g.GET("/doctors/search", h.SearchDoctors)
	g.GET("/doctors/:doctor_id", h.GetDoctor)

	self := g.Group("", auth.RequireAuth())
	self.GET("/me", h.GetMe)
	self.PUT("/me", h.UpdateMe)

	// admins pass RequireRole but have no doctor profile for the list views
	doctor := g.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/patients/:patient_id", h.GetPatient)
	doctor.GET("/doctors/patients", h.ListMyPatients)
	doctor.GET("/doctors/patients/search", h.SearchMyPatients)
	doctor.GET("/bookmark", h.ListBookmarks)
	doctor.POST("/bookmark/:patient_id/toggle", h.ToggleBookmark)
}

func (h *Handler) GetMe(c echo.Context) error {
	resp, err := h.svc.GetMe(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return apperr.Validation("invalid request body")
	}
	resp, err := h.svc.UpdateMe(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()), &upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	pg, err := pagination.ParsePage(c, pagination.DefaultLimit, pagination.MaxLimit)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	f := DoctorFilter{
		Specialization:      c.QueryParam("specialization"),
		HospitalAffiliation: c.QueryParam("hospital_affiliation"),
		Location:            c.QueryParam("location"),
		Name:                c.QueryParam("name"),
	}
	if v := c.QueryParam("min_experience"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Validation("min_experience must be an integer")
		}
		f.MinExperience = &n
	}
	if v := c.QueryParam("max_fee"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperr.Validation("max_fee must be a number")
		}
		f.MaxFee = &n
	}
	if v := c.QueryParam("is_verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Validation("is_verified must be a boolean")
		}
		f.IsVerified = &b
	}

	resp, err := h.svc.SearchDoctors(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return apperr.Validation("Invalid doctor ID format")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return apperr.Validation("Invalid patient ID format")
	}
	ps, err := h.svc.GetPatient(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) ListMyPatients(c echo.Context) error {
	return h.listMyPatients(c, "")
}

func (h *Handler) SearchMyPatients(c echo.Context) error {
	term := c.QueryParam("search_term")
	if term == "" {
		return apperr.Validation("search_term is required")
	}
	return h.listMyPatients(c, term)
}

func (h *Handler) listMyPatients(c echo.Context, term string) error {
	pg, err := pagination.ParsePage(c, pagination.DefaultLimit, pagination.MaxLimit)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.ListMyPatients(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()), term, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListBookmarks(c echo.Context) error {
	pg, err := pagination.ParsePage(c, pagination.DefaultLimit, pagination.MaxLimit)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.ListBookmarks(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()), pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ToggleBookmark(c echo.Context) error {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return apperr.Validation("Invalid patient ID format")
	}
	resp, err := h.svc.ToggleBookmark(c.Request().Context(), auth.PrincipalFromContext(c.Request().Context()), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
