package appointment

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
	"github.com/carebridge/clinic/internal/platform/reporting"
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
	g := api.Group("/appointments", auth.RequireAuth())
	g.POST("", h.Create)
	g.GET("/search", h.Search)
	g.GET("/my/list", h.MyList)
	g.GET("/my/upcoming", h.Upcoming)
	g.GET("/my/stats", h.Stats)
	g.GET("/my/export", h.Export)
	g.GET("/my/reminders", h.MyReminders)
	g.DELETE("/reminders/:id", h.DeleteReminder)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Cancel)
	g.POST("/:id/reminders", h.CreateReminder)
	g.PUT("/batch", h.Batch, auth.RequireRole(auth.RoleDoctor))
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
	a, err := h.svc.Create(c.Request().Context(), principal(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
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
	a, err := h.svc.Update(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Cancel(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment cancelled successfully"})
}

func parseFilter(c echo.Context) (Filter, error) {
	f := Filter{
		Status:          c.QueryParam("status"),
		AppointmentType: c.QueryParam("appointment_type"),
		Specialization:  c.QueryParam("specialization"),
		DoctorName:      c.QueryParam("doctor_name"),
	}
	var err error
	if f.DoctorID, err = queryparam.UUID(c, "doctor_id"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.PatientID, err = queryparam.UUID(c, "patient_id"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.DateFrom, err = queryparam.Time(c, "date_from"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.DateTo, err = queryparam.Time(c, "date_to"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	return f, nil
}

func (h *Handler) Search(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.Search)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
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

func (h *Handler) Upcoming(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.Upcoming)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	items, err := h.svc.Upcoming(c.Request().Context(), principal(c), params.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Export(c echo.Context) error {
	data, err := h.svc.Export(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return reporting.Attachment(c, "appointments_"+time.Now().UTC().Format("20060102_150405")+".xlsx", data)
}

func (h *Handler) Batch(c echo.Context) error {
	var req batch.Request
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	res, err := h.svc.Batch(c.Request().Context(), principal(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateReminder(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req ReminderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	r, err := h.svc.CreateReminder(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) MyReminders(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.MyList)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	items, err := h.svc.MyReminders(c.Request().Context(), principal(c), params.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteReminder(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReminder(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Reminder deleted successfully"})
}
