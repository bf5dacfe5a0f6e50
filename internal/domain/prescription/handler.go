package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
	"github.com/carebridge/clinic/internal/platform/blobstore"
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
	staff := auth.RequireRole(auth.RoleDoctor)

	med := api.Group("/medications", auth.RequireAuth())
	med.POST("", h.CreateMedication, staff)
	med.GET("/search", h.SearchMedications)
	med.GET("/my/list-items", h.MyItems)
	med.GET("/my/stats", h.MedicationStats)
	med.GET("/patient/:patient_id/list-items", h.PatientItems, staff)
	med.GET("/:id", h.GetMedication)
	med.PUT("/:id", h.UpdateMedication, staff)
	med.DELETE("/:id", h.DeleteMedication, auth.RequireRole(auth.RoleAdmin))

	rx := api.Group("/prescriptions", auth.RequireAuth())
	rx.POST("", h.Create, staff)
	rx.GET("/search", h.Search)
	rx.GET("/my/list", h.MyList)
	rx.GET("/my/active", h.MyActive)
	rx.GET("/my/stats", h.Stats)
	rx.GET("/my/pdfs", h.MyPDFs)
	rx.PUT("/batch", h.Batch, staff)
	rx.POST("/upload", h.Upload)
	rx.GET("/patients/:patient_id/pdfs", h.PatientPDFs, staff)
	rx.GET("/pdf/:id/view", h.ViewPDF)
	rx.PATCH("/pdf/:id/status", h.UpdatePDFStatus)
	rx.DELETE("/pdf/:id", h.DeletePDF)
	rx.GET("/:id", h.Get)
	rx.PUT("/:id", h.Update)
	rx.DELETE("/:id", h.Discontinue)
	rx.GET("/:id/logs", h.PrescriptionLogs)

	logs := api.Group("/medication-logs", auth.RequireAuth())
	logs.POST("", h.CreateLog)
	logs.GET("/my/list", h.MyLogs)
	logs.GET("/:id", h.GetLog)
	logs.PUT("/:id", h.UpdateLog)
	logs.DELETE("/:id", h.DeleteLog)
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

func idParam(c echo.Context) (uuid.UUID, error) { return uuidParam(c, "id") }

func page(c echo.Context, b pagination.Bounds) (pagination.Params, error) {
	params, err := pagination.Parse(c, b)
	if err != nil {
		return params, apperr.Validation(err.Error())
	}
	return params, nil
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}

// --- medications ---

func (h *Handler) CreateMedication(c echo.Context) error {
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.CreateMedication(c.Request().Context(), principal(c), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.UpdateMedication(c.Request().Context(), principal(c), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return message(c, "Medication deleted successfully")
}

func (h *Handler) SearchMedications(c echo.Context) error {
	params, err := page(c, pagination.Search)
	if err != nil {
		return err
	}
	f := MedicationFilter{
		Name:         c.QueryParam("name"),
		GenericName:  c.QueryParam("generic_name"),
		Manufacturer: c.QueryParam("manufacturer"),
		DrugClass:    c.QueryParam("drug_class"),
	}
	resp, err := h.svc.SearchMedications(c.Request().Context(), f, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyItems(c echo.Context) error {
	params, err := page(c, pagination.MyList)
	if err != nil {
		return err
	}
	resp, err := h.svc.MyItems(c.Request().Context(), principal(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) PatientItems(c echo.Context) error {
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	params, err := page(c, pagination.MyList)
	if err != nil {
		return err
	}
	resp, err := h.svc.PatientItems(c.Request().Context(), principal(c), patientID, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MedicationStats(c echo.Context) error {
	st, err := h.svc.MedicationStats(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// --- prescriptions ---

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	rx, err := h.svc.Create(c.Request().Context(), principal(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rx)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	rx, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rx)
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
	rx, err := h.svc.Update(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) Discontinue(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Discontinue(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return message(c, "Prescription cancelled successfully")
}

func parseFilter(c echo.Context) (Filter, error) {
	f := Filter{
		Status:         c.QueryParam("status"),
		MedicationName: c.QueryParam("medication_name"),
		Diagnosis:      c.QueryParam("diagnosis"),
	}
	var err error
	for _, q := range []struct {
		name string
		dst  **uuid.UUID
	}{
		{"patient_id", &f.PatientID},
		{"doctor_id", &f.DoctorID},
		{"appointment_id", &f.AppointmentID},
	} {
		if *q.dst, err = queryparam.UUID(c, q.name); err != nil {
			return f, apperr.Validation(err.Error())
		}
	}
	if f.PrescribedDateFrom, err = queryparam.Time(c, "prescribed_date_from"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.PrescribedDateTo, err = queryparam.Time(c, "prescribed_date_to"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.StartDateFrom, err = queryparam.Time(c, "start_date_from"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	if f.StartDateTo, err = queryparam.Time(c, "start_date_to"); err != nil {
		return f, apperr.Validation(err.Error())
	}
	return f, nil
}

func (h *Handler) Search(c echo.Context) error {
	params, err := page(c, pagination.Search)
	if err != nil {
		return err
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
	params, err := page(c, pagination.Search)
	if err != nil {
		return err
	}
	resp, err := h.svc.MyList(c.Request().Context(), principal(c), c.QueryParam("status"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyActive(c echo.Context) error {
	params, err := page(c, pagination.Active)
	if err != nil {
		return err
	}
	resp, err := h.svc.MyActive(c.Request().Context(), principal(c), params)
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

// --- pdfs ---

func (h *Handler) Upload(c echo.Context) error {
	name, data, err := blobstore.ReadFormFile(c, "file")
	if errors.Is(err, blobstore.ErrNoFile) {
		return apperr.Validation("file is required")
	}
	if err != nil {
		return apperr.Internal("read upload", err)
	}
	f, err := h.svc.UploadPDF(c.Request().Context(), principal(c), &Upload{
		FileName: name,
		Title:    c.FormValue("title"),
		Data:     data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ViewPDF(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	url, err := h.svc.ViewURL(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) MyPDFs(c echo.Context) error {
	params, err := page(c, pagination.Search)
	if err != nil {
		return err
	}
	resp, err := h.svc.MyPDFs(c.Request().Context(), principal(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) PatientPDFs(c echo.Context) error {
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	params, err := page(c, pagination.Search)
	if err != nil {
		return err
	}
	resp, err := h.svc.PatientPDFs(c.Request().Context(), principal(c), patientID, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdatePDFStatus(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	status, err := h.svc.UpdatePDFStatus(c.Request().Context(), principal(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) DeletePDF(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePDF(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return message(c, "Prescription PDF deleted successfully")
}

// --- medication logs ---

func (h *Handler) CreateLog(c echo.Context) error {
	var in LogInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	l, err := h.svc.CreateLog(c.Request().Context(), principal(c), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetLog(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	l, err := h.svc.GetLog(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) UpdateLog(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in LogInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	l, err := h.svc.UpdateLog(c.Request().Context(), principal(c), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteLog(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLog(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return message(c, "Medication log deleted successfully")
}

func (h *Handler) PrescriptionLogs(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	params, err := page(c, pagination.MyList)
	if err != nil {
		return err
	}
	resp, err := h.svc.PrescriptionLogs(c.Request().Context(), principal(c), id, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyLogs(c echo.Context) error {
	params, err := page(c, pagination.MyList)
	if err != nil {
		return err
	}
	resp, err := h.svc.MyLogs(c.Request().Context(), principal(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
