package record

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/records", auth.RequireAuth())
	g.GET("/my/list", h.MyList)
	g.POST("/my/upload", h.Upload)
	g.PUT("/my/:id", h.Update)
	g.DELETE("/my/:id", h.Delete)
	g.GET("/patient/:patient_id/list", h.PatientList, auth.RequireRole(auth.RoleDoctor))
	g.GET("/attachment/:id/view", h.ViewAttachment)
	g.GET("/:id/attachment/:attachment_id", h.GetAttachment)
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

func formValue(c echo.Context, name string) *string {
	v := c.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}

func (h *Handler) MyList(c echo.Context) error {
	params, err := pagination.Parse(c, pagination.MyList)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.MyList(c.Request().Context(), principal(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Upload(c echo.Context) error {
	name, data, err := blobstore.ReadFormFile(c, "file")
	if err != nil {
		if errors.Is(err, blobstore.ErrNoFile) {
			return apperr.Validation("file is required")
		}
		return apperr.Internal("read upload", err)
	}
	req := &UploadRequest{
		FileName:         name,
		Data:             data,
		Title:            c.FormValue("title"),
		Category:         c.FormValue("category"),
		Summary:          formValue(c, "summary"),
		Facility:         formValue(c, "facility"),
		Diagnosis:        formValue(c, "diagnosis"),
		TreatmentSummary: formValue(c, "treatment_summary"),
		Priority:         c.FormValue("priority"),
		Tags:             formValue(c, "tags"),
	}
	rec, err := h.svc.Upload(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
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
	rec, err := h.svc.Update(c.Request().Context(), principal(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Medical record and attachments deleted successfully"})
}

func (h *Handler) PatientList(c echo.Context) error {
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	params, err := pagination.Parse(c, pagination.MyList)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	resp, err := h.svc.PatientList(c.Request().Context(), principal(c), patientID, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAttachment(c echo.Context) error {
	recordID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	attachmentID, err := uuidParam(c, "attachment_id")
	if err != nil {
		return err
	}
	a, err := h.svc.Attachment(c.Request().Context(), principal(c), recordID, attachmentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ViewAttachment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	url, err := h.svc.ViewURL(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
