package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/pdf"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/pkg/pagination"
)

// Upload is a patient-supplied prescription document.
type Upload struct {
	FileName string
	Title    string
	Data     []byte
}

// UploadPDF stores a patient's scanned prescription. Images are converted to
// a single-page PDF.
func (s *Service) UploadPDF(ctx context.Context, p *auth.Principal, up *Upload) (*PDF, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return nil, apperr.Forbidden("Only patients can upload prescriptions")
	}
	if len(up.Data) == 0 {
		return nil, apperr.Validation("Uploaded file is empty")
	}
	data := up.Data
	switch {
	case pdf.IsPDF(data):
	case pdf.IsImage(data):
		converted, err := pdf.ImageToPDF(data)
		if err != nil {
			return nil, apperr.Validation("Only PDF or image files (JPG, PNG) are allowed")
		}
		data = converted
	default:
		return nil, apperr.Validation("Only PDF or image files (JPG, PNG) are allowed")
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = up.FileName
	}
	name := fmt.Sprintf("patient_%s/prescription_upload_%s.pdf", *p.PatientID, uuid.New())
	info, err := s.blobs.Save(ctx, name, data)
	if err != nil {
		return nil, apperr.Internal("store prescription upload", err)
	}
	f := &PDF{
		PatientID:  *p.PatientID,
		UploadedBy: p.UserID,
		Status:     StatusDraft,
		Title:      title,
		FileName:   name,
		FileSize:   info.Size,
	}
	if err := s.repo.CreatePDF(ctx, f); err != nil {
		s.removeBlob(ctx, name)
		return nil, apperr.Internal("record prescription upload", err)
	}
	f.OwnPrescription = true
	s.logger.Info().Str("pdf_id", f.ID.String()).Int64("size", f.FileSize).Msg("prescription uploaded")
	return f, nil
}

func (s *Service) loadPDF(ctx context.Context, id uuid.UUID) (*PDF, error) {
	f, err := s.repo.GetPDF(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Prescription PDF not found")
	}
	if err != nil {
		return nil, apperr.Internal("load prescription pdf", err)
	}
	return f, nil
}

func ownsPDF(p *auth.Principal, f *PDF) bool {
	return p.IsPatient() && p.PatientID != nil && *p.PatientID == f.PatientID
}

// ViewURL returns the download URL of a PDF. Admins, doctors and the owning
// patient may view it.
func (s *Service) ViewURL(ctx context.Context, p *auth.Principal, id uuid.UUID) (string, error) {
	f, err := s.loadPDF(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.IsAdmin() && !p.IsDoctor() && !ownsPDF(p, f) {
		return "", apperr.Forbidden(policy.AccessDenied)
	}
	return s.urls.PublicFileURL(f.FileName), nil
}

func (s *Service) listPDFs(ctx context.Context, p *auth.Principal, patientID uuid.UUID, params pagination.Params) (*PDFList, error) {
	items, total, err := s.repo.ListPDFs(ctx, patientID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list prescription pdfs", err)
	}
	if items == nil {
		items = []*PDF{}
	}
	for _, f := range items {
		f.OwnPrescription = f.UploadedBy == p.UserID
	}
	return &PDFList{PDFs: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func (s *Service) MyPDFs(ctx context.Context, p *auth.Principal, params pagination.Params) (*PDFList, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return nil, apperr.Forbidden("Only patients can access their prescription PDFs")
	}
	return s.listPDFs(ctx, p, *p.PatientID, params)
}

func (s *Service) PatientPDFs(ctx context.Context, p *auth.Principal, patientID uuid.UUID, params pagination.Params) (*PDFList, error) {
	if !p.IsDoctor() {
		return nil, apperr.Forbidden("Only doctor can access patients prescription PDFs")
	}
	return s.listPDFs(ctx, p, patientID, params)
}

// UpdatePDFStatus lets the owning patient track a document's status.
func (s *Service) UpdatePDFStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, status string) (string, error) {
	f, err := s.loadPDF(ctx, id)
	if err != nil {
		return "", err
	}
	if !ownsPDF(p, f) {
		return "", apperr.Forbidden(policy.AccessDenied)
	}
	if !ValidStatus(status) {
		return "", apperr.Validation("Invalid prescription status: " + status)
	}
	err = s.repo.UpdatePDFStatus(ctx, id, status)
	if errors.Is(err, db.ErrNotFound) {
		return "", apperr.NotFound("Prescription PDF not found")
	}
	if err != nil {
		return "", apperr.Internal("update prescription pdf status", err)
	}
	return status, nil
}

// DeletePDF removes the record, then the blob best effort. The owning patient
// or the doctor who produced the document may delete it.
func (s *Service) DeletePDF(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	f, err := s.loadPDF(ctx, id)
	if err != nil {
		return err
	}
	if !ownsPDF(p, f) && !(p.IsDoctor() && f.UploadedBy == p.UserID) {
		return apperr.Forbidden(policy.AccessDenied)
	}
	err = s.repo.DeletePDF(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Prescription PDF not found")
	}
	if err != nil {
		return apperr.Internal("delete prescription pdf", err)
	}
	s.removeBlob(ctx, f.FileName)
	return nil
}
