package record

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/pdf"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/pkg/pagination"
)

type Service struct {
	repo   Repository
	blobs  blobstore.Store
	urls   URLBuilder
	tx     db.Transactor
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, blobs blobstore.Store, urls URLBuilder, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, urls: urls, tx: tx, logger: logger, now: time.Now}
}

func validateCategory(c string) error {
	if !validCategories[c] {
		return apperr.Validation("Invalid record category: " + c)
	}
	return nil
}

func validatePriority(p string) error {
	if !validPriorities[p] {
		return apperr.Validation("Invalid record priority: " + p)
	}
	return nil
}

func ownPatient(p *auth.Principal) (uuid.UUID, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return uuid.Nil, apperr.Forbidden("Only patients can manage their medical records")
	}
	return *p.PatientID, nil
}

// Upload stores a new record for the calling patient with its file attached.
// Images are converted to PDF. The record exists only if the file was stored.
func (s *Service) Upload(ctx context.Context, p *auth.Principal, req *UploadRequest) (*Record, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if err := validateCategory(req.Category); err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, apperr.Validation("Uploaded file is empty")
	}

	filename := strings.ToLower(path.Base(req.FileName))
	data := req.Data
	if pdf.IsImage(data) {
		converted, err := pdf.ImageToPDF(data)
		if err != nil {
			return nil, apperr.Validation("Uploaded image could not be converted to PDF")
		}
		data = converted
		filename = strings.TrimSuffix(filename, path.Ext(filename)) + ".pdf"
	}
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	contentType := blobstore.ContentTypeFor(ext)

	rec := &Record{
		PatientID:        patientID,
		Title:            title,
		Category:         req.Category,
		RecordDate:       s.now().UTC(),
		Facility:         req.Facility,
		Summary:          req.Summary,
		Diagnosis:        req.Diagnosis,
		TreatmentSummary: req.TreatmentSummary,
		Priority:         priority,
		Tags:             req.Tags,
	}
	var stored string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rec); err != nil {
			return err
		}
		name := fmt.Sprintf("patient_%s/record_%s_%s%s", patientID, rec.ID, s.now().UTC().Format("20060102_150405"), ext)
		info, err := s.blobs.Save(ctx, name, data)
		if err != nil {
			return fmt.Errorf("store record file: %w", err)
		}
		stored = name
		a := &Attachment{
			RecordID:         rec.ID,
			Filename:         name,
			OriginalFilename: filename,
			FilePath:         name,
			FileType:         contentType,
			FileSize:         info.Size,
			ContentType:      contentType,
		}
		if err := s.repo.CreateAttachment(ctx, a); err != nil {
			return err
		}
		rec.Attachments = []*Attachment{a}
		return nil
	})
	if err != nil {
		if stored != "" {
			s.removeBlob(ctx, stored)
		}
		return nil, apperr.Internal("upload medical record", err)
	}
	s.logger.Info().Str("record_id", rec.ID.String()).Str("patient_id", patientID.String()).
		Int64("size", rec.Attachments[0].FileSize).Msg("medical record uploaded")
	return rec, nil
}

func (s *Service) removeBlob(ctx context.Context, name string) {
	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("blob", name).Msg("failed to remove record file")
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medical record not found")
	}
	if err != nil {
		return nil, apperr.Internal("load medical record", err)
	}
	return rec, nil
}

func (s *Service) loadOwned(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Record, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.PatientID != patientID {
		return nil, apperr.Forbidden(policy.AccessDenied)
	}
	return rec, nil
}

func (s *Service) withAttachments(ctx context.Context, recs ...*Record) error {
	ids := make([]uuid.UUID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	byRecord, err := s.repo.AttachmentsFor(ctx, ids)
	if err != nil {
		return apperr.Internal("load attachments", err)
	}
	for _, r := range recs {
		r.Attachments = byRecord[r.ID]
		if r.Attachments == nil {
			r.Attachments = []*Attachment{}
		}
	}
	return nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req *UpdateRequest) (*Record, error) {
	rec, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			return nil, apperr.Validation("title must not be empty")
		}
		rec.Title = t
	}
	if req.Category != nil {
		if err := validateCategory(*req.Category); err != nil {
			return nil, err
		}
		rec.Category = *req.Category
	}
	if req.Priority != nil {
		if err := validatePriority(*req.Priority); err != nil {
			return nil, err
		}
		rec.Priority = *req.Priority
	}
	if req.RecordDate != nil {
		rec.RecordDate = *req.RecordDate
	}
	setIf(&rec.Facility, req.Facility)
	setIf(&rec.Summary, req.Summary)
	setIf(&rec.Diagnosis, req.Diagnosis)
	setIf(&rec.Symptoms, req.Symptoms)
	setIf(&rec.TreatmentSummary, req.TreatmentSummary)
	setIf(&rec.Tags, req.Tags)

	if err := s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("Medical record not found")
		}
		return nil, apperr.Internal("update medical record", err)
	}
	if err := s.withAttachments(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func setIf(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// Delete removes the record with its attachments. Stored files are removed
// first on a best-effort basis.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	rec, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.withAttachments(ctx, rec); err != nil {
		return err
	}
	for _, a := range rec.Attachments {
		s.removeBlob(ctx, a.Filename)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("Medical record not found")
		}
		return apperr.Internal("delete medical record", err)
	}
	s.logger.Info().Str("record_id", id.String()).Int("attachments", len(rec.Attachments)).Msg("medical record deleted")
	return nil
}

func (s *Service) list(ctx context.Context, patientID uuid.UUID, params pagination.Params) (*ListResponse, error) {
	recs, total, err := s.repo.ListByPatient(ctx, patientID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list medical records", err)
	}
	if recs == nil {
		recs = []*Record{}
	}
	if err := s.withAttachments(ctx, recs...); err != nil {
		return nil, err
	}
	return &ListResponse{Records: recs, Total: total, Limit: params.Limit, Offset: params.Offset, HasMore: params.HasNext(total)}, nil
}

func (s *Service) MyList(ctx context.Context, p *auth.Principal, params pagination.Params) (*ListResponse, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, patientID, params)
}

func (s *Service) PatientList(ctx context.Context, p *auth.Principal, patientID uuid.UUID, params pagination.Params) (*ListResponse, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors can view patient records")
	}
	return s.list(ctx, patientID, params)
}

func (s *Service) loadAttachment(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Attachment, *Record, error) {
	a, err := s.repo.GetAttachment(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, apperr.NotFound("Attachment not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("load attachment", err)
	}
	rec, err := s.load(ctx, a.RecordID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.AuthorizePatientData(p, rec.PatientID); err != nil {
		return nil, nil, err
	}
	return a, rec, nil
}

// Attachment returns the metadata of one attachment of a record.
func (s *Service) Attachment(ctx context.Context, p *auth.Principal, recordID, attachmentID uuid.UUID) (*Attachment, error) {
	a, _, err := s.loadAttachment(ctx, p, attachmentID)
	if err != nil {
		return nil, err
	}
	if a.RecordID != recordID {
		return nil, apperr.NotFound("Attachment not found")
	}
	return a, nil
}

// ViewURL returns the download URL of an attachment whose file is present.
func (s *Service) ViewURL(ctx context.Context, p *auth.Principal, attachmentID uuid.UUID) (string, error) {
	a, _, err := s.loadAttachment(ctx, p, attachmentID)
	if err != nil {
		return "", err
	}
	if _, err := s.blobs.Stat(ctx, a.Filename); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", apperr.NotFound("File not found")
		}
		return "", apperr.Internal("stat attachment file", err)
	}
	return s.urls.PublicFileURL(a.Filename), nil
}
