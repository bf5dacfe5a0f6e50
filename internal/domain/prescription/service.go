package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/domain/profile"
	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/pdf"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/pkg/pagination"
)

// MaxBatch caps the ids accepted by one batch update.
const MaxBatch = 100

type Service struct {
	repo   Repository
	dir    Directory
	blobs  blobstore.Store
	urls   URLBuilder
	tx     db.Transactor
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, dir Directory, blobs blobstore.Store, urls URLBuilder, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, blobs: blobs, urls: urls, tx: tx, logger: logger, now: time.Now}
}

func buildItems(in []ItemInput) ([]Item, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("At least one medication item is required")
	}
	out := make([]Item, 0, len(in))
	for _, it := range in {
		switch {
		case strings.TrimSpace(it.MedicationName) == "":
			return nil, apperr.Validation("Medication name is required")
		case strings.TrimSpace(it.Dosage) == "":
			return nil, apperr.Validation("Dosage is required")
		case strings.TrimSpace(it.Frequency) == "":
			return nil, apperr.Validation("Frequency is required")
		case strings.TrimSpace(it.Quantity) == "":
			return nil, apperr.Validation("Quantity is required")
		}
		out = append(out, Item{
			MedicationName: strings.TrimSpace(it.MedicationName),
			Dosage:         strings.TrimSpace(it.Dosage),
			Frequency:      strings.TrimSpace(it.Frequency),
			Quantity:       strings.TrimSpace(it.Quantity),
			Duration:       it.Duration,
			Instructions:   it.Instructions,
		})
	}
	return out, nil
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Validation("end_date must not be before start_date")
	}
	return nil
}

// Create stores the prescription with its items, renders the prescription
// document and records it as a draft PDF. Everything commits together; a
// stored blob is removed again when the transaction fails.
func (s *Service) Create(ctx context.Context, p *auth.Principal, req *CreateRequest) (*Prescription, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors and admins can create prescriptions")
	}
	patientID, err := policy.ResolveCreatePatient(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	doctorID, err := policy.ResolveCreateDoctor(p, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if req.StartDate == nil {
		return nil, apperr.Validation("start_date is required")
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	doc, err := s.dir.GetDoctor(ctx, doctorID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Validation("Doctor not found")
		}
		return nil, err
	}
	pat, err := s.dir.GetPatient(ctx, nil, patientID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Validation("Patient not found")
		}
		return nil, err
	}

	rx := &Prescription{
		PatientID:     patientID,
		DoctorID:      doctorID,
		AppointmentID: req.AppointmentID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Status:        StatusActive,
		Diagnosis:     req.Diagnosis,
		Notes:         req.Notes,
		Items:         items,
	}
	var stored string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rx); err != nil {
			return err
		}
		data, err := pdf.RenderPrescription(renderContext(rx, pat, doc))
		if err != nil {
			return fmt.Errorf("render prescription: %w", err)
		}
		name := fmt.Sprintf("patient_%s_prescription_%s_%s.pdf", patientID, rx.ID, s.now().UTC().Format("20060102_150405"))
		info, err := s.blobs.Save(ctx, name, data)
		if err != nil {
			return fmt.Errorf("store prescription pdf: %w", err)
		}
		stored = name
		title := "Prescription for Patient"
		if rx.Diagnosis != nil && *rx.Diagnosis != "" {
			title = "Prescription for " + *rx.Diagnosis
		}
		return s.repo.CreatePDF(ctx, &PDF{
			PrescriptionID: &rx.ID,
			PatientID:      patientID,
			UploadedBy:     p.UserID,
			Status:         StatusDraft,
			Title:          title,
			FileName:       name,
			FileSize:       info.Size,
		})
	})
	if err != nil {
		if stored != "" {
			s.removeBlob(ctx, stored)
		}
		if db.IsIntegrityViolation(err) {
			return nil, apperr.Integrity("Failed to create prescription - data integrity error", err)
		}
		return nil, apperr.Internal("create prescription", err)
	}
	s.logger.Info().Str("prescription_id", rx.ID.String()).Str("patient_id", patientID.String()).
		Int("items", len(rx.Items)).Msg("prescription created")
	return rx, nil
}

func renderContext(rx *Prescription, pat *profile.PatientSummary, doc *profile.DoctorListing) pdf.Prescription {
	out := pdf.Prescription{
		ID:                   rx.ID.String(),
		PrescribedDate:       rx.PrescribedDate,
		PatientName:          pat.Name,
		DoctorName:           doc.DoctorName,
		DoctorSpecialization: doc.Specialization,
		LicenseNumber:        doc.MedicalLicenseNumber,
	}
	if pat.DateOfBirth != nil {
		out.PatientDateOfBirth = pat.DateOfBirth.Format("2006-01-02")
	}
	if pat.Gender != nil {
		out.PatientGender = *pat.Gender
	}
	if doc.HospitalAffiliation != nil {
		out.Hospital = *doc.HospitalAffiliation
	}
	if rx.Diagnosis != nil {
		out.Diagnosis = *rx.Diagnosis
	}
	if rx.Notes != nil {
		out.Notes = *rx.Notes
	}
	for _, it := range rx.Items {
		pi := pdf.Item{MedicationName: it.MedicationName, Dosage: it.Dosage, Frequency: it.Frequency, Quantity: it.Quantity}
		if it.Duration != nil {
			pi.Duration = *it.Duration
		}
		if it.Instructions != nil {
			pi.Instructions = *it.Instructions
		}
		out.Items = append(out.Items, pi)
	}
	return out
}

func (s *Service) removeBlob(ctx context.Context, name string) {
	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("blob", name).Msg("failed to remove prescription pdf")
	}
}

// load fetches a prescription the principal may act on.
func (s *Service) load(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Prescription, error) {
	rx, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Prescription not found")
	}
	if err != nil {
		return nil, apperr.Internal("load prescription", err)
	}
	if err := policy.Authorize(p, rx.PatientID, rx.DoctorID); err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Prescription, error) {
	return s.load(ctx, p, id)
}

// Update applies a partial update. Patients may change only status and notes.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req *UpdateRequest) (*Prescription, error) {
	rx, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RestrictFields(p, req.Fields(), "status", "notes"); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, rx, req); err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *Service) apply(ctx context.Context, rx *Prescription, req *UpdateRequest) error {
	if req.Status != nil {
		to := *req.Status
		if !ValidStatus(to) {
			return apperr.Validation("Invalid prescription status: " + to)
		}
		if !CanTransition(rx.Status, to) {
			return apperr.Validation(fmt.Sprintf("Cannot change prescription status from %s to %s", rx.Status, to))
		}
		rx.Status = to
	}
	var items []Item
	if req.Items != nil {
		var err error
		if items, err = buildItems(req.Items); err != nil {
			return err
		}
	}
	if req.StartDate != nil {
		rx.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		rx.EndDate = req.EndDate
	}
	if req.Diagnosis != nil {
		rx.Diagnosis = req.Diagnosis
	}
	if req.Notes != nil {
		rx.Notes = req.Notes
	}
	if err := validateDates(rx.StartDate, rx.EndDate); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, rx); err != nil {
			return err
		}
		if items == nil {
			return nil
		}
		replaced, err := s.repo.ReplaceItems(ctx, rx.ID, items)
		if err != nil {
			return err
		}
		rx.Items = replaced
		return nil
	})
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Prescription not found")
	}
	if err != nil {
		return apperr.Internal("update prescription", err)
	}
	return nil
}

// Discontinue moves the prescription to discontinued and removes its
// generated PDFs. Blob removal is best effort. Discontinuing a discontinued
// prescription succeeds without a write.
func (s *Service) Discontinue(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	rx, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	if rx.Status == StatusDiscontinued {
		return nil
	}
	var removed []string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rx.Status = StatusDiscontinued
		if err := s.repo.Update(ctx, rx); err != nil {
			return err
		}
		pdfs, err := s.repo.PDFsForPrescription(ctx, rx.ID)
		if err != nil {
			return err
		}
		for _, f := range pdfs {
			if err := s.repo.DeletePDF(ctx, f.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
				return err
			}
			removed = append(removed, f.FileName)
		}
		return nil
	})
	if err != nil {
		return apperr.Internal("discontinue prescription", err)
	}
	for _, name := range removed {
		s.removeBlob(ctx, name)
	}
	s.logger.Info().Str("prescription_id", id.String()).Int("pdfs_removed", len(removed)).Msg("prescription discontinued")
	return nil
}

func ownScope(p *auth.Principal) (f Filter, ok bool) {
	switch {
	case p.IsPatient() && p.PatientID != nil:
		f.PatientID = p.PatientID
		return f, true
	case p.IsDoctor() && p.DoctorID != nil:
		f.DoctorID = p.DoctorID
		return f, true
	}
	return f, false
}

// narrow applies role narrowing and fails closed when a patient or doctor
// principal carries no profile id.
func narrow(p *auth.Principal, f Filter) (Filter, error) {
	if p.IsPatient() && p.PatientID == nil {
		return f, apperr.NotFound("Patient profile not found")
	}
	if p.IsDoctor() && p.DoctorID == nil {
		return f, apperr.NotFound("Doctor profile not found")
	}
	sc := policy.NarrowPrescriptions(p, policy.Scope{PatientID: f.PatientID, DoctorID: f.DoctorID})
	f.PatientID, f.DoctorID = sc.PatientID, sc.DoctorID
	return f, nil
}

func (s *Service) Search(ctx context.Context, p *auth.Principal, f Filter, params pagination.Params) (*SearchResponse, error) {
	f, err := narrow(p, f)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, apperr.Validation("Invalid prescription status: " + f.Status)
	}
	return s.search(ctx, f, params)
}

func (s *Service) search(ctx context.Context, f Filter, params pagination.Params) (*SearchResponse, error) {
	items, total, err := s.repo.Search(ctx, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("search prescriptions", err)
	}
	if items == nil {
		items = []*Details{}
	}
	return &SearchResponse{
		Prescriptions: items,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
		HasMore:       params.HasNext(total),
	}, nil
}

func (s *Service) MyList(ctx context.Context, p *auth.Principal, status string, params pagination.Params) (*SearchResponse, error) {
	f, ok := ownScope(p)
	if !ok {
		return nil, apperr.Forbidden("Only patients and doctors can access prescriptions")
	}
	if status != "" {
		if !ValidStatus(status) {
			return nil, apperr.Validation("Invalid prescription status: " + status)
		}
		f.Status = status
	}
	return s.search(ctx, f, params)
}

// MyActive lists the caller's active prescriptions.
func (s *Service) MyActive(ctx context.Context, p *auth.Principal, params pagination.Params) (*SearchResponse, error) {
	f, ok := ownScope(p)
	if !ok {
		return &SearchResponse{Prescriptions: []*Details{}, Limit: params.Limit, Offset: params.Offset}, nil
	}
	f.Status = StatusActive
	return s.search(ctx, f, params)
}

// Stats adds the caller's prescription PDFs to the structured prescription
// counts. Doctors see PDFs they generated or uploaded.
func (s *Service) Stats(ctx context.Context, p *auth.Principal) (*Stats, error) {
	st := &Stats{}
	f, ok := ownScope(p)
	if !ok {
		return st, nil
	}
	counts, err := s.repo.CountByStatus(ctx, f)
	if err != nil {
		return nil, apperr.Internal("count prescriptions", err)
	}
	st.add(counts)
	st.CurrentMedications = counts[StatusActive]

	var pdfCounts map[string]int
	if f.PatientID != nil {
		pdfCounts, err = s.repo.CountPDFsByStatus(ctx, f.PatientID, nil)
	} else {
		pdfCounts, err = s.repo.CountPDFsByStatus(ctx, nil, &p.UserID)
	}
	if err != nil {
		return nil, apperr.Internal("count prescription pdfs", err)
	}
	st.add(pdfCounts)

	if st.MedicationLogsCount, err = s.repo.CountLogs(ctx, f.PatientID, f.DoctorID); err != nil {
		return nil, apperr.Internal("count medication logs", err)
	}
	return st, nil
}

// Batch applies status and notes to each prescription independently.
func (s *Service) Batch(ctx context.Context, p *auth.Principal, req *batch.Request) (*batch.Result, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors and admins can perform batch operations")
	}
	if err := req.Validate(MaxBatch); err != nil {
		return nil, err
	}
	upd := &UpdateRequest{Status: req.Status, Notes: req.Notes}
	res := batch.Apply(ctx, s.logger, req.IDs, func(ctx context.Context, id uuid.UUID) error {
		rx, err := s.load(ctx, p, id)
		if err != nil {
			return err
		}
		return s.apply(ctx, rx, upd)
	})
	s.logger.Info().Int("updated", res.UpdatedCount).Int("failed", res.FailedCount).Msg("prescription batch update")
	return &res, nil
}
