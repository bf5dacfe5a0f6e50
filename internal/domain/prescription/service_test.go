package prescription

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/clinic/internal/domain/profile"
	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/pkg/pagination"
)

type mockRepo struct {
	meds          map[uuid.UUID]*Medication
	rxs           map[uuid.UUID]*Prescription
	pdfs          map[uuid.UUID]*PDF
	logs          map[uuid.UUID]*MedicationLog
	lastFilter    Filter
	createPDFErr  error
	replaceCalled int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		meds: make(map[uuid.UUID]*Medication),
		rxs:  make(map[uuid.UUID]*Prescription),
		pdfs: make(map[uuid.UUID]*PDF),
		logs: make(map[uuid.UUID]*MedicationLog),
	}
}

func (m *mockRepo) CreateMedication(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockRepo) GetMedication(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *med
	return &cp, nil
}

func (m *mockRepo) UpdateMedication(_ context.Context, med *Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteMedication(_ context.Context, id uuid.UUID) error {
	if _, ok := m.meds[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.meds, id)
	return nil
}

func (m *mockRepo) SearchMedications(_ context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	var out []*Medication
	for _, med := range m.meds {
		if f.Name != "" && !strings.Contains(strings.ToLower(med.Name), strings.ToLower(f.Name)) {
			continue
		}
		out = append(out, med)
	}
	return out, len(out), nil
}

func (m *mockRepo) Create(_ context.Context, rx *Prescription) error {
	rx.ID = uuid.New()
	rx.PrescribedDate = fixedNow
	for i := range rx.Items {
		rx.Items[i].ID = uuid.New()
		rx.Items[i].PrescriptionID = rx.ID
		rx.Items[i].Position = i
	}
	cp := *rx
	cp.Items = append([]Item(nil), rx.Items...)
	m.rxs[rx.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	rx, ok := m.rxs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *rx
	cp.Items = append([]Item{}, rx.Items...)
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, rx *Prescription) error {
	cur, ok := m.rxs[rx.ID]
	if !ok {
		return db.ErrNotFound
	}
	cp := *rx
	cp.Items = cur.Items
	m.rxs[rx.ID] = &cp
	return nil
}

func (m *mockRepo) ReplaceItems(_ context.Context, rxID uuid.UUID, items []Item) ([]Item, error) {
	m.replaceCalled++
	out := make([]Item, len(items))
	for i, it := range items {
		it.ID = uuid.New()
		it.PrescriptionID = rxID
		it.Position = i
		out[i] = it
	}
	m.rxs[rxID].Items = out
	return out, nil
}

func (m *mockRepo) ItemsFor(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]Item, error) {
	out := make(map[uuid.UUID][]Item)
	for _, id := range ids {
		if rx, ok := m.rxs[id]; ok {
			out[id] = rx.Items
		}
	}
	return out, nil
}

func (m *mockRepo) match(f Filter) []*Details {
	var out []*Details
	for _, rx := range m.rxs {
		if f.PatientID != nil && rx.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && rx.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != "" && rx.Status != f.Status {
			continue
		}
		out = append(out, &Details{Prescription: *rx, PatientName: "Pat Ient", DoctorName: "Doc Tor"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrescribedDate.After(out[j].PrescribedDate) })
	return out
}

func (m *mockRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Details, int, error) {
	m.lastFilter = f
	all := m.match(f)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockRepo) CountByStatus(_ context.Context, f Filter) (map[string]int, error) {
	out := map[string]int{}
	for _, d := range m.match(f) {
		out[d.Status]++
	}
	return out, nil
}

func (m *mockRepo) ListPatientItems(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientItem, int, error) {
	var out []*PatientItem
	for _, rx := range m.rxs {
		if rx.PatientID != patientID {
			continue
		}
		for _, it := range rx.Items {
			out = append(out, &PatientItem{ID: it.ID, MedicationName: it.MedicationName, PrescriptionID: rx.ID,
				Status: rx.Status, Doctor: &DoctorRef{Name: "Doc Tor"}})
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CountActiveItems(_ context.Context, patientID uuid.UUID) (int, error) {
	n := 0
	for _, rx := range m.rxs {
		if rx.PatientID == patientID && rx.Status == StatusActive {
			n += len(rx.Items)
		}
	}
	return n, nil
}

func (m *mockRepo) CreatePDF(_ context.Context, f *PDF) error {
	if m.createPDFErr != nil {
		return m.createPDFErr
	}
	f.ID = uuid.New()
	cp := *f
	m.pdfs[f.ID] = &cp
	return nil
}

func (m *mockRepo) GetPDF(_ context.Context, id uuid.UUID) (*PDF, error) {
	f, ok := m.pdfs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepo) ListPDFs(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*PDF, int, error) {
	var out []*PDF
	for _, f := range m.pdfs {
		if f.PatientID == patientID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) PDFsForPrescription(_ context.Context, rxID uuid.UUID) ([]*PDF, error) {
	var out []*PDF
	for _, f := range m.pdfs {
		if f.PrescriptionID != nil && *f.PrescriptionID == rxID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdatePDFStatus(_ context.Context, id uuid.UUID, status string) error {
	f, ok := m.pdfs[id]
	if !ok {
		return db.ErrNotFound
	}
	f.Status = status
	return nil
}

func (m *mockRepo) DeletePDF(_ context.Context, id uuid.UUID) error {
	if _, ok := m.pdfs[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.pdfs, id)
	return nil
}

func (m *mockRepo) CountPDFsByStatus(_ context.Context, patientID, uploadedBy *uuid.UUID) (map[string]int, error) {
	out := map[string]int{}
	for _, f := range m.pdfs {
		if patientID != nil && f.PatientID != *patientID {
			continue
		}
		if uploadedBy != nil && f.UploadedBy != *uploadedBy {
			continue
		}
		out[f.Status]++
	}
	return out, nil
}

func (m *mockRepo) CreateLog(_ context.Context, l *MedicationLog) error {
	l.ID = uuid.New()
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *mockRepo) GetLog(_ context.Context, id uuid.UUID) (*MedicationLog, error) {
	l, ok := m.logs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockRepo) UpdateLog(_ context.Context, l *MedicationLog) error {
	if _, ok := m.logs[l.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteLog(_ context.Context, id uuid.UUID) error {
	if _, ok := m.logs[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.logs, id)
	return nil
}

func (m *mockRepo) logsWhere(keep func(rx *Prescription, l *MedicationLog) bool) []*LogDetails {
	var out []*LogDetails
	for _, l := range m.logs {
		rx := m.rxs[l.PrescriptionID]
		if !keep(rx, l) {
			continue
		}
		d := &LogDetails{MedicationLog: *l}
		if len(rx.Items) > 0 {
			d.PrescriptionMedicationName = &rx.Items[0].MedicationName
		}
		out = append(out, d)
	}
	return out
}

func (m *mockRepo) ListLogs(_ context.Context, rxID uuid.UUID, limit, offset int) ([]*LogDetails, int, error) {
	out := m.logsWhere(func(_ *Prescription, l *MedicationLog) bool { return l.PrescriptionID == rxID })
	return out, len(out), nil
}

func (m *mockRepo) ListPatientLogs(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*LogDetails, int, error) {
	out := m.logsWhere(func(rx *Prescription, _ *MedicationLog) bool { return rx.PatientID == patientID })
	return out, len(out), nil
}

func (m *mockRepo) CountLogs(_ context.Context, patientID, doctorID *uuid.UUID) (int, error) {
	out := m.logsWhere(func(rx *Prescription, _ *MedicationLog) bool {
		return (patientID == nil || rx.PatientID == *patientID) && (doctorID == nil || rx.DoctorID == *doctorID)
	})
	return len(out), nil
}

type mockDirectory struct {
	patients map[uuid.UUID]bool
	doctors  map[uuid.UUID]bool
}

func (d *mockDirectory) GetPatient(_ context.Context, _ *auth.Principal, id uuid.UUID) (*profile.PatientSummary, error) {
	if !d.patients[id] {
		return nil, apperr.NotFound("Patient not found")
	}
	return &profile.PatientSummary{ID: id, Name: "Pat Ient"}, nil
}

func (d *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*profile.DoctorListing, error) {
	if !d.doctors[id] {
		return nil, apperr.NotFound("Doctor profile not found")
	}
	return &profile.DoctorListing{
		DoctorProfile: profile.DoctorProfile{ID: id, Specialization: "General", MedicalLicenseNumber: "LIC-1"},
		DoctorName:    "Doc Tor",
	}, nil
}

type urls struct{}

func (urls) PublicFileURL(name string) string { return "https://api.test/files/" + name }

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	blobs    *blobstore.MemoryStore
	patientA uuid.UUID
	patientB uuid.UUID
	doctorA  uuid.UUID
	doctorB  uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		blobs:    blobstore.NewMemoryStore(),
		patientA: uuid.New(),
		patientB: uuid.New(),
		doctorA:  uuid.New(),
		doctorB:  uuid.New(),
	}
	dir := &mockDirectory{
		patients: map[uuid.UUID]bool{f.patientA: true, f.patientB: true},
		doctors:  map[uuid.UUID]bool{f.doctorA: true, f.doctorB: true},
	}
	f.svc = NewService(f.repo, dir, f.blobs, urls{}, db.NoTx{}, zerolog.Nop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func ptr[T any](v T) *T { return &v }

func patient(id uuid.UUID) *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: auth.RolePatient, PatientID: ptr(id)}
}

func doctor(id uuid.UUID) *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: ptr(id)}
}

func admin() *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}
}

func item(name string) ItemInput {
	return ItemInput{MedicationName: name, Dosage: "500mg", Frequency: "twice daily", Quantity: "30"}
}

// seed stores a prescription with one item directly in the repo.
func (f *fixture) seed(patientID, doctorID uuid.UUID, status string, at time.Time) *Prescription {
	rx := &Prescription{ID: uuid.New(), PatientID: patientID, DoctorID: doctorID, PrescribedDate: at, Status: status}
	rx.Items = []Item{{ID: uuid.New(), PrescriptionID: rx.ID, MedicationName: "Amoxicillin", Dosage: "500mg",
		Frequency: "daily", Quantity: "10"}}
	f.repo.rxs[rx.ID] = rx
	return rx
}

func TestCreate_StoresItemsAndDraftPDF(t *testing.T) {
	f := newFixture()
	doc := doctor(f.doctorA)
	rx, err := f.svc.Create(context.Background(), doc, &CreateRequest{
		PatientID: ptr(f.patientA),
		StartDate: ptr(fixedNow),
		Diagnosis: ptr("Sinusitis"),
		Items:     []ItemInput{item("Amoxicillin"), item("Ibuprofen")},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rx.Status)
	assert.Equal(t, f.doctorA, rx.DoctorID)
	assert.Len(t, f.repo.rxs[rx.ID].Items, 2)

	require.Len(t, f.repo.pdfs, 1)
	for _, p := range f.repo.pdfs {
		assert.Equal(t, StatusDraft, p.Status)
		assert.Equal(t, "Prescription for Sinusitis", p.Title)
		assert.Equal(t, doc.UserID, p.UploadedBy)
		assert.Equal(t, rx.ID, *p.PrescriptionID)
		assert.True(t, strings.HasPrefix(p.FileName, "patient_"+f.patientA.String()+"_prescription_"+rx.ID.String()))
		assert.True(t, strings.HasSuffix(p.FileName, "_20260615_120000.pdf"))
		info, err := f.blobs.Stat(context.Background(), p.FileName)
		require.NoError(t, err)
		assert.Equal(t, info.Size, p.FileSize)
	}
}

func TestCreate_RemovesBlobWhenRecordFails(t *testing.T) {
	f := newFixture()
	f.repo.createPDFErr = errors.New("disk full")
	_, err := f.svc.Create(context.Background(), admin(), &CreateRequest{
		PatientID: ptr(f.patientA),
		DoctorID:  ptr(f.doctorA),
		StartDate: ptr(fixedNow),
		Items:     []ItemInput{item("Amoxicillin")},
	})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 0, f.blobs.Len())
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), patient(f.patientA), &CreateRequest{})
	assert.Equal(t, "Only doctors and admins can create prescriptions", apperr.MessageOf(err))

	tests := []struct {
		name string
		req  CreateRequest
		msg  string
	}{
		{"start", CreateRequest{Items: []ItemInput{item("A")}}, "start_date is required"},
		{"no items", CreateRequest{StartDate: ptr(fixedNow)}, "At least one medication item is required"},
		{"dosage", CreateRequest{StartDate: ptr(fixedNow), Items: []ItemInput{{MedicationName: "A", Frequency: "d", Quantity: "1"}}}, "Dosage is required"},
		{"quantity", CreateRequest{StartDate: ptr(fixedNow), Items: []ItemInput{{MedicationName: "A", Dosage: "1", Frequency: "d"}}}, "Quantity is required"},
		{"dates", CreateRequest{StartDate: ptr(fixedNow), EndDate: ptr(fixedNow.AddDate(0, 0, -1)), Items: []ItemInput{item("A")}}, "end_date must not be before start_date"},
		{"patient", CreateRequest{PatientID: ptr(uuid.New()), StartDate: ptr(fixedNow), Items: []ItemInput{item("A")}}, "Patient not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if req.PatientID == nil {
				req.PatientID = ptr(f.patientA)
			}
			_, err := f.svc.Create(context.Background(), doctor(f.doctorA), &req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.MessageOf(err))
		})
	}
	assert.Empty(t, f.repo.rxs)
}

func TestGet_Access(t *testing.T) {
	f := newFixture()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, patient(f.patientA), rx.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, doctor(f.doctorA), rx.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, patient(f.patientB), rx.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Get(ctx, doctor(f.doctorB), rx.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Get(ctx, admin(), uuid.New())
	assert.Equal(t, "Prescription not found", apperr.MessageOf(err))
}

func TestUpdate_ReplacesItemsWholesale(t *testing.T) {
	f := newFixture()
	rx, err := f.svc.Create(context.Background(), doctor(f.doctorA), &CreateRequest{
		PatientID: ptr(f.patientA),
		StartDate: ptr(fixedNow),
		Items:     []ItemInput{item("A"), item("B")},
	})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), doctor(f.doctorA), rx.ID, &UpdateRequest{Items: []ItemInput{item("C")}})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), admin(), rx.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "C", got.Items[0].MedicationName)
}

func TestUpdate_PatientRestrictedFields(t *testing.T) {
	f := newFixture()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)

	_, err := f.svc.Update(context.Background(), patient(f.patientA), rx.ID, &UpdateRequest{Diagnosis: ptr("x")})
	assert.Equal(t, "Patients can only update: status, notes", apperr.MessageOf(err))

	got, err := f.svc.Update(context.Background(), patient(f.patientA), rx.ID, &UpdateRequest{
		Status: ptr(StatusCompleted), Notes: ptr("done"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 0, f.repo.replaceCalled)
}

func TestUpdate_DiscontinuedIsTerminal(t *testing.T) {
	f := newFixture()
	rx := f.seed(f.patientA, f.doctorA, StatusDiscontinued, fixedNow)
	_, err := f.svc.Update(context.Background(), doctor(f.doctorA), rx.ID, &UpdateRequest{Status: ptr(StatusActive)})
	assert.Equal(t, "Cannot change prescription status from discontinued to active", apperr.MessageOf(err))

	_, err = f.svc.Update(context.Background(), doctor(f.doctorA), rx.ID, &UpdateRequest{Status: ptr("paused")})
	assert.Equal(t, "Invalid prescription status: paused", apperr.MessageOf(err))
}

func TestDiscontinue_RemovesGeneratedPDF(t *testing.T) {
	f := newFixture()
	rx, err := f.svc.Create(context.Background(), doctor(f.doctorA), &CreateRequest{
		PatientID: ptr(f.patientA),
		StartDate: ptr(fixedNow),
		Items:     []ItemInput{item("A")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.blobs.Len())

	require.NoError(t, f.svc.Discontinue(context.Background(), patient(f.patientA), rx.ID))
	assert.Equal(t, StatusDiscontinued, f.repo.rxs[rx.ID].Status)
	assert.Empty(t, f.repo.pdfs)
	assert.Equal(t, 0, f.blobs.Len())

	// idempotent
	require.NoError(t, f.svc.Discontinue(context.Background(), patient(f.patientA), rx.ID))
}

func TestDiscontinue_MissingBlobIsNotFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	// the row points at a blob that was never written; an unrelated blob stays put
	pdfID := uuid.New()
	f.repo.pdfs[pdfID] = &PDF{ID: pdfID, PrescriptionID: &rx.ID, PatientID: f.patientA, FileName: "gone.pdf"}
	_, err := f.blobs.Save(ctx, "patient_other/record.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Discontinue(ctx, admin(), rx.ID))
	assert.Empty(t, f.repo.pdfs)
	assert.Equal(t, StatusDiscontinued, f.repo.rxs[rx.ID].Status)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestSearch_Narrowing(t *testing.T) {
	f := newFixture()
	f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	f.seed(f.patientB, f.doctorB, StatusActive, fixedNow)
	ctx := context.Background()
	params := pagination.Params{Limit: 20}

	resp, err := f.svc.Search(ctx, patient(f.patientA), Filter{PatientID: ptr(f.patientB), DoctorID: ptr(f.doctorB)}, params)
	require.NoError(t, err)
	assert.Equal(t, f.patientA, *f.repo.lastFilter.PatientID)
	assert.Nil(t, f.repo.lastFilter.DoctorID)
	assert.Equal(t, 1, resp.Total)

	_, err = f.svc.Search(ctx, doctor(f.doctorA), Filter{}, params)
	require.NoError(t, err)
	assert.Equal(t, f.doctorA, *f.repo.lastFilter.DoctorID)

	_, err = f.svc.Search(ctx, &auth.Principal{Role: auth.RoleDoctor}, Filter{}, params)
	assert.Equal(t, "Doctor profile not found", apperr.MessageOf(err))

	resp, err = f.svc.Search(ctx, admin(), Filter{}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.True(t, resp.HasMore)
}

func TestMyList_AdminForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.MyList(context.Background(), admin(), "", pagination.Params{Limit: 20})
	assert.Equal(t, "Only patients and doctors can access prescriptions", apperr.MessageOf(err))
}

func TestStats_IncludesPDFsAndLogs(t *testing.T) {
	f := newFixture()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	f.seed(f.patientA, f.doctorA, StatusCompleted, fixedNow)
	f.repo.pdfs[uuid.New()] = &PDF{PatientID: f.patientA, Status: StatusDraft}
	f.repo.logs[uuid.New()] = &MedicationLog{PrescriptionID: rx.ID}

	st, err := f.svc.Stats(context.Background(), patient(f.patientA))
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		TotalPrescriptions: 3, Draft: 1, Active: 1, Completed: 1,
		CurrentMedications: 1, MedicationLogsCount: 1,
	}, st)
}

func TestBatch_ReportsPerItemFailures(t *testing.T) {
	f := newFixture()
	own := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	other := f.seed(f.patientB, f.doctorB, StatusActive, fixedNow)
	missing := uuid.New()

	res, err := f.svc.Batch(context.Background(), doctor(f.doctorA), &batch.Request{
		IDs:    []uuid.UUID{own.ID, other.ID, missing},
		Status: ptr(StatusCompleted),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, []batch.Failure{
		{ID: other.ID.String(), Error: "Access denied"},
		{ID: missing.String(), Error: "Prescription not found"},
	}, res.FailedUpdates)
	assert.Equal(t, StatusCompleted, f.repo.rxs[own.ID].Status)

	_, err = f.svc.Batch(context.Background(), patient(f.patientA), &batch.Request{IDs: []uuid.UUID{own.ID}, Status: ptr(StatusActive)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestBatch_EmptyPatch(t *testing.T) {
	f := newFixture()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)

	res, err := f.svc.Batch(context.Background(), admin(), &batch.Request{IDs: []uuid.UUID{rx.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, StatusActive, f.repo.rxs[rx.ID].Status)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestUploadPDF(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := patient(f.patientA)

	up, err := f.svc.UploadPDF(ctx, p, &Upload{FileName: "scan.png", Data: pngBytes(t)})
	require.NoError(t, err)
	assert.Equal(t, "scan.png", up.Title)
	assert.Equal(t, StatusDraft, up.Status)
	assert.Nil(t, up.PrescriptionID)
	assert.True(t, up.OwnPrescription)
	assert.True(t, strings.HasPrefix(up.FileName, "patient_"+f.patientA.String()+"/"))

	rc, _, err := f.blobs.Open(ctx, up.FileName)
	require.NoError(t, err)
	head := make([]byte, 4)
	_, _ = rc.Read(head)
	rc.Close()
	assert.Equal(t, "%PDF", string(head))

	_, err = f.svc.UploadPDF(ctx, p, &Upload{FileName: "x.txt", Data: []byte("hello")})
	assert.Equal(t, "Only PDF or image files (JPG, PNG) are allowed", apperr.MessageOf(err))
	_, err = f.svc.UploadPDF(ctx, p, &Upload{FileName: "x.pdf"})
	assert.Equal(t, "Uploaded file is empty", apperr.MessageOf(err))
	_, err = f.svc.UploadPDF(ctx, doctor(f.doctorA), &Upload{Data: []byte("%PDF-1.4")})
	assert.Equal(t, "Only patients can upload prescriptions", apperr.MessageOf(err))
}

func TestPDFAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := patient(f.patientA)
	up, err := f.svc.UploadPDF(ctx, owner, &Upload{FileName: "rx.pdf", Title: "Old script", Data: []byte("%PDF-1.4 test")})
	require.NoError(t, err)

	url, err := f.svc.ViewURL(ctx, doctor(f.doctorB), up.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://api.test/files/"+up.FileName, url)
	_, err = f.svc.ViewURL(ctx, patient(f.patientB), up.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.UpdatePDFStatus(ctx, doctor(f.doctorA), up.ID, StatusActive)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	status, err := f.svc.UpdatePDFStatus(ctx, owner, up.ID, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	list, err := f.svc.MyPDFs(ctx, owner, pagination.Params{Limit: 20})
	require.NoError(t, err)
	require.Len(t, list.PDFs, 1)
	assert.True(t, list.PDFs[0].OwnPrescription)

	list, err = f.svc.PatientPDFs(ctx, doctor(f.doctorA), f.patientA, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.False(t, list.PDFs[0].OwnPrescription)

	err = f.svc.DeletePDF(ctx, doctor(f.doctorA), up.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	require.NoError(t, f.svc.DeletePDF(ctx, owner, up.ID))
	assert.Equal(t, 0, f.blobs.Len())
	_, err = f.svc.ViewURL(ctx, owner, up.ID)
	assert.Equal(t, "Prescription PDF not found", apperr.MessageOf(err))
}

func TestMedications(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateMedication(ctx, patient(f.patientA), &MedicationInput{Name: ptr("Aspirin")})
	assert.Equal(t, "Only doctors and admins can create medications", apperr.MessageOf(err))
	_, err = f.svc.CreateMedication(ctx, doctor(f.doctorA), &MedicationInput{Name: ptr(" A ")})
	assert.Equal(t, "Medication name must be at least 2 characters long", apperr.MessageOf(err))

	m, err := f.svc.CreateMedication(ctx, doctor(f.doctorA), &MedicationInput{Name: ptr("Aspirin"), DrugClass: ptr("NSAID")})
	require.NoError(t, err)

	upd, err := f.svc.UpdateMedication(ctx, doctor(f.doctorA), m.ID, &MedicationInput{Manufacturer: ptr("Bayer")})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", upd.Name)
	assert.Equal(t, "Bayer", *upd.Manufacturer)

	list, err := f.svc.SearchMedications(ctx, MedicationFilter{Name: "asp"}, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	err = f.svc.DeleteMedication(ctx, doctor(f.doctorA), m.ID)
	assert.Equal(t, "Only admins can delete medications", apperr.MessageOf(err))
	require.NoError(t, f.svc.DeleteMedication(ctx, admin(), m.ID))
	_, err = f.svc.GetMedication(ctx, m.ID)
	assert.Equal(t, "Medication not found", apperr.MessageOf(err))
}

func TestMedicationLogs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rx := f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	owner := patient(f.patientA)

	_, err := f.svc.CreateLog(ctx, owner, &LogInput{PrescriptionID: rx.ID})
	assert.Equal(t, "Dosage taken is required", apperr.MessageOf(err))
	_, err = f.svc.CreateLog(ctx, patient(f.patientB), &LogInput{PrescriptionID: rx.ID, DosageTaken: ptr("1 tab")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	l, err := f.svc.CreateLog(ctx, owner, &LogInput{PrescriptionID: rx.ID, DosageTaken: ptr("1 tab")})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, l.TakenAt)

	upd, err := f.svc.UpdateLog(ctx, owner, l.ID, &LogInput{SideEffectsExperienced: ptr("nausea")})
	require.NoError(t, err)
	assert.Equal(t, "1 tab", upd.DosageTaken)
	assert.Equal(t, "nausea", *upd.SideEffectsExperienced)

	mine, err := f.svc.MyLogs(ctx, owner, pagination.Params{Limit: 50})
	require.NoError(t, err)
	require.Len(t, mine.Logs, 1)
	assert.Equal(t, "Amoxicillin", *mine.Logs[0].PrescriptionMedicationName)

	_, err = f.svc.MyLogs(ctx, doctor(f.doctorA), pagination.Params{Limit: 50})
	assert.Equal(t, "Only patients can access medication logs", apperr.MessageOf(err))

	byRx, err := f.svc.PrescriptionLogs(ctx, doctor(f.doctorA), rx.ID, pagination.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, byRx.Total)

	delete(f.repo.rxs, rx.ID)
	_, err = f.svc.GetLog(ctx, owner, l.ID)
	assert.Equal(t, "Associated prescription not found", apperr.MessageOf(err))
}

func TestPatientItemsAndStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(f.patientA, f.doctorA, StatusActive, fixedNow)
	f.seed(f.patientA, f.doctorA, StatusCompleted, fixedNow)

	items, err := f.svc.MyItems(ctx, patient(f.patientA), pagination.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, items.Total)
	assert.Equal(t, "Doc Tor", items.Medications[0].Doctor.Name)

	_, err = f.svc.MyItems(ctx, doctor(f.doctorA), pagination.Params{Limit: 50})
	assert.Equal(t, "Only patients can access their medications", apperr.MessageOf(err))
	_, err = f.svc.PatientItems(ctx, patient(f.patientA), f.patientA, pagination.Params{Limit: 50})
	assert.Equal(t, "Only doctors and admins can access patient medications", apperr.MessageOf(err))

	st, err := f.svc.MedicationStats(ctx, patient(f.patientA))
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveMedications)
}
