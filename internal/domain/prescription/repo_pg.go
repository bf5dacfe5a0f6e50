package prescription

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func execOne(ctx context.Context, q db.Querier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// --- medications ---

const medCols = `m.id, m.name, m.generic_name, m.description, m.manufacturer, m.drug_class,
	m.contraindications, m.side_effects, m.interactions, m.created_at, m.updated_at`

func medDest(m *Medication) []any {
	return []any{&m.ID, &m.Name, &m.GenericName, &m.Description, &m.Manufacturer, &m.DrugClass,
		&m.Contraindications, &m.SideEffects, &m.Interactions, &m.CreatedAt, &m.UpdatedAt}
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, name, generic_name, description, manufacturer, drug_class,
			contraindications, side_effects, interactions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.GenericName, m.Description, m.Manufacturer, m.DrugClass,
		m.Contraindications, m.SideEffects, m.Interactions,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	var m Medication
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medications m WHERE m.id = $1`, id).Scan(medDest(&m)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &m, nil
}

func (r *repoPG) UpdateMedication(ctx context.Context, m *Medication) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medications SET name=$2, generic_name=$3, description=$4, manufacturer=$5, drug_class=$6,
			contraindications=$7, side_effects=$8, interactions=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Name, m.GenericName, m.Description, m.Manufacturer, m.DrugClass,
		m.Contraindications, m.SideEffects, m.Interactions,
	).Scan(&m.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.conn(ctx), `DELETE FROM medications WHERE id = $1`, id)
}

func (r *repoPG) SearchMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	var w db.Filter
	if f.Name != "" {
		w.Add("m.name ILIKE ?", db.Contains(f.Name))
	}
	if f.GenericName != "" {
		w.Add("m.generic_name ILIKE ?", db.Contains(f.GenericName))
	}
	if f.Manufacturer != "" {
		w.Add("m.manufacturer ILIKE ?", db.Contains(f.Manufacturer))
	}
	if f.DrugClass != "" {
		w.Add("m.drug_class ILIKE ?", db.Contains(f.DrugClass))
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medications m`+w.Where(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medications m`+w.Where()+
		` ORDER BY m.name, m.id`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(medDest(&m)...); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

// --- prescriptions ---

const rxCols = `p.id, p.patient_id, p.doctor_id, p.appointment_id, p.prescribed_date, p.start_date, p.end_date,
	p.status, p.diagnosis, p.notes, p.created_at, p.updated_at`

func rxDest(p *Prescription, extra ...any) []any {
	return append([]any{&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.PrescribedDate, &p.StartDate,
		&p.EndDate, &p.Status, &p.Diagnosis, &p.Notes, &p.CreatedAt, &p.UpdatedAt}, extra...)
}

const itemCols = `i.id, i.prescription_id, i.position, i.medication_name, i.dosage, i.frequency,
	COALESCE(i.quantity, ''), i.duration, i.instructions, i.created_at, i.updated_at`

func itemDest(it *Item) []any {
	return []any{&it.ID, &it.PrescriptionID, &it.Position, &it.MedicationName, &it.Dosage, &it.Frequency, &it.Quantity,
		&it.Duration, &it.Instructions, &it.CreatedAt, &it.UpdatedAt}
}

const rxDetailsFrom = ` FROM prescriptions p
	JOIN patient_profiles pp ON pp.id = p.patient_id
	JOIN users pu ON pu.id = pp.user_id
	JOIN doctor_profiles dp ON dp.id = p.doctor_id
	JOIN users du ON du.id = dp.user_id`

// Create inserts the prescription row and its items. Callers wrap it in a
// transaction.
func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, appointment_id, start_date, end_date, status,
			diagnosis, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING prescribed_date, created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.StartDate, p.EndDate, p.Status, p.Diagnosis, p.Notes,
	).Scan(&p.PrescribedDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	p.Items, err = r.insertItems(ctx, p.ID, p.Items)
	return err
}

// insertItems stores items in slice order; position is what reads sort by,
// since every row written in one transaction shares created_at.
func (r *repoPG) insertItems(ctx context.Context, rxID uuid.UUID, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for i, it := range items {
		it.ID = uuid.New()
		it.PrescriptionID = rxID
		it.Position = i
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO prescription_items (id, prescription_id, position, medication_name, dosage, frequency,
				quantity, duration, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING created_at, updated_at`,
			it.ID, rxID, it.Position, it.MedicationName, it.Dosage, it.Frequency, it.Quantity, it.Duration, it.Instructions,
		).Scan(&it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions p WHERE p.id = $1`, id).Scan(rxDest(&p)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	items, err := r.ItemsFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Items = items[id]
	if p.Items == nil {
		p.Items = []Item{}
	}
	return &p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET start_date=$2, end_date=$3, status=$4, diagnosis=$5, notes=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.StartDate, p.EndDate, p.Status, p.Diagnosis, p.Notes,
	).Scan(&p.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) ReplaceItems(ctx context.Context, rxID uuid.UUID, items []Item) ([]Item, error) {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription_items WHERE prescription_id = $1`, rxID); err != nil {
		return nil, err
	}
	return r.insertItems(ctx, rxID, items)
}

func (r *repoPG) ItemsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]Item, error) {
	out := make(map[uuid.UUID][]Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM prescription_items i
		WHERE i.prescription_id = ANY($1) ORDER BY i.prescription_id, i.position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(itemDest(&it)...); err != nil {
			return nil, err
		}
		out[it.PrescriptionID] = append(out[it.PrescriptionID], it)
	}
	return out, rows.Err()
}

func where(f Filter) *db.Filter {
	var w db.Filter
	if f.PatientID != nil {
		w.Add("p.patient_id = ?", *f.PatientID)
	}
	if f.DoctorID != nil {
		w.Add("p.doctor_id = ?", *f.DoctorID)
	}
	if f.AppointmentID != nil {
		w.Add("p.appointment_id = ?", *f.AppointmentID)
	}
	if f.Status != "" {
		w.Add("p.status = ?", f.Status)
	}
	if f.PrescribedDateFrom != nil {
		w.Add("p.prescribed_date >= ?", *f.PrescribedDateFrom)
	}
	if f.PrescribedDateTo != nil {
		w.Add("p.prescribed_date <= ?", *f.PrescribedDateTo)
	}
	if f.StartDateFrom != nil {
		w.Add("p.start_date >= ?", *f.StartDateFrom)
	}
	if f.StartDateTo != nil {
		w.Add("p.start_date <= ?", *f.StartDateTo)
	}
	if f.Diagnosis != "" {
		w.Add("p.diagnosis ILIKE ?", db.Contains(f.Diagnosis))
	}
	if f.MedicationName != "" {
		w.Add("EXISTS (SELECT 1 FROM prescription_items i WHERE i.prescription_id = p.id AND i.medication_name ILIKE ?)",
			db.Contains(f.MedicationName))
	}
	return &w
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Details, int, error) {
	w := where(f)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+rxDetailsFrom+w.Where(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxCols+`, pu.first_name || ' ' || pu.last_name, du.first_name || ' ' || du.last_name`+
		rxDetailsFrom+w.Where()+` ORDER BY p.prescribed_date DESC, p.id DESC`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out []*Details
		ids []uuid.UUID
	)
	for rows.Next() {
		var d Details
		if err := rows.Scan(rxDest(&d.Prescription, &d.PatientName, &d.DoctorName)...); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	items, err := r.ItemsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, d := range out {
		d.Items = items[d.ID]
		if d.Items == nil {
			d.Items = []Item{}
		}
	}
	return out, total, nil
}

func (r *repoPG) CountByStatus(ctx context.Context, f Filter) (map[string]int, error) {
	w := where(f)
	return countByStatus(ctx, r.conn(ctx), `SELECT p.status, COUNT(*) FROM prescriptions p`+w.Where()+
		` GROUP BY p.status`, w.Args()...)
}

func countByStatus(ctx context.Context, q db.Querier, sql string, args ...any) (map[string]int, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *repoPG) ListPatientItems(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientItem, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM prescription_items i JOIN prescriptions p ON p.id = i.prescription_id
		WHERE p.patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT i.id, i.medication_name, i.dosage, i.frequency, COALESCE(i.quantity, ''), i.duration, i.instructions,
			p.id, p.prescribed_date, p.status, du.first_name || ' ' || du.last_name, dp.specialization
		FROM prescription_items i
		JOIN prescriptions p ON p.id = i.prescription_id
		JOIN doctor_profiles dp ON dp.id = p.doctor_id
		JOIN users du ON du.id = dp.user_id
		WHERE p.patient_id = $1
		ORDER BY p.prescribed_date DESC, p.id, i.position
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*PatientItem
	for rows.Next() {
		it, doc := &PatientItem{}, &DoctorRef{}
		if err := rows.Scan(&it.ID, &it.MedicationName, &it.Dosage, &it.Frequency, &it.Quantity, &it.Duration,
			&it.Instructions, &it.PrescriptionID, &it.PrescribedDate, &it.Status, &doc.Name, &doc.Specialization); err != nil {
			return nil, 0, err
		}
		it.Doctor = doc
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *repoPG) CountActiveItems(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM prescription_items i JOIN prescriptions p ON p.id = i.prescription_id
		WHERE p.patient_id = $1 AND p.status = $2`, patientID, StatusActive).Scan(&n)
	return n, err
}

// --- pdfs ---

const pdfCols = `f.id, f.prescription_id, f.patient_id, f.uploaded_by, f.status, COALESCE(f.title, ''), f.file_name,
	f.file_size, f.created_at, f.updated_at`

func pdfDest(f *PDF) []any {
	return []any{&f.ID, &f.PrescriptionID, &f.PatientID, &f.UploadedBy, &f.Status, &f.Title, &f.FileName,
		&f.FileSize, &f.CreatedAt, &f.UpdatedAt}
}

func (r *repoPG) CreatePDF(ctx context.Context, f *PDF) error {
	f.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription_pdfs (id, prescription_id, patient_id, uploaded_by, status, title, file_name, file_size)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		f.ID, f.PrescriptionID, f.PatientID, f.UploadedBy, f.Status, f.Title, f.FileName, f.FileSize,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (r *repoPG) GetPDF(ctx context.Context, id uuid.UUID) (*PDF, error) {
	var f PDF
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+pdfCols+` FROM prescription_pdfs f WHERE f.id = $1`, id).Scan(pdfDest(&f)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &f, nil
}

func (r *repoPG) scanPDFs(ctx context.Context, sql string, args ...any) ([]*PDF, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PDF
	for rows.Next() {
		var f PDF
		if err := rows.Scan(pdfDest(&f)...); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (r *repoPG) ListPDFs(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PDF, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription_pdfs WHERE patient_id = $1`, patientID).
		Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := r.scanPDFs(ctx, `SELECT `+pdfCols+` FROM prescription_pdfs f WHERE f.patient_id = $1
		ORDER BY f.created_at DESC, f.id DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return out, total, err
}

func (r *repoPG) PDFsForPrescription(ctx context.Context, rxID uuid.UUID) ([]*PDF, error) {
	return r.scanPDFs(ctx, `SELECT `+pdfCols+` FROM prescription_pdfs f WHERE f.prescription_id = $1
		ORDER BY f.created_at, f.id`, rxID)
}

func (r *repoPG) UpdatePDFStatus(ctx context.Context, id uuid.UUID, status string) error {
	return execOne(ctx, r.conn(ctx), `UPDATE prescription_pdfs SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
}

func (r *repoPG) DeletePDF(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.conn(ctx), `DELETE FROM prescription_pdfs WHERE id = $1`, id)
}

func (r *repoPG) CountPDFsByStatus(ctx context.Context, patientID, uploadedBy *uuid.UUID) (map[string]int, error) {
	var w db.Filter
	if patientID != nil {
		w.Add("patient_id = ?", *patientID)
	}
	if uploadedBy != nil {
		w.Add("uploaded_by = ?", *uploadedBy)
	}
	return countByStatus(ctx, r.conn(ctx), `SELECT status, COUNT(*) FROM prescription_pdfs`+w.Where()+
		` GROUP BY status`, w.Args()...)
}

// --- medication logs ---

const logCols = `l.id, l.prescription_id, l.taken_at, COALESCE(l.dosage_taken, ''), l.notes,
	l.side_effects_experienced, l.created_at, l.updated_at`

func logDest(l *MedicationLog, extra ...any) []any {
	return append([]any{&l.ID, &l.PrescriptionID, &l.TakenAt, &l.DosageTaken, &l.Notes,
		&l.SideEffectsExperienced, &l.CreatedAt, &l.UpdatedAt}, extra...)
}

// firstItem exposes the earliest item of each prescription as fi.
const firstItem = ` LEFT JOIN LATERAL (
		SELECT i.medication_name, i.dosage, i.frequency FROM prescription_items i
		WHERE i.prescription_id = l.prescription_id ORDER BY i.position LIMIT 1
	) fi ON TRUE`

func (r *repoPG) CreateLog(ctx context.Context, l *MedicationLog) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_logs (id, prescription_id, taken_at, dosage_taken, notes, side_effects_experienced)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		l.ID, l.PrescriptionID, l.TakenAt, l.DosageTaken, l.Notes, l.SideEffectsExperienced,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (r *repoPG) GetLog(ctx context.Context, id uuid.UUID) (*MedicationLog, error) {
	var l MedicationLog
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+logCols+` FROM medication_logs l WHERE l.id = $1`, id).Scan(logDest(&l)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &l, nil
}

func (r *repoPG) UpdateLog(ctx context.Context, l *MedicationLog) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medication_logs SET taken_at=$2, dosage_taken=$3, notes=$4, side_effects_experienced=$5,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		l.ID, l.TakenAt, l.DosageTaken, l.Notes, l.SideEffectsExperienced,
	).Scan(&l.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) DeleteLog(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.conn(ctx), `DELETE FROM medication_logs WHERE id = $1`, id)
}

func (r *repoPG) listLogs(ctx context.Context, cond string, arg any, limit, offset int) ([]*LogDetails, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication_logs l
		JOIN prescriptions p ON p.id = l.prescription_id WHERE `+cond, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+logCols+`, fi.medication_name, fi.dosage, fi.frequency
		FROM medication_logs l JOIN prescriptions p ON p.id = l.prescription_id`+firstItem+`
		WHERE `+cond+`
		ORDER BY l.taken_at DESC, l.id DESC
		LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*LogDetails
	for rows.Next() {
		var d LogDetails
		if err := rows.Scan(logDest(&d.MedicationLog, &d.PrescriptionMedicationName, &d.PrescriptionDosage,
			&d.PrescriptionFrequency)...); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListLogs(ctx context.Context, rxID uuid.UUID, limit, offset int) ([]*LogDetails, int, error) {
	return r.listLogs(ctx, "l.prescription_id = $1", rxID, limit, offset)
}

func (r *repoPG) ListPatientLogs(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LogDetails, int, error) {
	return r.listLogs(ctx, "p.patient_id = $1", patientID, limit, offset)
}

func (r *repoPG) CountLogs(ctx context.Context, patientID, doctorID *uuid.UUID) (int, error) {
	var w db.Filter
	if patientID != nil {
		w.Add("p.patient_id = ?", *patientID)
	}
	if doctorID != nil {
		w.Add("p.doctor_id = ?", *doctorID)
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication_logs l
		JOIN prescriptions p ON p.id = l.prescription_id`+w.Where(), w.Args()...).Scan(&n)
	return n, err
}
