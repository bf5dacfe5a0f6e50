package profile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const patientCols = `id, user_id, date_of_birth, gender, blood_group, emergency_contact_name,
	emergency_contact_phone, address, insurance_info, allergies, medical_history, created_at, updated_at`

func scanPatient(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	err := row.Scan(&p.ID, &p.UserID, &p.DateOfBirth, &p.Gender, &p.BloodGroup, &p.EmergencyContactName,
		&p.EmergencyContactPhone, &p.Address, &p.InsuranceInfo, &p.Allergies, &p.MedicalHistory,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

const doctorCols = `d.id, d.user_id, d.medical_license_number, d.license_expiry_date, d.specialization,
	COALESCE(d.years_of_experience, 0), d.hospital_affiliation, d.education_background,
	d.consultation_fee::float8, d.available_days, d.bio, d.is_verified, d.created_at, d.updated_at`

func scanDoctorInto(d *DoctorProfile, dest ...any) []any {
	return append([]any{&d.ID, &d.UserID, &d.MedicalLicenseNumber, &d.LicenseExpiryDate, &d.Specialization,
		&d.YearsOfExperience, &d.HospitalAffiliation, &d.EducationBackground,
		&d.ConsultationFee, &d.AvailableDays, &d.Bio, &d.IsVerified, &d.CreatedAt, &d.UpdatedAt}, dest...)
}

func scanDoctor(row pgx.Row) (*DoctorProfile, error) {
	var d DoctorProfile
	if err := row.Scan(scanDoctorInto(&d)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &d, nil
}

func scanListing(row pgx.Row) (*DoctorListing, error) {
	var l DoctorListing
	if err := row.Scan(scanDoctorInto(&l.DoctorProfile, &l.DoctorName, &l.DoctorEmail)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &l, nil
}

func (r *repoPG) CreatePatient(ctx context.Context, p *PatientProfile) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_profiles (id, user_id, date_of_birth, gender, blood_group, emergency_contact_name,
			emergency_contact_phone, address, insurance_info, allergies, medical_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.DateOfBirth, p.Gender, p.BloodGroup, p.EmergencyContactName,
		p.EmergencyContactPhone, p.Address, p.InsuranceInfo, p.Allergies, p.MedicalHistory,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) CreateDoctor(ctx context.Context, d *DoctorProfile) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_profiles (id, user_id, medical_license_number, license_expiry_date, specialization,
			years_of_experience, hospital_affiliation, education_background, consultation_fee, available_days, bio)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.MedicalLicenseNumber, d.LicenseExpiryDate, d.Specialization,
		d.YearsOfExperience, d.HospitalAffiliation, d.EducationBackground, d.ConsultationFee, d.AvailableDays, d.Bio,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient_profiles WHERE user_id = $1`, userID))
}

func (r *repoPG) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor_profiles d WHERE d.user_id = $1`, userID))
}

func (r *repoPG) UpdatePatient(ctx context.Context, p *PatientProfile) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_profiles SET date_of_birth=$2, gender=$3, blood_group=$4, emergency_contact_name=$5,
			emergency_contact_phone=$6, address=$7, insurance_info=$8, allergies=$9, medical_history=$10,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.DateOfBirth, p.Gender, p.BloodGroup, p.EmergencyContactName,
		p.EmergencyContactPhone, p.Address, p.InsuranceInfo, p.Allergies, p.MedicalHistory,
	).Scan(&p.UpdatedAt)
}

func (r *repoPG) UpdateDoctor(ctx context.Context, d *DoctorProfile) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_profiles SET medical_license_number=$2, license_expiry_date=$3, specialization=$4,
			years_of_experience=$5, hospital_affiliation=$6, education_background=$7, consultation_fee=$8,
			available_days=$9, bio=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.MedicalLicenseNumber, d.LicenseExpiryDate, d.Specialization,
		d.YearsOfExperience, d.HospitalAffiliation, d.EducationBackground, d.ConsultationFee,
		d.AvailableDays, d.Bio,
	).Scan(&d.UpdatedAt)
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorListing, error) {
	return scanListing(r.conn(ctx).QueryRow(ctx, `
		SELECT `+doctorCols+`, u.first_name || ' ' || u.last_name, u.email
		FROM doctor_profiles d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1 OR d.user_id = $1
		LIMIT 1`, id))
}

func (r *repoPG) SearchDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*DoctorListing, int, error) {
	var where db.Filter
	where.Add("u.is_active")
	if f.Specialization != "" {
		where.Add("d.specialization ILIKE ?", db.Contains(f.Specialization))
	}
	if f.HospitalAffiliation != "" {
		where.Add("d.hospital_affiliation ILIKE ?", db.Contains(f.HospitalAffiliation))
	}
	if f.Location != "" {
		where.Add("d.hospital_affiliation ILIKE ?", db.Contains(f.Location))
	}
	if f.MinExperience != nil {
		where.Add("COALESCE(d.years_of_experience, 0) >= ?", *f.MinExperience)
	}
	if f.MaxFee != nil {
		where.Add("d.consultation_fee <= ?", *f.MaxFee)
	}
	if f.IsVerified != nil {
		where.Add("d.is_verified = ?", *f.IsVerified)
	}
	if f.Name != "" {
		p := db.Contains(f.Name)
		where.Add("(u.first_name ILIKE ? OR u.last_name ILIKE ? OR (u.first_name || ' ' || u.last_name) ILIKE ?)", p, p, p)
	}

	from := ` FROM doctor_profiles d JOIN users u ON u.id = d.user_id`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, args := where.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+`, u.first_name || ' ' || u.last_name, u.email`+
		from+where.Where()+` ORDER BY u.last_name, u.first_name, d.id`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoctorListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

const summaryCols = `p.id, p.user_id, u.first_name || ' ' || u.last_name, u.email, u.phone,
	p.date_of_birth, p.gender, p.blood_group, p.allergies, p.medical_history,
	p.emergency_contact_name, p.emergency_contact_phone, p.address, p.insurance_info`

func summaryDest(s *PatientSummary, extra ...any) []any {
	return append([]any{&s.ID, &s.UserID, &s.Name, &s.Email, &s.Phone,
		&s.DateOfBirth, &s.Gender, &s.BloodGroup, &s.Allergies, &s.MedicalHistory,
		&s.EmergencyContactName, &s.EmergencyContactPhone, &s.Address, &s.InsuranceInfo}, extra...)
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*PatientSummary, error) {
	var s PatientSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+summaryCols+`,
			EXISTS (SELECT 1 FROM doctor_bookmarks b WHERE b.patient_id = p.id AND b.doctor_id = $2)
		FROM patient_profiles p JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`, id, viewer,
	).Scan(summaryDest(&s, &s.IsBookmarked)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &s, nil
}

func (r *repoPG) ListDoctorPatients(ctx context.Context, doctorID uuid.UUID, search string, limit, offset int) ([]*PatientSummary, int, error) {
	var where db.Filter
	where.Add("a.doctor_id = ?", doctorID)
	if search != "" {
		p := db.Contains(search)
		where.Add("(u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.email ILIKE ? OR u.phone ILIKE ?)", p, p, p, p)
	}
	from := ` FROM appointments a
		JOIN patient_profiles p ON p.id = a.patient_id
		JOIN users u ON u.id = p.user_id`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(DISTINCT p.id)`+from+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, args := where.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+summaryCols+`, COUNT(a.id), MAX(a.appointment_date),
			EXISTS (SELECT 1 FROM doctor_bookmarks b WHERE b.patient_id = p.id AND b.doctor_id = $1)`+
		from+where.Where()+`
		GROUP BY p.id, u.id
		ORDER BY MAX(a.appointment_date) DESC, p.id DESC`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientSummary
	for rows.Next() {
		var s PatientSummary
		if err := rows.Scan(summaryDest(&s, &s.AppointmentCount, &s.LastVisit, &s.IsBookmarked)...); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListBookmarked(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*PatientSummary, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_bookmarks WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+summaryCols+`,
			(SELECT COUNT(*) FROM appointments a WHERE a.patient_id = p.id AND a.doctor_id = $1),
			(SELECT MAX(a.appointment_date) FROM appointments a WHERE a.patient_id = p.id AND a.doctor_id = $1)
		FROM doctor_bookmarks b
		JOIN patient_profiles p ON p.id = b.patient_id
		JOIN users u ON u.id = p.user_id
		WHERE b.doctor_id = $1
		ORDER BY b.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientSummary
	for rows.Next() {
		s := PatientSummary{IsBookmarked: true}
		if err := rows.Scan(summaryDest(&s, &s.AppointmentCount, &s.LastVisit)...); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ToggleBookmark(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_bookmarks WHERE doctor_id = $1 AND patient_id = $2`, doctorID, patientID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_bookmarks (id, doctor_id, patient_id) VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`, uuid.New(), doctorID, patientID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repoPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient_profiles WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *repoPG) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor_profiles WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
