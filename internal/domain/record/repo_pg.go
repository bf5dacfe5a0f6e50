package record

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

const recordCols = `id, patient_id, doctor_id, title, category, record_date, facility, summary, diagnosis,
	symptoms, treatment_summary, priority, tags, created_at, updated_at`

func recordDest(m *Record) []any {
	return []any{&m.ID, &m.PatientID, &m.DoctorID, &m.Title, &m.Category, &m.RecordDate, &m.Facility, &m.Summary,
		&m.Diagnosis, &m.Symptoms, &m.TreatmentSummary, &m.Priority, &m.Tags, &m.CreatedAt, &m.UpdatedAt}
}

func (r *repoPG) Create(ctx context.Context, m *Record) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, title, category, record_date, facility, summary,
			diagnosis, symptoms, treatment_summary, priority, tags)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DoctorID, m.Title, m.Category, m.RecordDate, m.Facility, m.Summary,
		m.Diagnosis, m.Symptoms, m.TreatmentSummary, m.Priority, m.Tags,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	var m Record
	if err := r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id).
		Scan(recordDest(&m)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &m, nil
}

func (r *repoPG) Update(ctx context.Context, m *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET title=$2, category=$3, record_date=$4, facility=$5, summary=$6, diagnosis=$7,
			symptoms=$8, treatment_summary=$9, priority=$10, tags=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Title, m.Category, m.RecordDate, m.Facility, m.Summary, m.Diagnosis,
		m.Symptoms, m.TreatmentSummary, m.Priority, m.Tags,
	).Scan(&m.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).
		Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1
		ORDER BY record_date DESC, id DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		var m Record
		if err := rows.Scan(recordDest(&m)...); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

const attachmentCols = `id, medical_record_id, filename, original_filename, file_path, COALESCE(file_type, ''),
	file_size, COALESCE(content_type, ''), created_at, updated_at`

func attachmentDest(a *Attachment) []any {
	return []any{&a.ID, &a.RecordID, &a.Filename, &a.OriginalFilename, &a.FilePath, &a.FileType,
		&a.FileSize, &a.ContentType, &a.CreatedAt, &a.UpdatedAt}
}

func (r *repoPG) CreateAttachment(ctx context.Context, a *Attachment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_attachments (id, medical_record_id, filename, original_filename, file_path, file_type,
			file_size, content_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.RecordID, a.Filename, a.OriginalFilename, a.FilePath, a.FileType, a.FileSize, a.ContentType,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	var a Attachment
	if err := r.conn(ctx).QueryRow(ctx, `SELECT `+attachmentCols+` FROM medical_attachments WHERE id = $1`, id).
		Scan(attachmentDest(&a)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &a, nil
}

func (r *repoPG) AttachmentsFor(ctx context.Context, recordIDs []uuid.UUID) (map[uuid.UUID][]*Attachment, error) {
	out := make(map[uuid.UUID][]*Attachment, len(recordIDs))
	if len(recordIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+attachmentCols+` FROM medical_attachments
		WHERE medical_record_id = ANY($1) ORDER BY created_at, id`, recordIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(attachmentDest(&a)...); err != nil {
			return nil, err
		}
		out[a.RecordID] = append(out[a.RecordID], &a)
	}
	return out, rows.Err()
}
