package healthmetric

import (
	"context"
	"time"

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

const metricCols = `id, patient_id, metric_type, value, unit, recorded_at, recorded_by, notes, normal_min, normal_max,
	created_at, updated_at`

func metricDest(m *Metric) []any {
	return []any{&m.ID, &m.PatientID, &m.MetricType, &m.Value, &m.Unit, &m.RecordedAt, &m.RecordedBy, &m.Notes,
		&m.NormalMin, &m.NormalMax, &m.CreatedAt, &m.UpdatedAt}
}

func (r *repoPG) Create(ctx context.Context, m *Metric) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_metrics (id, patient_id, metric_type, value, unit, recorded_at, recorded_by, notes,
			normal_min, normal_max)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.MetricType, m.Value, m.Unit, m.RecordedAt, m.RecordedBy, m.Notes, m.NormalMin, m.NormalMax,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Metric, error) {
	var m Metric
	if err := r.conn(ctx).QueryRow(ctx, `SELECT `+metricCols+` FROM health_metrics WHERE id = $1`, id).
		Scan(metricDest(&m)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &m, nil
}

func (r *repoPG) Update(ctx context.Context, m *Metric) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE health_metrics SET metric_type=$2, value=$3, unit=$4, recorded_at=$5, recorded_by=$6, notes=$7,
			normal_min=$8, normal_max=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.MetricType, m.Value, m.Unit, m.RecordedAt, m.RecordedBy, m.Notes, m.NormalMin, m.NormalMax,
	).Scan(&m.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM health_metrics WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f Filter, limit, offset int) ([]*Metric, int, error) {
	var w db.Filter
	w.Add("patient_id = ?", patientID)
	if f.MetricType != "" {
		w.Add("metric_type = ?", f.MetricType)
	}
	if f.RecordedFrom != nil {
		w.Add("recorded_at >= ?", *f.RecordedFrom)
	}
	if f.RecordedTo != nil {
		w.Add("recorded_at <= ?", *f.RecordedTo)
	}
	if f.RecordedBy != "" {
		w.Add("recorded_by = ?", f.RecordedBy)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_metrics`+w.Where(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.Page(limit, offset)
	out, err := r.query(ctx, `SELECT `+metricCols+` FROM health_metrics`+w.Where()+
		` ORDER BY recorded_at DESC, id DESC`+page, args...)
	return out, total, err
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID, types []string) ([]*Metric, error) {
	var w db.Filter
	w.Add("patient_id = ?", patientID)
	if len(types) > 0 {
		w.Add("metric_type = ANY(?)", types)
	}
	return r.query(ctx, `SELECT DISTINCT ON (metric_type) `+metricCols+` FROM health_metrics`+w.Where()+
		` ORDER BY metric_type, recorded_at DESC, id DESC`, w.Args()...)
}

func (r *repoPG) CountSince(ctx context.Context, patientID uuid.UUID, since *time.Time) (int, error) {
	var w db.Filter
	w.Add("patient_id = ?", patientID)
	if since != nil {
		w.Add("recorded_at >= ?", *since)
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_metrics`+w.Where(), w.Args()...).Scan(&n)
	return n, err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...any) ([]*Metric, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(metricDest(&m)...); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
