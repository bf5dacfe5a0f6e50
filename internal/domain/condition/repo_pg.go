package condition

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

const conditionCols = `id, patient_id, condition_type, name, status, diagnosed_date, notes, severity, treatment,
	allergy_severity, reaction, created_at, updated_at`

func conditionDest(c *Condition) []any {
	return []any{&c.ID, &c.PatientID, &c.ConditionType, &c.Name, &c.Status, &c.DiagnosedDate, &c.Notes, &c.Severity,
		&c.Treatment, &c.AllergySeverity, &c.Reaction, &c.CreatedAt, &c.UpdatedAt}
}

func (r *repoPG) Create(ctx context.Context, c *Condition) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_conditions (id, patient_id, condition_type, name, status, diagnosed_date, notes, severity,
			treatment, allergy_severity, reaction)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.ConditionType, c.Name, c.Status, c.DiagnosedDate, c.Notes, c.Severity,
		c.Treatment, c.AllergySeverity, c.Reaction,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Condition, error) {
	var c Condition
	if err := r.conn(ctx).QueryRow(ctx, `SELECT `+conditionCols+` FROM medical_conditions WHERE id = $1`, id).
		Scan(conditionDest(&c)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &c, nil
}

func (r *repoPG) Update(ctx context.Context, c *Condition) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_conditions SET status=$2, diagnosed_date=$3, notes=$4, severity=$5, treatment=$6,
			allergy_severity=$7, reaction=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Status, c.DiagnosedDate, c.Notes, c.Severity, c.Treatment, c.AllergySeverity, c.Reaction,
	).Scan(&c.UpdatedAt)
	return db.NotFound(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_conditions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Condition, int, error) {
	var w db.Filter
	if f.PatientID != nil {
		w.Add("patient_id = ?", *f.PatientID)
	}
	if f.ConditionType != "" {
		w.Add("condition_type = ?", f.ConditionType)
	}
	if f.Status != "" {
		w.Add("status = ?", f.Status)
	}
	if f.Name != "" {
		w.Add("name ILIKE ?", db.Contains(f.Name))
	}
	if f.AllergySeverity != "" {
		w.Add("allergy_severity = ?", f.AllergySeverity)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_conditions`+w.Where(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql := `SELECT ` + conditionCols + ` FROM medical_conditions` + w.Where() + ` ORDER BY created_at DESC, id DESC`
	args := w.Args()
	if limit >= 0 {
		var page string
		page, args = w.Page(limit, offset)
		sql += page
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Condition
	for rows.Next() {
		var c Condition
		if err := rows.Scan(conditionDest(&c)...); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, rows.Err()
}
