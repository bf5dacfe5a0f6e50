package notification

import (
	"context"
	"errors"
	"time"

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

const notificationCols = `id, user_id, notification_type, title, message, status, delivery_method,
	related_entity_type, related_entity_id, scheduled_for, sent_at, read_at, created_at, updated_at`

func notificationDest(n *Notification) []any {
	return []any{&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Status, &n.DeliveryMethod,
		&n.RelatedEntityType, &n.RelatedEntityID, &n.ScheduledFor, &n.SentAt, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt}
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, notification_type, title, message, status, delivery_method,
			related_entity_type, related_entity_id, scheduled_for, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Status, n.DeliveryMethod,
		n.RelatedEntityType, n.RelatedEntityID, n.ScheduledFor, n.SentAt,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) CreateForReminder(ctx context.Context, n *Notification, reminderID uuid.UUID) (bool, error) {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, notification_type, title, message, status, delivery_method,
			related_entity_type, related_entity_id, scheduled_for, sent_at, reminder_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (reminder_id) WHERE reminder_id IS NOT NULL DO NOTHING
		RETURNING created_at, updated_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Status, n.DeliveryMethod,
		n.RelatedEntityType, n.RelatedEntityID, n.ScheduledFor, n.SentAt, reminderID,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var n Notification
	if err := r.conn(ctx).QueryRow(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = $1`, id).
		Scan(notificationDest(&n)...); err != nil {
		return nil, db.NotFound(err)
	}
	return &n, nil
}

// MarkRead keeps the first read time when a notification is read twice.
func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET status = 'read', read_at = COALESCE(read_at, $2), updated_at = NOW()
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, int, error) {
	var total, unread int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE read_at IS NULL) FROM notifications WHERE user_id = $1`, userID).
		Scan(&total, &unread); err != nil {
		return nil, 0, 0, err
	}
	var w db.Filter
	w.Add("user_id = ?", userID)
	if unreadOnly {
		w.Add("read_at IS NULL")
		total = unread
	}
	page, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+notificationCols+` FROM notifications`+w.Where()+
		` ORDER BY created_at DESC, id DESC`+page, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(notificationDest(&n)...); err != nil {
			return nil, 0, 0, err
		}
		out = append(out, &n)
	}
	return out, total, unread, rows.Err()
}
