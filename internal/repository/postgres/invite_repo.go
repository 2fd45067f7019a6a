package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guestpass/internal/domain"
)

type inviteRepository struct {
	DB *sql.DB
}

func NewInviteRepository(db *sql.DB) domain.InviteRepository {
	return &inviteRepository{DB: db}
}

const inviteColumns = `id, event_id, token, email, status, created_at, expires_at, used_at`

func scanInvite(row rowScanner, extra ...any) (*domain.Invite, error) {
	inv := &domain.Invite{}
	var status string
	var expiresNull, usedNull sql.NullTime
	dest := append([]any{&inv.ID, &inv.EventID, &inv.Token, &inv.Email, &status, &inv.CreatedAt, &expiresNull, &usedNull}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	inv.Status = domain.InviteStatus(status)
	if expiresNull.Valid {
		inv.ExpiresAt = &expiresNull.Time
	}
	if usedNull.Valid {
		inv.UsedAt = &usedNull.Time
	}
	return inv, nil
}

func (r *inviteRepository) Create(ctx context.Context, inv *domain.Invite) error {
	query := `
		INSERT INTO invites (event_id, token, email, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, inv.EventID, inv.Token, inv.Email, string(inv.Status), inv.CreatedAt, inv.ExpiresAt).Scan(&inv.ID)
}

func (r *inviteRepository) GetByToken(ctx context.Context, token string) (*domain.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1`
	inv, err := scanInvite(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *inviteRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	invites := make([]*domain.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func (r *inviteRepository) MarkSent(ctx context.Context, id string) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `UPDATE invites SET status = 'SENT' WHERE id = $1 AND status = 'CREATED'`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *inviteRepository) ListPendingDelivery(ctx context.Context, createdBefore, now time.Time, limit int) ([]*domain.PendingInvite, error) {
	query := `
		SELECT i.id, i.event_id, i.token, i.email, i.status, i.created_at, i.expires_at, i.used_at, e.name
		FROM invites i
		INNER JOIN events e ON e.id = i.event_id
		WHERE i.status = 'CREATED'
			AND i.created_at < $1
			AND (i.expires_at IS NULL OR i.expires_at > $2)
		ORDER BY i.created_at ASC
		LIMIT $3
	`
	rows, err := r.DB.QueryContext(ctx, query, createdBefore, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pending := make([]*domain.PendingInvite, 0)
	for rows.Next() {
		var eventName string
		inv, err := scanInvite(rows, &eventName)
		if err != nil {
			return nil, err
		}
		pending = append(pending, &domain.PendingInvite{Invite: inv, EventName: eventName})
	}
	return pending, rows.Err()
}
