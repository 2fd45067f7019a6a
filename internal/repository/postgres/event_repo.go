package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guestpass/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `id, owner_id, name, start_at, end_at, location, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, extra ...any) (*domain.Event, error) {
	e := &domain.Event{}
	var locNull sql.NullString
	dest := append([]any{&e.ID, &e.OwnerID, &e.Name, &e.StartAt, &e.EndAt, &locNull, &e.CreatedAt, &e.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if locNull.Valid {
		e.Location = &locNull.String
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (owner_id, name, start_at, end_at, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, e.OwnerID, e.Name, e.StartAt, e.EndAt, e.Location, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND owner_id = $2`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]*domain.EventSummary, error) {
	query := `
		SELECT e.id, e.owner_id, e.name, e.start_at, e.end_at, e.location, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM attendees a WHERE a.event_id = e.id)
		FROM events e
		WHERE e.owner_id = $1
		ORDER BY e.start_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.EventSummary, 0)
	for rows.Next() {
		var count int
		e, err := scanEvent(rows, &count)
		if err != nil {
			return nil, err
		}
		events = append(events, &domain.EventSummary{Event: *e, AttendeeCount: count})
	}
	return events, rows.Err()
}

func (r *eventRepository) GetStats(ctx context.Context, eventID string) (*domain.EventStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM invites WHERE event_id = $1),
			(SELECT COUNT(*) FROM invites WHERE event_id = $1 AND status = 'USED'),
			(SELECT COUNT(*) FROM attendees WHERE event_id = $1),
			(SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND checked_in_at IS NOT NULL),
			(SELECT COUNT(*) FROM registration_fields WHERE event_id = $1)
	`
	s := &domain.EventStats{}
	err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&s.InvitesTotal, &s.InvitesUsed, &s.Attendees, &s.CheckedIn, &s.RegistrationFields)
	if err != nil {
		return nil, err
	}
	s.NotCheckedIn = s.Attendees - s.CheckedIn
	return s, nil
}

// Delete removes children before the event so a failure at any step leaves nothing deleted.
func (r *eventRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps := []string{
		`DELETE FROM registration_answers WHERE attendee_id IN (SELECT id FROM attendees WHERE event_id = $1)`,
		`DELETE FROM check_ins WHERE event_id = $1`,
		`DELETE FROM attendees WHERE event_id = $1`,
		`DELETE FROM invites WHERE event_id = $1`,
		`DELETE FROM registration_fields WHERE event_id = $1`,
	}
	for _, q := range steps {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = domain.ErrNotFound
		return err
	}
	return tx.Commit()
}
