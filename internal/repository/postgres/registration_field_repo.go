package postgres

import (
	"context"
	"database/sql"

	"guestpass/internal/domain"

	"github.com/lib/pq"
)

type registrationFieldRepository struct {
	DB *sql.DB
}

func NewRegistrationFieldRepository(db *sql.DB) domain.RegistrationFieldRepository {
	return &registrationFieldRepository{DB: db}
}

func (r *registrationFieldRepository) Create(ctx context.Context, f *domain.RegistrationField) error {
	query := `
		INSERT INTO registration_fields (event_id, label, kind, required, options, display_order, created_at)
		SELECT $1, $2, $3, $4, $5, COALESCE(MAX(display_order), 0) + 1, $6
		FROM registration_fields
		WHERE event_id = $1
		RETURNING id, display_order
	`
	options := f.Options
	if options == nil {
		options = []string{}
	}
	return r.DB.QueryRowContext(ctx, query, f.EventID, f.Label, string(f.Kind), f.Required, pq.Array(options), f.CreatedAt).
		Scan(&f.ID, &f.Order)
}

func (r *registrationFieldRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.RegistrationField, error) {
	query := `
		SELECT id, event_id, label, kind, required, options, display_order, created_at
		FROM registration_fields
		WHERE event_id = $1
		ORDER BY display_order ASC, created_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	fields := make([]*domain.RegistrationField, 0)
	for rows.Next() {
		f := &domain.RegistrationField{}
		var kind string
		var options []string
		if err := rows.Scan(&f.ID, &f.EventID, &f.Label, &kind, &f.Required, pq.Array(&options), &f.Order, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Kind = domain.FieldKind(kind)
		if options == nil {
			options = []string{}
		}
		f.Options = options
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
