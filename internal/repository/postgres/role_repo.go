package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guestpass/internal/domain"
)

type roleRepository struct {
	DB *sql.DB
}

func NewRoleRepository(db *sql.DB) domain.RoleRepository {
	return &roleRepository{DB: db}
}

// GetByCode resolves a seeded role. The organizer role is inserted by the schema, so a miss
// means the schema was not applied.
func (r *roleRepository) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id, code FROM roles WHERE code = $1`, code).Scan(&id, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %q: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewRole(id, code), nil
}

// ListByUserID returns the roles granted to a user, ordered by code. The codes end up as JWT
// claims.
func (r *roleRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.code FROM roles r
		INNER JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		var id, code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		roles = append(roles, domain.NewRole(id, code))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []*domain.Role{}
	}
	return roles, nil
}
