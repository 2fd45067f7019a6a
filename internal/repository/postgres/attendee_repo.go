package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"guestpass/internal/domain"

	"github.com/lib/pq"
)

type attendeeRepository struct {
	DB *sql.DB
}

func NewAttendeeRepository(db *sql.DB) domain.AttendeeRepository {
	return &attendeeRepository{DB: db}
}

const attendeeColumns = `id, event_id, invite_id, token, full_name, email, phone, age, gender, dietary, table_label, registered_at, checked_in_at`

func scanAttendee(row rowScanner) (*domain.Attendee, error) {
	a := &domain.Attendee{}
	var ageNull sql.NullInt64
	var genderNull, dietaryNull, tableNull sql.NullString
	var checkedNull sql.NullTime
	err := row.Scan(&a.ID, &a.EventID, &a.InviteID, &a.Token, &a.FullName, &a.Email, &a.Phone,
		&ageNull, &genderNull, &dietaryNull, &tableNull, &a.RegisteredAt, &checkedNull)
	if err != nil {
		return nil, err
	}
	if ageNull.Valid {
		age := int(ageNull.Int64)
		a.Age = &age
	}
	if genderNull.Valid {
		a.Gender = &genderNull.String
	}
	if dietaryNull.Valid {
		a.Dietary = &dietaryNull.String
	}
	if tableNull.Valid {
		a.TableLabel = &tableNull.String
	}
	if checkedNull.Valid {
		a.CheckedInAt = &checkedNull.Time
	}
	return a, nil
}

// Register consumes the invite with a conditional update so that of several concurrent
// submissions only the first to commit inserts an attendee.
func (r *attendeeRepository) Register(ctx context.Context, inv *domain.Invite, a *domain.Attendee, answers []*domain.RegistrationAnswer, usedAt time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	consume := `
		UPDATE invites SET status = 'USED', used_at = $2
		WHERE id = $1 AND status <> 'USED' AND (expires_at IS NULL OR expires_at > $2)
	`
	result, err := tx.ExecContext(ctx, consume, inv.ID, usedAt)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = inviteConflict(ctx, tx, inv.ID, usedAt)
		return err
	}

	insert := `
		INSERT INTO attendees (event_id, invite_id, token, full_name, email, phone, age, gender, dietary, table_label, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insert, a.EventID, inv.ID, a.Token, a.FullName, a.Email, a.Phone,
		a.Age, a.Gender, a.Dietary, a.TableLabel, a.RegisteredAt).Scan(&a.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = domain.ErrInviteAlreadyUsed
		}
		return err
	}

	if len(answers) > 0 {
		if err = insertAnswers(ctx, tx, a.ID, answers); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.InviteID = inv.ID
	inv.Status = domain.InviteUsed
	inv.UsedAt = &usedAt
	return nil
}

// inviteConflict explains why the consuming update matched no row.
func inviteConflict(ctx context.Context, tx *sql.Tx, inviteID string, now time.Time) error {
	var status string
	var expiresNull sql.NullTime
	err := tx.QueryRowContext(ctx, `SELECT status, expires_at FROM invites WHERE id = $1`, inviteID).Scan(&status, &expiresNull)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInviteNotFound
		}
		return err
	}
	if domain.InviteStatus(status) != domain.InviteUsed && expiresNull.Valid && !expiresNull.Time.After(now) {
		return domain.ErrInviteExpired
	}
	return domain.ErrInviteAlreadyUsed
}

func insertAnswers(ctx context.Context, tx *sql.Tx, attendeeID string, answers []*domain.RegistrationAnswer) error {
	fieldIDs := make([]string, len(answers))
	values := make([]string, len(answers))
	for i, ans := range answers {
		b, err := json.Marshal(ans.Value)
		if err != nil {
			return fmt.Errorf("encode answer for field %s: %w", ans.FieldID, err)
		}
		fieldIDs[i] = ans.FieldID
		values[i] = string(b)
	}
	query := `
		INSERT INTO registration_answers (attendee_id, field_id, value)
		SELECT $1, t.field_id, t.value::jsonb
		FROM unnest($2::uuid[], $3::text[]) AS t(field_id, value)
		RETURNING id, field_id
	`
	rows, err := tx.QueryContext(ctx, query, attendeeID, pq.Array(fieldIDs), pq.Array(values))
	if err != nil {
		return err
	}
	defer rows.Close()
	byField := make(map[string]*domain.RegistrationAnswer, len(answers))
	for _, ans := range answers {
		ans.AttendeeID = attendeeID
		byField[ans.FieldID] = ans
	}
	for rows.Next() {
		var id, fieldID string
		if err := rows.Scan(&id, &fieldID); err != nil {
			return err
		}
		if ans, ok := byField[fieldID]; ok {
			ans.ID = id
		}
	}
	return rows.Err()
}

func (r *attendeeRepository) GetByTokenAndEvent(ctx context.Context, token, eventID string) (*domain.Attendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE token = $1 AND event_id = $2`
	a, err := scanAttendee(r.DB.QueryRowContext(ctx, query, token, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAttendeeNotFound
		}
		return nil, err
	}
	return a, nil
}

// MarkCheckedIn only writes when checked_in_at is still NULL, so the first committed scan wins
// and exactly one check_ins row exists per attendee.
func (r *attendeeRepository) MarkCheckedIn(ctx context.Context, attendeeID, operatorID string, at time.Time) (bool, time.Time, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("begin: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE attendees SET checked_in_at = $2 WHERE id = $1 AND checked_in_at IS NULL`, attendeeID, at)
	if err != nil {
		_ = tx.Rollback()
		return false, time.Time{}, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, time.Time{}, err
	}
	if n == 0 {
		_ = tx.Rollback()
		var checkedNull sql.NullTime
		err := r.DB.QueryRowContext(ctx, `SELECT checked_in_at FROM attendees WHERE id = $1`, attendeeID).Scan(&checkedNull)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, time.Time{}, domain.ErrAttendeeNotFound
			}
			return false, time.Time{}, err
		}
		if !checkedNull.Valid {
			return false, time.Time{}, fmt.Errorf("attendee %s: check-in not recorded", attendeeID)
		}
		return false, checkedNull.Time, nil
	}

	audit := `
		INSERT INTO check_ins (attendee_id, event_id, operator_id, scanned_at)
		SELECT id, event_id, $2, $3 FROM attendees WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, audit, attendeeID, operatorID, at); err != nil {
		_ = tx.Rollback()
		return false, time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return false, time.Time{}, fmt.Errorf("commit: %w", err)
	}
	return true, at, nil
}

func attendeeWhere(eventID string, filter domain.AttendeeFilter) (string, []any) {
	clauses := []string{"event_id = $1"}
	args := []any{eventID}
	switch filter.Status {
	case domain.AttendeeStatusCheckedIn:
		clauses = append(clauses, "checked_in_at IS NOT NULL")
	case domain.AttendeeStatusNotCheckedIn:
		clauses = append(clauses, "checked_in_at IS NULL")
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *attendeeRepository) ListByEvent(ctx context.Context, eventID string, filter domain.AttendeeFilter, params domain.PaginationParams) ([]*domain.Attendee, int, error) {
	where, args := attendeeWhere(eventID, filter)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendees WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM attendees WHERE %s ORDER BY registered_at DESC LIMIT $%d OFFSET $%d`,
		attendeeColumns, where, n+1, n+2)
	args = append(args, params.PageSize, params.Offset())
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	attendees := make([]*domain.Attendee, 0)
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, 0, err
		}
		attendees = append(attendees, a)
	}
	return attendees, total, rows.Err()
}

func (r *attendeeRepository) ListAnswersByAttendeeIDs(ctx context.Context, attendeeIDs []string) ([]*domain.RegistrationAnswer, error) {
	if len(attendeeIDs) == 0 {
		return []*domain.RegistrationAnswer{}, nil
	}
	query := `
		SELECT ra.id, ra.attendee_id, ra.field_id, ra.value
		FROM registration_answers ra
		INNER JOIN registration_fields rf ON rf.id = ra.field_id
		WHERE ra.attendee_id = ANY($1)
		ORDER BY ra.attendee_id, rf.display_order, rf.created_at
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(attendeeIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := make([]*domain.RegistrationAnswer, 0)
	for rows.Next() {
		ans := &domain.RegistrationAnswer{}
		var raw []byte
		if err := rows.Scan(&ans.ID, &ans.AttendeeID, &ans.FieldID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &ans.Value); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", ans.ID, err)
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

func (r *attendeeRepository) CountByEvent(ctx context.Context, eventID string) (*domain.AttendeeCounts, error) {
	query := `
		SELECT COUNT(*), COUNT(checked_in_at)
		FROM attendees
		WHERE event_id = $1
	`
	c := &domain.AttendeeCounts{}
	if err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&c.Total, &c.CheckedIn); err != nil {
		return nil, err
	}
	c.NotCheckedIn = c.Total - c.CheckedIn
	return c, nil
}
