package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"guestpass/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inline(fn func()) { fn() }

// memStore backs every fake repository. It is safe for concurrent use so the
// conditional transitions (invite USED, attendee checked in) can be raced in tests.
type memStore struct {
	mu        sync.Mutex
	seq       int
	events    map[string]*domain.Event
	fields    map[string][]*domain.RegistrationField
	invites   map[string]*domain.Invite
	attendees map[string]*domain.Attendee
	answers   map[string][]*domain.RegistrationAnswer
	checkIns  []domain.CheckIn
	users     map[string]*domain.User
	roles     map[string]*domain.Role
	userRoles map[string][]string

	registerErr error
	markSentErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]*domain.Event),
		fields:    make(map[string][]*domain.RegistrationField),
		invites:   make(map[string]*domain.Invite),
		attendees: make(map[string]*domain.Attendee),
		answers:   make(map[string][]*domain.RegistrationAnswer),
		users:     make(map[string]*domain.User),
		roles:     map[string]*domain.Role{domain.RoleOrganizer: domain.NewRole("role-1", domain.RoleOrganizer)},
		userRoles: make(map[string][]string),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addEvent(ownerID, name string, start time.Time) *domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := domain.NewEvent(ownerID, name, start, start.Add(4*time.Hour), nil, start, start)
	e.ID = m.nextID("ev")
	m.events[e.ID] = e
	return e
}

func (m *memStore) addField(eventID, label string, kind domain.FieldKind, required bool, options ...string) *domain.RegistrationField {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &domain.RegistrationField{
		ID:       m.nextID("field"),
		EventID:  eventID,
		Label:    label,
		Kind:     kind,
		Required: required,
		Options:  options,
		Order:    len(m.fields[eventID]) + 1,
	}
	m.fields[eventID] = append(m.fields[eventID], f)
	return f
}

func (m *memStore) addInvite(eventID, email string, createdAt time.Time, expiresAt *time.Time) *domain.Invite {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := domain.NewInvite(eventID, m.nextID("tok"), email, createdAt, expiresAt)
	inv.ID = m.nextID("inv")
	m.invites[inv.ID] = inv
	return inv
}

func (m *memStore) addAttendee(eventID, name string) *domain.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &domain.Attendee{
		ID:       m.nextID("att"),
		EventID:  eventID,
		Token:    m.nextID("qr"),
		FullName: name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Phone:    "555-0100",
	}
	m.attendees[a.ID] = a
	return a
}

func (m *memStore) invite(id string) domain.Invite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.invites[id]
}

func (m *memStore) attendee(id string) domain.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.attendees[id]
}

func (m *memStore) attendeeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendees)
}

func (m *memStore) checkInCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkIns)
}

type fakeEventRepo struct{ *memStore }

func (f fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.nextID("ev")
	f.events[e.ID] = e
	return nil
}

func (f fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f fakeEventRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Event, error) {
	e, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (f fakeEventRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*domain.EventSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.EventSummary{}
	for _, e := range f.events {
		if e.OwnerID != ownerID {
			continue
		}
		s := &domain.EventSummary{Event: *e}
		for _, a := range f.attendees {
			if a.EventID == e.ID {
				s.AttendeeCount++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f fakeEventRepo) GetStats(ctx context.Context, eventID string) (*domain.EventStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.EventStats{RegistrationFields: len(f.fields[eventID])}
	for _, inv := range f.invites {
		if inv.EventID != eventID {
			continue
		}
		s.InvitesTotal++
		if inv.Status == domain.InviteUsed {
			s.InvitesUsed++
		}
	}
	for _, a := range f.attendees {
		if a.EventID != eventID {
			continue
		}
		s.Attendees++
		if a.CheckedInAt != nil {
			s.CheckedIn++
		}
	}
	s.NotCheckedIn = s.Attendees - s.CheckedIn
	return s, nil
}

func (f fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.events, id)
	delete(f.fields, id)
	for k, inv := range f.invites {
		if inv.EventID == id {
			delete(f.invites, k)
		}
	}
	for k, a := range f.attendees {
		if a.EventID == id {
			delete(f.attendees, k)
			delete(f.answers, k)
		}
	}
	return nil
}

type fakeFieldRepo struct{ *memStore }

func (f fakeFieldRepo) Create(ctx context.Context, field *domain.RegistrationField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	field.ID = f.nextID("field")
	field.Order = len(f.fields[field.EventID]) + 1
	f.fields[field.EventID] = append(f.fields[field.EventID], field)
	return nil
}

func (f fakeFieldRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.RegistrationField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.RegistrationField, len(f.fields[eventID]))
	copy(out, f.fields[eventID])
	return out, nil
}

type fakeInviteRepo struct{ *memStore }

func (f fakeInviteRepo) Create(ctx context.Context, inv *domain.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.ID = f.nextID("inv")
	cp := *inv
	f.invites[inv.ID] = &cp
	return nil
}

func (f fakeInviteRepo) GetByToken(ctx context.Context, tok string) (*domain.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invites {
		if inv.Token == tok {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInviteNotFound
}

func (f fakeInviteRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Invite{}
	for _, inv := range f.invites {
		if inv.EventID == eventID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f fakeInviteRepo) MarkSent(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markSentErr != nil {
		return false, f.markSentErr
	}
	inv, ok := f.invites[id]
	if !ok || inv.Status != domain.InviteCreated {
		return false, nil
	}
	inv.Status = domain.InviteSent
	return true, nil
}

func (f fakeInviteRepo) ListPendingDelivery(ctx context.Context, createdBefore, now time.Time, limit int) ([]*domain.PendingInvite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.PendingInvite{}
	for _, inv := range f.invites {
		if inv.Status != domain.InviteCreated || !inv.CreatedAt.Before(createdBefore) || inv.ExpiredAt(now) {
			continue
		}
		cp := *inv
		out = append(out, &domain.PendingInvite{Invite: &cp, EventName: f.events[inv.EventID].Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Invite.CreatedAt.Before(out[j].Invite.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAttendeeRepo struct{ *memStore }

func (f fakeAttendeeRepo) Register(ctx context.Context, invite *domain.Invite, a *domain.Attendee, answers []*domain.RegistrationAnswer, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	stored, ok := f.invites[invite.ID]
	if !ok {
		return domain.ErrInviteNotFound
	}
	if stored.Status == domain.InviteUsed {
		return domain.ErrInviteAlreadyUsed
	}
	if stored.ExpiredAt(usedAt) {
		return domain.ErrInviteExpired
	}
	stored.Status = domain.InviteUsed
	stored.UsedAt = &usedAt

	a.ID = f.nextID("att")
	a.InviteID = invite.ID
	cp := *a
	f.attendees[a.ID] = &cp
	for _, ans := range answers {
		ans.ID = f.nextID("ans")
		ans.AttendeeID = a.ID
	}
	f.answers[a.ID] = answers
	invite.Status = domain.InviteUsed
	invite.UsedAt = &usedAt
	return nil
}

func (f fakeAttendeeRepo) GetByTokenAndEvent(ctx context.Context, tok, eventID string) (*domain.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attendees {
		if a.Token == tok && a.EventID == eventID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAttendeeNotFound
}

func (f fakeAttendeeRepo) MarkCheckedIn(ctx context.Context, attendeeID, operatorID string, at time.Time) (bool, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attendees[attendeeID]
	if !ok {
		return false, time.Time{}, domain.ErrAttendeeNotFound
	}
	if a.CheckedInAt != nil {
		return false, *a.CheckedInAt, nil
	}
	a.CheckedInAt = &at
	f.checkIns = append(f.checkIns, domain.CheckIn{ID: f.nextID("ci"), AttendeeID: attendeeID, OperatorID: operatorID, CreatedAt: at})
	return true, at, nil
}

func (f fakeAttendeeRepo) ListByEvent(ctx context.Context, eventID string, filter domain.AttendeeFilter, params domain.PaginationParams) ([]*domain.Attendee, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*domain.Attendee
	for _, a := range f.attendees {
		if a.EventID != eventID {
			continue
		}
		switch filter.Status {
		case domain.AttendeeStatusCheckedIn:
			if a.CheckedInAt == nil {
				continue
			}
		case domain.AttendeeStatusNotCheckedIn:
			if a.CheckedInAt != nil {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(a.FullName+" "+a.Email+" "+a.Phone), search) {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)
	return matched[start:end], total, nil
}

func (f fakeAttendeeRepo) ListAnswersByAttendeeIDs(ctx context.Context, ids []string) ([]*domain.RegistrationAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.RegistrationAnswer{}
	for _, id := range ids {
		out = append(out, f.answers[id]...)
	}
	return out, nil
}

func (f fakeAttendeeRepo) CountByEvent(ctx context.Context, eventID string) (*domain.AttendeeCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &domain.AttendeeCounts{}
	for _, a := range f.attendees {
		if a.EventID != eventID {
			continue
		}
		c.Total++
		if a.CheckedInAt != nil {
			c.CheckedIn++
		}
	}
	c.NotCheckedIn = c.Total - c.CheckedIn
	return c, nil
}

type fakeUserRepo struct{ *memStore }

func (f fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	u.ID = f.nextID("user")
	f.users[u.ID] = u
	return nil
}

func (f fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f fakeUserRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userRoles[userID] = append(f.userRoles[userID], roleID)
	return nil
}

type fakeRoleRepo struct{ *memStore }

func (f fakeRoleRepo) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.roles[code]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (f fakeRoleRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Role{}
	for _, roleID := range f.userRoles[userID] {
		for _, r := range f.roles {
			if r.ID == roleID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// fakeEmailService records what would have been sent.
type fakeEmailService struct {
	mu            sync.Mutex
	invites       []*domain.InviteEmailData
	confirmations []*domain.RegistrationEmailData
	inviteErr     error
	failFor       map[string]bool
	confirmErr    error
}

func (f *fakeEmailService) SendInvite(ctx context.Context, data *domain.InviteEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inviteErr != nil {
		return f.inviteErr
	}
	if f.failFor[data.Email] {
		return errors.New("mailbox unavailable")
	}
	f.invites = append(f.invites, data)
	return nil
}

func (f *fakeEmailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, data)
	return nil
}

func (f *fakeEmailService) sentInvites() []*domain.InviteEmailData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.InviteEmailData(nil), f.invites...)
}

func (f *fakeEmailService) sentConfirmations() []*domain.RegistrationEmailData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.RegistrationEmailData(nil), f.confirmations...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
