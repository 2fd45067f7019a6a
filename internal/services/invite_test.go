package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"guestpass/internal/domain"
)

var inviteNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestInviteService(store *memStore, emails *fakeEmailService, cfg InviteConfig) *inviteService {
	cfg.AppURL = "https://guests.example.com"
	svc := NewInviteService(fakeInviteRepo{store}, fakeEventRepo{store}, fakeFieldRepo{store}, emails, cfg, testLogger()).(*inviteService)
	svc.now = fixedClock(inviteNow)
	svc.async = inline
	return svc
}

func TestCreateInvite(t *testing.T) {
	store := newMemStore()
	emails := &fakeEmailService{}
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	svc := newTestInviteService(store, emails, InviteConfig{})

	inv, err := svc.CreateInvite(context.Background(), domain.Operator{ID: "op-1"}, event.ID, "  A@B.com ")
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, "a@b.com", inv.Email)
	assert.Equal(t, domain.InviteCreated, inv.Status)
	assert.Equal(t, inviteNow, inv.CreatedAt)
	assert.Nil(t, inv.ExpiresAt)

	sent := emails.sentInvites()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@b.com", sent[0].Email)
	assert.Equal(t, "Gala", sent[0].EventName)
	assert.Equal(t, "https://guests.example.com/invite/"+inv.Token, sent[0].InviteURL)
	assert.Equal(t, domain.InviteSent, store.invite(inv.ID).Status)
}

func TestCreateInvite_TTL(t *testing.T) {
	store := newMemStore()
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	svc := newTestInviteService(store, &fakeEmailService{}, InviteConfig{TTL: 48 * time.Hour})

	inv, err := svc.CreateInvite(context.Background(), domain.Operator{ID: "op-1"}, event.ID, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, inv.ExpiresAt)
	assert.Equal(t, inviteNow.Add(48*time.Hour), *inv.ExpiresAt)
}

func TestCreateInvite_EmailFailureKeepsInvite(t *testing.T) {
	store := newMemStore()
	emails := &fakeEmailService{inviteErr: errors.New("throttled")}
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	svc := newTestInviteService(store, emails, InviteConfig{})

	inv, err := svc.CreateInvite(context.Background(), domain.Operator{ID: "op-1"}, event.ID, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, domain.InviteCreated, store.invite(inv.ID).Status)
}

func TestCreateInvite_Errors(t *testing.T) {
	store := newMemStore()
	emails := &fakeEmailService{}
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	svc := newTestInviteService(store, emails, InviteConfig{})

	for _, email := range []string{"", "not-an-email", "a@b", "a b@c.com"} {
		_, err := svc.CreateInvite(context.Background(), domain.Operator{ID: "op-1"}, event.ID, email)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, email)
	}

	_, err := svc.CreateInvite(context.Background(), domain.Operator{ID: "op-2"}, event.ID, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.CreateInvite(context.Background(), domain.Operator{ID: "op-1"}, "missing", "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, emails.sentInvites())
}

func TestListInvites(t *testing.T) {
	store := newMemStore()
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	store.addInvite(event.ID, "old@b.com", inviteNow.Add(-2*time.Hour), nil)
	store.addInvite(event.ID, "new@b.com", inviteNow.Add(-time.Hour), nil)
	svc := newTestInviteService(store, &fakeEmailService{}, InviteConfig{})

	list, err := svc.ListInvites(context.Background(), domain.Operator{ID: "op-1"}, event.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new@b.com", list[0].Email)

	_, err = svc.ListInvites(context.Background(), domain.Operator{ID: "op-2"}, event.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveInviteForRedemption(t *testing.T) {
	store := newMemStore()
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	second := store.addField(event.ID, "Menu", domain.FieldCheckbox, false, "Fish")
	first := store.addField(event.ID, "Company", domain.FieldText, true)
	first.Order, second.Order = 1, 2
	store.fields[event.ID] = []*domain.RegistrationField{first, second}

	open := store.addInvite(event.ID, "a@b.com", inviteNow.Add(-time.Hour), nil)
	past := inviteNow.Add(-time.Second)
	expired := store.addInvite(event.ID, "b@b.com", inviteNow.Add(-time.Hour), &past)
	used := store.addInvite(event.ID, "c@b.com", inviteNow.Add(-time.Hour), nil)
	used.Status = domain.InviteUsed
	svc := newTestInviteService(store, &fakeEmailService{}, InviteConfig{})

	got, err := svc.ResolveInviteForRedemption(context.Background(), open.Token)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.Invite.ID)
	assert.Equal(t, "Gala", got.Event.Name)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "Company", got.Fields[0].Label)

	_, err = svc.ResolveInviteForRedemption(context.Background(), expired.Token)
	assert.ErrorIs(t, err, domain.ErrInviteExpired)

	_, err = svc.ResolveInviteForRedemption(context.Background(), used.Token)
	assert.ErrorIs(t, err, domain.ErrInviteAlreadyUsed)

	_, err = svc.ResolveInviteForRedemption(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestDeliverPending(t *testing.T) {
	store := newMemStore()
	emails := &fakeEmailService{failFor: map[string]bool{"bounce@b.com": true}}
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	stale := store.addInvite(event.ID, "a@b.com", inviteNow.Add(-time.Hour), nil)
	bounce := store.addInvite(event.ID, "bounce@b.com", inviteNow.Add(-time.Hour), nil)
	fresh := store.addInvite(event.ID, "fresh@b.com", inviteNow.Add(-time.Minute), nil)
	past := inviteNow.Add(-time.Second)
	store.addInvite(event.ID, "expired@b.com", inviteNow.Add(-time.Hour), &past)
	svc := newTestInviteService(store, emails, InviteConfig{SweepGrace: 10 * time.Minute})

	sent, err := svc.DeliverPending(context.Background())
	assert.Equal(t, 1, sent)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), bounce.ID)

	assert.Equal(t, domain.InviteSent, store.invite(stale.ID).Status)
	assert.Equal(t, domain.InviteCreated, store.invite(bounce.ID).Status)
	assert.Equal(t, domain.InviteCreated, store.invite(fresh.ID).Status)
	require.Len(t, emails.sentInvites(), 1)
	assert.Equal(t, "a@b.com", emails.sentInvites()[0].Email)
}

func TestDeliverPending_RespectsBatch(t *testing.T) {
	store := newMemStore()
	event := store.addEvent("op-1", "Gala", inviteNow.Add(72*time.Hour))
	for range 3 {
		store.addInvite(event.ID, "a@b.com", inviteNow.Add(-time.Hour), nil)
	}
	svc := newTestInviteService(store, &fakeEmailService{}, InviteConfig{SweepBatch: 2})

	sent, err := svc.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}
