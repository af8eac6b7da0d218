package notifications

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	inbox []Notification
	prefs []Preference
}

func (m *memRepo) Insert(ctx context.Context, n Notification) error {
	m.inbox = append(m.inbox, n)
	return nil
}

func (m *memRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	var out []Notification
	for _, n := range m.inbox {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return false, nil
}

func (m *memRepo) Preferences(ctx context.Context, userID string) ([]Preference, error) {
	var out []Preference
	for _, p := range m.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) SetPreference(ctx context.Context, pref Preference) error {
	m.prefs = append(m.prefs, pref)
	return nil
}

type memEnqueuer struct {
	sent []EmailPayload
	fail error
}

func (e *memEnqueuer) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	if e.fail != nil {
		return e.fail
	}
	e.sent = append(e.sent, payload)
	return nil
}

type memDirectory map[string]string

func (d memDirectory) EmailOf(ctx context.Context, userID string) (string, error) {
	addr, ok := d[userID]
	if !ok {
		return "", errors.New("unknown user")
	}
	return addr, nil
}

func newDispatcher(t *testing.T, repo *memRepo, enqueuer *memEnqueuer) *Dispatcher {
	t.Helper()
	table, err := LoadCategories()
	require.NoError(t, err)
	return NewDispatcher(slog.Default(), repo, table, enqueuer, memDirectory{"u1": "u1@test.local"})
}

func TestLoadCategories(t *testing.T) {
	table, err := LoadCategories()
	require.NoError(t, err)

	all := table.All()
	require.Len(t, all, 5)
	assert.Equal(t, CategoryAccount, all[0].Key)

	billing, ok := table.Get(CategoryBilling)
	require.True(t, ok)
	assert.True(t, billing.Locked)

	marketing, ok := table.Get(CategoryMarketing)
	require.True(t, ok)
	assert.False(t, marketing.EmailDefault)
	assert.False(t, marketing.Locked)
}

func TestResolveDefaults(t *testing.T) {
	table, err := LoadCategories()
	require.NoError(t, err)

	email, inApp, err := table.Resolve(CategoryListingActivity, nil)
	require.NoError(t, err)
	assert.False(t, email)
	assert.True(t, inApp)

	_, _, err = table.Resolve("bogus", nil)
	assert.Error(t, err)
}

func TestResolveStoredPrefsOverrideDefaults(t *testing.T) {
	table, err := LoadCategories()
	require.NoError(t, err)

	email, inApp, err := table.Resolve(CategoryListingActivity, map[string]bool{
		ChannelEmail: true,
		ChannelInApp: false,
	})
	require.NoError(t, err)
	assert.True(t, email)
	assert.False(t, inApp)
}

func TestResolveLockedWinsOverOptOut(t *testing.T) {
	table, err := LoadCategories()
	require.NoError(t, err)

	email, _, err := table.Resolve(CategoryBilling, map[string]bool{ChannelEmail: false})
	require.NoError(t, err)
	assert.True(t, email, "billing email cannot be opted out of")
}

func TestDispatchFansOut(t *testing.T) {
	repo := &memRepo{}
	enqueuer := &memEnqueuer{}
	d := newDispatcher(t, repo, enqueuer)

	err := d.Dispatch(context.Background(), Message{
		UserID:      "u1",
		Category:    CategoryBilling,
		Title:       "Payment received",
		Body:        "Invoice inv_1 settled.",
		TemplateKey: "invoice_paid",
		Params:      map[string]string{"invoice_id": "inv_1"},
	})
	require.NoError(t, err)

	require.Len(t, enqueuer.sent, 1)
	assert.Equal(t, "u1@test.local", enqueuer.sent[0].To)
	assert.Equal(t, "invoice_paid", enqueuer.sent[0].TemplateKey)

	require.Len(t, repo.inbox, 1)
	assert.Equal(t, "u1", repo.inbox[0].UserID)
	assert.Equal(t, CategoryBilling, repo.inbox[0].Category)
}

func TestDispatchHonoursOptOut(t *testing.T) {
	repo := &memRepo{prefs: []Preference{
		{UserID: "u1", Category: CategoryListingActivity, Channel: ChannelInApp, Enabled: false},
	}}
	enqueuer := &memEnqueuer{}
	d := newDispatcher(t, repo, enqueuer)

	err := d.Dispatch(context.Background(), Message{
		UserID:      "u1",
		Category:    CategoryListingActivity,
		Title:       "New message",
		Body:        "A buyer asked about your listing.",
		TemplateKey: "listing_message",
	})
	require.NoError(t, err)

	assert.Empty(t, enqueuer.sent, "email defaults off for listing activity")
	assert.Empty(t, repo.inbox, "in-app opted out")
}

func TestDispatchEmailFailureStillWritesInbox(t *testing.T) {
	repo := &memRepo{}
	enqueuer := &memEnqueuer{fail: errors.New("queue down")}
	d := newDispatcher(t, repo, enqueuer)

	err := d.Dispatch(context.Background(), Message{
		UserID:      "u1",
		Category:    CategoryBilling,
		Title:       "Payment received",
		Body:        "x",
		TemplateKey: "invoice_paid",
	})
	require.Error(t, err)
	assert.Len(t, repo.inbox, 1, "inbox row lands even when the queue is down")
}
