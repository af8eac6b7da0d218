package listings

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

type memRepo struct {
	listings map[string]Listing
}

func newMemRepo() *memRepo {
	return &memRepo{listings: map[string]Listing{}}
}

func (m *memRepo) Get(ctx context.Context, id string) (*Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: listing", httpx.ErrNotFound)
	}
	return &l, nil
}

func (m *memRepo) List(ctx context.Context, req ListListingsRequest) ([]Listing, int, error) {
	var out []Listing
	for _, l := range m.listings {
		if req.Status != "" && l.Status != req.Status {
			continue
		}
		if req.SellerID != "" && l.SellerID != req.SellerID {
			continue
		}
		if req.Search != "" {
			needle := strings.ToLower(req.Search)
			hay := strings.ToLower(l.Title + " " + l.Make + " " + l.Model)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(ctx context.Context, listing Listing) error {
	m.listings[listing.ID] = listing
	return nil
}

func (m *memRepo) Update(ctx context.Context, id string, updates map[string]any) (bool, error) {
	l, ok := m.listings[id]
	if !ok {
		return false, nil
	}
	if v, ok := updates["title"]; ok {
		l.Title = v.(string)
	}
	if v, ok := updates["price_cents"]; ok {
		l.PriceCents = v.(int64)
	}
	if v, ok := updates["status"]; ok {
		l.Status = v.(string)
	}
	if v, ok := updates["published_at"]; ok {
		at := v.(time.Time)
		l.PublishedAt = &at
	}
	m.listings[id] = l
	return true, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.listings[id]; !ok {
		return false, nil
	}
	delete(m.listings, id)
	return true, nil
}

func draft(t *testing.T, svc *Service) *Listing {
	t.Helper()
	listing, err := svc.Create(context.Background(), "u1", CreateListingRequest{
		SellerID:   "s1",
		Title:      "2019 Wagon",
		Make:       "Volvo",
		Model:      "V60",
		Year:       2019,
		PriceCents: 2_150_000,
		Mileage:    42000,
	})
	require.NoError(t, err)
	return listing
}

func TestCreateListingStartsDraft(t *testing.T) {
	svc := NewService(newMemRepo())
	listing := draft(t, svc)

	assert.Equal(t, StatusDraft, listing.Status)
	assert.Equal(t, "u1", listing.OwnerUserID)
	assert.Nil(t, listing.PublishedAt)
}

func TestPublishListing(t *testing.T) {
	svc := NewService(newMemRepo())
	listing := draft(t, svc)

	published, err := svc.Publish(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	// Publishing twice is not a legal transition.
	_, err = svc.Publish(context.Background(), listing.ID)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestListingLifecycle(t *testing.T) {
	svc := NewService(newMemRepo())
	listing := draft(t, svc)

	_, err := svc.MarkSold(context.Background(), listing.ID)
	assert.ErrorIs(t, err, httpx.ErrValidation, "draft cannot be sold")

	_, err = svc.Publish(context.Background(), listing.ID)
	require.NoError(t, err)

	sold, err := svc.MarkSold(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, sold.Status)

	_, err = svc.Archive(context.Background(), listing.ID)
	assert.ErrorIs(t, err, httpx.ErrValidation, "sold is terminal")
}

func TestArchiveFromDraftAndPublished(t *testing.T) {
	svc := NewService(newMemRepo())

	d := draft(t, svc)
	archived, err := svc.Archive(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)

	p := draft(t, svc)
	_, err = svc.Publish(context.Background(), p.ID)
	require.NoError(t, err)
	archived, err = svc.Archive(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	svc := NewService(newMemRepo())

	d := draft(t, svc)
	require.NoError(t, svc.Delete(context.Background(), d.ID))
	_, err := svc.Get(context.Background(), d.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	p := draft(t, svc)
	_, err = svc.Publish(context.Background(), p.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(context.Background(), p.ID), httpx.ErrValidation)
}

func TestUpdateListing(t *testing.T) {
	svc := NewService(newMemRepo())
	listing := draft(t, svc)

	price := int64(1_999_000)
	updated, err := svc.Update(context.Background(), listing.ID, UpdateListingRequest{PriceCents: &price})
	require.NoError(t, err)
	assert.Equal(t, price, updated.PriceCents)

	bad := int64(0)
	_, err = svc.Update(context.Background(), listing.ID, UpdateListingRequest{PriceCents: &bad})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
