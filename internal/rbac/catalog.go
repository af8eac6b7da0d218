package rbac

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

const (
	permissionIDPrefix = "perm_"

	maxNameLen        = 100
	maxCategoryLen    = 100
	maxDescriptionLen = 500
)

var permissionIDPattern = regexp.MustCompile(`^perm_[a-z0-9_]+$`)

// Catalog manages the durable registry of Permission records.
type Catalog struct {
	store Store
}

// NewCatalog constructs a Catalog backed by the given store.
func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store}
}

// CreatePermissionInput carries the fields for a new catalog entry. ID is
// optional; when absent it is generated from the name.
type CreatePermissionInput struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Create registers a new permission. The identifier must match the catalog
// naming pattern; it is generated from the name when not supplied.
func (c *Catalog) Create(ctx context.Context, in CreatePermissionInput) (*Permission, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	description := strings.TrimSpace(in.Description)

	switch {
	case name == "" || category == "":
		return nil, fmt.Errorf("%w: name and category are required", httpx.ErrValidation)
	case len(name) > maxNameLen:
		return nil, fmt.Errorf("%w: name exceeds %d characters", httpx.ErrValidation, maxNameLen)
	case len(category) > maxCategoryLen:
		return nil, fmt.Errorf("%w: category exceeds %d characters", httpx.ErrValidation, maxCategoryLen)
	case len(description) > maxDescriptionLen:
		return nil, fmt.Errorf("%w: description exceeds %d characters", httpx.ErrValidation, maxDescriptionLen)
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = GeneratePermissionID(name)
	}
	if !permissionIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: permission id %q does not match %s", httpx.ErrValidation, id, permissionIDPattern)
	}

	perm := Permission{ID: id, Name: name, Category: category, Description: description}
	if err := c.store.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return c.mustGet(ctx, id)
}

// UpdatePermissionInput holds the mutable permission fields. Nil fields are
// left untouched; the identifier itself is immutable.
type UpdatePermissionInput struct {
	Name        *string `json:"name,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Update applies a partial update, failing with not-found when the
// identifier is absent from the catalog.
func (c *Catalog) Update(ctx context.Context, id string, in UpdatePermissionInput) (*Permission, error) {
	existing, err := c.store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: permission %s", httpx.ErrNotFound, id)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > maxNameLen {
			return nil, fmt.Errorf("%w: invalid name", httpx.ErrValidation)
		}
		existing.Name = name
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" || len(category) > maxCategoryLen {
			return nil, fmt.Errorf("%w: invalid category", httpx.ErrValidation)
		}
		existing.Category = category
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if len(description) > maxDescriptionLen {
			return nil, fmt.Errorf("%w: description exceeds %d characters", httpx.ErrValidation, maxDescriptionLen)
		}
		existing.Description = description
	}

	updated, err := c.store.UpdatePermission(ctx, *existing)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: permission %s", httpx.ErrNotFound, id)
	}
	return c.mustGet(ctx, id)
}

// Delete removes a permission from the catalog. Roles referencing the id
// keep their dangling refs; resolution treats those as absent.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	deleted, err := c.store.DeletePermission(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: permission %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Get fetches a single permission by identifier.
func (c *Catalog) Get(ctx context.Context, id string) (*Permission, error) {
	perm, err := c.store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, fmt.Errorf("%w: permission %s", httpx.ErrNotFound, id)
	}
	return perm, nil
}

// List returns the full catalog ordered by name.
func (c *Catalog) List(ctx context.Context) ([]Permission, error) {
	return c.store.ListPermissions(ctx)
}

// Search returns up to limit permissions whose name or category contains
// the case-folded query, best matches first. The returned sequence is lazy
// and restartable: each range re-runs the query against the store.
func (c *Catalog) Search(ctx context.Context, query string, limit int) iter.Seq2[Permission, error] {
	folded := foldCaser.String(strings.TrimSpace(query))
	return func(yield func(Permission, error) bool) {
		if limit <= 0 || folded == "" {
			return
		}
		perms, err := c.store.ListPermissions(ctx)
		if err != nil {
			yield(Permission{}, err)
			return
		}
		for _, p := range rankMatches(perms, folded, limit) {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// GeneratePermissionID derives a catalog identifier from a display name.
func GeneratePermissionID(name string) string {
	var b strings.Builder
	b.WriteString(permissionIDPrefix)
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

var foldCaser = cases.Fold()

type rankedMatch struct {
	perm Permission
	rank int
}

func rankMatches(perms []Permission, folded string, limit int) []Permission {
	var ranked []rankedMatch
	for _, p := range perms {
		name := foldCaser.String(p.Name)
		category := foldCaser.String(p.Category)
		switch {
		case strings.HasPrefix(name, folded):
			ranked = append(ranked, rankedMatch{p, 0})
		case strings.Contains(name, folded):
			ranked = append(ranked, rankedMatch{p, 1})
		case strings.Contains(category, folded):
			ranked = append(ranked, rankedMatch{p, 2})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].rank != ranked[j].rank {
			return ranked[i].rank < ranked[j].rank
		}
		return ranked[i].perm.Name < ranked[j].perm.Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Permission, len(ranked))
	for i, m := range ranked {
		out[i] = m.perm
	}
	return out
}

func (c *Catalog) mustGet(ctx context.Context, id string) (*Permission, error) {
	perm, err := c.store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, fmt.Errorf("%w: permission %s", httpx.ErrNotFound, id)
	}
	return perm, nil
}
