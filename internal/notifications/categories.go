// Package notifications resolves per-user channel preferences and fans
// notifications out to email and the in-app inbox.
package notifications

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Channels a notification can travel on.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// Category keys known to the dispatcher.
const (
	CategoryAccount         = "account"
	CategoryBilling         = "billing"
	CategorySubscriptions   = "subscriptions"
	CategoryListingActivity = "listing_activity"
	CategoryMarketing       = "marketing"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Category describes a notification class and its channel defaults. Locked
// categories ignore user opt-outs on email: billing and account mail always
// goes out.
type Category struct {
	Key          string `yaml:"key"`
	Label        string `yaml:"label"`
	EmailDefault bool   `yaml:"email_default"`
	InAppDefault bool   `yaml:"in_app_default"`
	Locked       bool   `yaml:"locked"`
}

type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

// CategoryTable is the static category configuration, loaded once from the
// embedded YAML.
type CategoryTable struct {
	order []string
	byKey map[string]Category
}

// LoadCategories parses the embedded category table.
func LoadCategories() (*CategoryTable, error) {
	var file categoryFile
	if err := yaml.Unmarshal(categoriesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("category table is empty")
	}
	table := &CategoryTable{byKey: make(map[string]Category, len(file.Categories))}
	for _, c := range file.Categories {
		if c.Key == "" {
			return nil, fmt.Errorf("category with empty key")
		}
		if _, dup := table.byKey[c.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Key)
		}
		table.order = append(table.order, c.Key)
		table.byKey[c.Key] = c
	}
	return table, nil
}

// Get returns a category by key.
func (t *CategoryTable) Get(key string) (Category, bool) {
	c, ok := t.byKey[key]
	return c, ok
}

// All returns the categories in file order.
func (t *CategoryTable) All() []Category {
	out := make([]Category, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.byKey[key])
	}
	return out
}

// Resolve merges stored preferences over the category defaults. prefs maps
// channel to the user's stored choice; channels missing from prefs fall
// back to the default. Locked categories force email on.
func (t *CategoryTable) Resolve(key string, prefs map[string]bool) (email, inApp bool, err error) {
	c, ok := t.byKey[key]
	if !ok {
		return false, false, fmt.Errorf("unknown notification category %q", key)
	}
	email = c.EmailDefault
	if v, stored := prefs[ChannelEmail]; stored {
		email = v
	}
	if c.Locked {
		email = true
	}
	inApp = c.InAppDefault
	if v, stored := prefs[ChannelInApp]; stored {
		inApp = v
	}
	return email, inApp, nil
}
