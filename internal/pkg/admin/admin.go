// Package admin describes which tables the admin surface lists and reads
// them generically.
package admin

import (
	"context"
	"fmt"
)

// Binding exposes one table in the admin UI. Columns are listed in display
// order and must include "id".
type Binding struct {
	Name    string
	Title   string
	Table   string
	Columns []string
}

// Registry is the fixed set of admin bindings, built once at startup.
type Registry struct {
	bindings []Binding
	byName   map[string]int
}

func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(bindings))}
	for _, b := range bindings {
		if b.Name == "" || b.Table == "" {
			return nil, fmt.Errorf("admin binding %q: name and table are required", b.Name)
		}
		if _, dup := r.byName[b.Name]; dup {
			return nil, fmt.Errorf("admin binding %q registered twice", b.Name)
		}
		if len(b.Columns) == 0 || b.Columns[0] != "id" {
			return nil, fmt.Errorf("admin binding %q: first column must be id", b.Name)
		}
		r.byName[b.Name] = len(r.bindings)
		r.bindings = append(r.bindings, b)
	}
	return r, nil
}

// DefaultBindings lists every table of the schema.
func DefaultBindings() []Binding {
	return []Binding{
		{Name: "users", Title: "Users", Table: "users",
			Columns: []string{"id", "username", "email", "first_name", "last_name", "role", "last_login_at", "created_at"}},
		{Name: "accounts", Title: "Accounts", Table: "accounts",
			Columns: []string{"id", "user_id", "phone", "balance", "created_at"}},
		{Name: "licenses", Title: "Licenses", Table: "licenses",
			Columns: []string{"id", "account_id", "title", "duration", "price", "created_at"}},
		{Name: "subscriptions", Title: "Subscriptions", Table: "subscriptions",
			Columns: []string{"id", "account_id", "license_id", "duration", "start_date", "end_date"}},
		{Name: "videos", Title: "Videos", Table: "videos",
			Columns: []string{"id", "account_id", "title", "category", "file_url", "hidden", "created_at"}},
		{Name: "watch-history", Title: "Watch history", Table: "watch_history",
			Columns: []string{"id", "account_id", "video_id", "watched_at"}},
		{Name: "comments", Title: "Comments", Table: "comments",
			Columns: []string{"id", "account_id", "video_id", "text", "created_at"}},
		{Name: "ratings", Title: "Ratings", Table: "ratings",
			Columns: []string{"id", "account_id", "video_id", "rate", "created_at"}},
	}
}

func (r *Registry) All() []Binding {
	return r.bindings
}

func (r *Registry) Lookup(name string) (Binding, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Binding{}, false
	}
	return r.bindings[i], true
}

// Source reads and deletes rows of a bound table. Rows are rendered to
// strings in the binding's column order.
type Source interface {
	Count(ctx context.Context, b Binding) (int64, error)
	List(ctx context.Context, b Binding, offset, limit int) ([][]string, error)
	Delete(ctx context.Context, b Binding, id uint) error
}
