// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/confreg/internal/clock"
	"github.com/olegiv/confreg/internal/table"
)

var (
	// ErrNotFound is returned when no guest matches an ID or phone.
	ErrNotFound = errors.New("guest: not found")
	// ErrDuplicatePhone is returned when a phone is already registered.
	ErrDuplicatePhone = errors.New("guest: phone already registered")
)

// idLength is the number of hex characters in a guest ID.
const idLength = 8

// Options configure a Repository.
type Options struct {
	// CountryCode enables rewriting of international numbers for the home
	// country, see NormalizePhone.
	CountryCode string
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Repository stores guests in a table.Store.
type Repository struct {
	store       *table.Store
	countryCode string
	clock       clock.Clock
	logger      *slog.Logger
	newID       func() (string, error)
}

// NewRepository returns a Repository over store.
func NewRepository(store *table.Store, opts Options) *Repository {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Repository{
		store:       store,
		countryCode: opts.CountryCode,
		clock:       opts.Clock,
		logger:      opts.Logger,
		newID:       randomID,
	}
}

// Store returns the underlying table store.
func (r *Repository) Store() *table.Store { return r.store }

// NormalizePhone normalizes raw the same way stored phones are.
func (r *Repository) NormalizePhone(raw string) string {
	return NormalizePhone(raw, r.countryCode)
}

// List returns every guest in table order.
func (r *Repository) List(ctx context.Context) ([]Guest, error) {
	rows, err := r.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	guests := make([]Guest, 0, len(rows))
	for _, row := range rows {
		guests = append(guests, FromRow(row))
	}
	return guests, nil
}

// Search returns guests whose ID, name, phone or email contains q,
// ignoring case. An empty query returns everyone.
func (r *Repository) Search(ctx context.Context, q string) ([]Guest, error) {
	guests, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return guests, nil
	}
	var found []Guest
	for _, g := range guests {
		if g.matches(q) {
			found = append(found, g)
		}
	}
	return found, nil
}

// Count returns the number of guests.
func (r *Repository) Count(ctx context.Context) (int, error) {
	rows, err := r.store.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FindByID returns the guest with id.
func (r *Repository) FindByID(ctx context.Context, id string) (Guest, error) {
	guests, err := r.List(ctx)
	if err != nil {
		return Guest{}, err
	}
	for _, g := range guests {
		if g.ID == id {
			return g, nil
		}
	}
	return Guest{}, ErrNotFound
}

// FindByPhone returns the guest registered with the normalized form of phone.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (Guest, error) {
	phone = r.NormalizePhone(phone)
	if phone == "" {
		return Guest{}, ErrNotFound
	}
	guests, err := r.List(ctx)
	if err != nil {
		return Guest{}, err
	}
	for _, g := range guests {
		if g.Phone == phone {
			return g, nil
		}
	}
	return Guest{}, ErrNotFound
}

// Register validates in and appends a new guest with a fresh ID.
func (r *Repository) Register(ctx context.Context, in Input) (Guest, error) {
	in = in.normalize(r.countryCode)
	if err := Validate(in); err != nil {
		return Guest{}, err
	}

	var created Guest
	err := r.store.Update(ctx, func(rows []table.Row) ([]table.Row, error) {
		ids := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			if row[ColPhone] == in.Phone {
				return nil, ErrDuplicatePhone
			}
			ids[row[ColID]] = struct{}{}
		}
		id, err := r.uniqueID(ids)
		if err != nil {
			return nil, err
		}
		created = r.newGuest(id, in)
		return append(rows, created.Row()), nil
	}, Schema)
	if err != nil {
		return Guest{}, err
	}
	r.logger.Info("guest registered", "guest_id", created.ID, "category", "registration")
	return created, nil
}

// UpdateProfile applies a guest's own edit. The phone number is not changed.
func (r *Repository) UpdateProfile(ctx context.Context, id string, in Input) (Guest, error) {
	in = in.normalize(r.countryCode)
	if err := asError(profileProblems(in)); err != nil {
		return Guest{}, err
	}
	return r.modify(ctx, id, func(g *Guest, _ []table.Row) error {
		g.Name, g.Email, g.Institution, g.Fields = in.Name, in.Email, in.Institution, in.Fields
		return nil
	})
}

// AdminUpdate applies an operator edit, including the phone number, which
// must stay unique.
func (r *Repository) AdminUpdate(ctx context.Context, id string, in Input) (Guest, error) {
	in = in.normalize(r.countryCode)
	if err := Validate(in); err != nil {
		return Guest{}, err
	}
	return r.modify(ctx, id, func(g *Guest, rows []table.Row) error {
		for _, row := range rows {
			if row[ColID] != id && row[ColPhone] == in.Phone {
				return ErrDuplicatePhone
			}
		}
		g.Name, g.Email, g.Institution, g.Phone, g.Fields = in.Name, in.Email, in.Institution, in.Phone, in.Fields
		return nil
	})
}

func (r *Repository) modify(ctx context.Context, id string, change func(g *Guest, rows []table.Row) error) (Guest, error) {
	var updated Guest
	err := r.store.Update(ctx, func(rows []table.Row) ([]table.Row, error) {
		for i, row := range rows {
			if row[ColID] != id {
				continue
			}
			g := FromRow(row)
			if err := change(&g, rows); err != nil {
				return nil, err
			}
			g.UpdatedAt = r.timestamp()
			rows[i] = g.Row()
			updated = g
			return rows, nil
		}
		return nil, ErrNotFound
	}, Schema)
	if err != nil {
		return Guest{}, err
	}
	return updated, nil
}

// Clear empties the table, leaving only the header. The previous contents
// are kept as a snapshot.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.store.WriteAll(ctx, []table.Row{}, Schema); err != nil {
		return fmt.Errorf("clearing guests: %w", err)
	}
	r.logger.Warn("guest table cleared", "category", "admin")
	return nil
}

func (r *Repository) newGuest(id string, in Input) Guest {
	return Guest{
		ID:          id,
		Name:        in.Name,
		Email:       in.Email,
		Institution: in.Institution,
		Phone:       in.Phone,
		Fields:      in.Fields,
		CreatedAt:   r.timestamp(),
	}
}

func (r *Repository) timestamp() string {
	return r.clock.Now().Format(time.RFC3339)
}

func (r *Repository) uniqueID(taken map[string]struct{}) (string, error) {
	for range 16 {
		id, err := r.newID()
		if err != nil {
			return "", err
		}
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			return id, nil
		}
	}
	return "", errors.New("guest: could not allocate a unique id")
}

func randomID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating guest id: %w", err)
	}
	return strings.ReplaceAll(u.String(), "-", "")[:idLength], nil
}
