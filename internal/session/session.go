// Package session turns bearer tokens and survey links into the
// technician they belong to.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/utils"
)

// ErrUnauthenticated covers missing, unknown, expired and inactive
// credentials alike.
var ErrUnauthenticated = errors.New("unauthenticated")

type TokenLookup interface {
	Lookup(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
}

type TechnicianLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Technician, error)
}

// Resolver resolves opaque session tokens.
type Resolver struct {
	Tokens      TokenLookup
	Technicians TechnicianLookup
	Now         func() time.Time
}

func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Technician, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	id, err := r.Tokens.Lookup(ctx, utils.HashToken(raw), now(r.Now))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return active(ctx, r.Technicians, id)
}

// LinkResolver resolves signed survey links.
type LinkResolver struct {
	Secret      string
	Technicians TechnicianLookup
	Now         func() time.Time
}

func (r *LinkResolver) Resolve(ctx context.Context, token string) (*model.Technician, error) {
	id, err := utils.ParseSurveyLink(r.Secret, strings.TrimSpace(token), now(r.Now))
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return active(ctx, r.Technicians, id)
}

func active(ctx context.Context, techs TechnicianLookup, id uint64) (*model.Technician, error) {
	t, err := techs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrUnauthenticated
	}
	return t, nil
}

func now(f func() time.Time) time.Time {
	if f != nil {
		return f().UTC()
	}
	return time.Now().UTC()
}
