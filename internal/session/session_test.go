package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/techtrack/internal/database/dbtest"
	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/session"
	"github.com/iliyamo/techtrack/internal/utils"
)

func TestResolveSessionToken(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	techs := repository.NewTechnicianRepo(db)
	tokens := repository.NewTokenRepo(db)

	tech := &model.Technician{Name: "Ana", Email: "ana@example.com", IsActive: true}
	require.NoError(t, techs.Create(ctx, tech, "", 4))

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tok, err := utils.NewSessionToken(now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, tokens.Save(ctx, utils.HashToken(tok.Raw), tech.ID, tok.Exp, now))

	clock := now
	r := &session.Resolver{Tokens: tokens, Technicians: techs, Now: func() time.Time { return clock }}

	got, err := r.Resolve(ctx, tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, tech.ID, got.ID)

	_, err = r.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
	_, err = r.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, session.ErrUnauthenticated)

	clock = now.Add(time.Hour)
	_, err = r.Resolve(ctx, tok.Raw)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestResolveSurveyLink(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	techs := repository.NewTechnicianRepo(db)

	tech := &model.Technician{Name: "Ben", Email: "ben@example.com", IsActive: true}
	gone := &model.Technician{Name: "Cy", Email: "cy@example.com", IsActive: false}
	require.NoError(t, techs.Create(ctx, tech, "", 4))
	require.NoError(t, techs.Create(ctx, gone, "", 4))

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := &session.LinkResolver{Secret: "s3cret", Technicians: techs, Now: func() time.Time { return now }}

	link, err := utils.NewSurveyLink("s3cret", tech.ID, 1, now, time.Hour)
	require.NoError(t, err)
	got, err := r.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, tech.ID, got.ID)

	other, err := utils.NewSurveyLink("other", tech.ID, 1, now, time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, other.Token)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)

	inactive, err := utils.NewSurveyLink("s3cret", gone.ID, 1, now, time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, inactive.Token)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}
