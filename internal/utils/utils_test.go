package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "other"))
	assert.False(t, VerifyPassword("", ""))

	_, err = HashPassword("", 4)
	assert.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	assert.ErrorIs(t, CheckPassword("short"), ErrWeakPassword)
	assert.NoError(t, CheckPassword("long enough"))
	assert.ErrorIs(t, CheckPassword("ÄÖÜäöü"), ErrWeakPassword, "counts runes, not bytes")
}

func TestNewSessionToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok, err := NewSessionToken(now, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, tok.Raw, 96)
	assert.True(t, tok.Exp.Equal(now.Add(24*time.Hour)))

	other, err := NewSessionToken(now, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Raw, other.Raw)
}

func TestHashTokenIsStableHex(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}

func TestSurveyLink(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	link, err := NewSurveyLink("secret", 42, 7, now, time.Hour)
	require.NoError(t, err)

	id, err := ParseSurveyLink("secret", link.Token, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = ParseSurveyLink("secret", link.Token, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidSurveyLink)

	_, err = ParseSurveyLink("other-secret", link.Token, now)
	assert.ErrorIs(t, err, ErrInvalidSurveyLink)

	_, err = ParseSurveyLink("secret", "not-a-token", now)
	assert.ErrorIs(t, err, ErrInvalidSurveyLink)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("jane.doe@example.com"))
	assert.True(t, ValidEmail(" tech-1@dc.example.org "))
	assert.False(t, ValidEmail("jane"))
	assert.False(t, ValidEmail("jane@example"))
	assert.False(t, ValidEmail("jane doe@example.com"))
	assert.Equal(t, "jane@example.com", NormalizeEmail(" Jane@Example.COM "))
}
