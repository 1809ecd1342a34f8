package persistence

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/allerhed/rythm/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{StartedAt: time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC), ID: "9b2b5a8e-3c1d-4f5e-8a6b-7c8d9e0f1a2b"}
	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.StartedAt.Equal(out.StartedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestDecodeCursorBlank(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|9b2b5a8e-3c1d-4f5e-8a6b-7c8d9e0f1a2b")),
		base64.RawURLEncoding.EncodeToString([]byte("2025-03-04T05:06:07Z|not-a-uuid")),
	} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}
