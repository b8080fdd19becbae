package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favorsweb/internal/domain"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)

	_, err = s.Load(ctx, "token")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, "token", "first"))
	require.NoError(t, s.Save(ctx, "token", "second"))
	require.NoError(t, s.Close())

	// Values survive a reopen.
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Load(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	require.NoError(t, s.Delete(ctx, "token"))
	_, err = s.Load(ctx, "token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
