package migrations

import (
	"io"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_AreSequential(t *testing.T) {
	src, err := iofs.New(files, "sql")
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	var versions []uint
	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d has no up file", v)
		body, err := io.ReadAll(up)
		up.Close()
		require.NoError(t, err)
		assert.NotEmpty(t, body)

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down file", v)
		down.Close()

		next, err := src.Next(v)
		if err != nil {
			assert.ErrorIs(t, err, os.ErrNotExist)
			break
		}
		v = next
	}
	assert.Equal(t, []uint{1, 2}, versions)
}
