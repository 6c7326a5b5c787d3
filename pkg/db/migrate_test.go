package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsCarryGooseDirectives(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.HasPrefix(text, "-- +goose Up"), name)
		assert.Contains(t, text, "-- +goose Down", name)
	}
}
