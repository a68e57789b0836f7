package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToMigrateURL(t *testing.T) {
	got, err := convertToMigrateURL("postgres://user:pw@localhost:5432/raggate?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://user:pw@localhost:5432/raggate?sslmode=disable", got)

	got, err = convertToMigrateURL("postgresql://localhost/raggate")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/raggate", got)

	// Already converted URLs pass through.
	got, err = convertToMigrateURL("pgx5://localhost/raggate")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/raggate", got)
}

func TestConvertToMigrateURLRejectsOtherSchemes(t *testing.T) {
	_, err := convertToMigrateURL("mysql://localhost/raggate")
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	// Every up migration needs a matching down migration.
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down)
}
