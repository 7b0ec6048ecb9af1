package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/shortlink?sslmode=disable",
		driverURL("postgres://u:p@db:5432/shortlink?sslmode=disable"))
	assert.Equal(t, "pgx5://db/shortlink", driverURL("postgresql://db/shortlink"))
	assert.Equal(t, "pgx5://db/shortlink", driverURL("pgx5://db/shortlink"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %q", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaHasShortCodeConstraint(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "sql/000001_create_links_and_clicks.up.sql")
	require.NoError(t, err)

	schema := string(raw)
	assert.Contains(t, schema, "UNIQUE (short_code)")
	assert.Contains(t, schema, "REFERENCES links (id)")
	assert.Contains(t, schema, "(link_id, clicked_at DESC, id DESC)")
}
