package pg

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/usersvc/migrations/postgres"
)

func TestParseMigrations_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"sql/README.md":       {Data: []byte("ignored")},
	}
	migs, err := ParseMigrations(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	require.Equal(t, 1, migs[0].Version)
	require.Equal(t, "first", migs[0].Name)
	require.Equal(t, 2, migs[1].Version)
}

func TestParseMigrations_EmbeddedInit(t *testing.T) {
	migs, err := ParseMigrations(migrations.FS, migrations.Dir)
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	require.Equal(t, 1, migs[0].Version)
	require.Contains(t, migs[0].SQL, "CREATE TABLE IF NOT EXISTS app_user")
	require.Contains(t, migs[0].SQL, "refresh_session")
	require.Contains(t, migs[0].SQL, "user_activity")
}
