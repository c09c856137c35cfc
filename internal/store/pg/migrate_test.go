package pg

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/tenantgate/migrations/postgres"
)

func TestParseMigrations_Embedded(t *testing.T) {
	m := NewMigrator(migrations.FS, migrations.Dir)
	list, err := m.ParseMigrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 2)
	require.Equal(t, 1, list[0].Version)
	require.Equal(t, "identities", list[0].Name)
	require.Contains(t, list[1].SQL, "tenants_organization_number_key")
}

func TestParseMigrations_OrderAndDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0010_b.sql": {Data: []byte("SELECT 2")},
		"sql/0002_a.sql": {Data: []byte("SELECT 1")},
		"sql/README.md":  {Data: []byte("ignorado")},
	}
	list, err := NewMigrator(fsys, "sql").ParseMigrations()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 2, list[0].Version)
	require.Equal(t, 10, list[1].Version)

	fsys["sql/02_dup.sql"] = &fstest.MapFile{Data: []byte("SELECT 3")}
	_, err = NewMigrator(fsys, "sql").ParseMigrations()
	require.Error(t, err)
}
