package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	migrations, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "0001_role_profiles", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "role_profiles")
	assert.Len(t, migrations[0].Checksum, 64)
}

func TestLoad_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":   {Data: []byte("SELECT 2;")},
		"m/0001_a.sql":   {Data: []byte("SELECT 1;")},
		"m/README.md":    {Data: []byte("notes")},
		"m/0003_c/x.sql": {Data: []byte("nested")},
	}
	migrations, err := load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "0001_a", migrations[0].Version)
	assert.Equal(t, "0002_b", migrations[1].Version)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)

	again, err := load(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := load(fstest.MapFS{}, "nope")
	require.Error(t, err)
}
