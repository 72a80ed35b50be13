package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/testutil"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)

	up, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_gateway_bridge.up.sql")
	require.NoError(t, err)
	for _, m := range Models() {
		table := tableName(t, m)
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table, table)
	}
}

func TestMigrateAutoMigratesNonPostgres(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, Migrate(db, zap.NewNop()))
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), tableName(t, m))
	}
	assert.True(t, db.Migrator().HasIndex("payment_methods", "ux_payment_methods_tenant_token"))
}

func tableName(t *testing.T, model any) string {
	t.Helper()
	named, ok := model.(interface{ TableName() string })
	require.True(t, ok)
	return named.TableName()
}
