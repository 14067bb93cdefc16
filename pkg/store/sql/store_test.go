package sql_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/store"
	sqlstore "github.com/marmos91/imgloader/pkg/store/sql"
	"github.com/marmos91/imgloader/pkg/store/storetest"
)

func newSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.New(sqlstore.Config{
		Type:   sqlstore.DatabaseTypeSQLite,
		SQLite: sqlstore.SQLiteConfig{Path: filepath.Join(t.TempDir(), "db", "images.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		return newSQLite(t)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     sqlstore.Config
		wantErr string
	}{
		{"sqlite without path", sqlstore.Config{Type: sqlstore.DatabaseTypeSQLite}, "sqlite path"},
		{"postgres without host", sqlstore.Config{Type: sqlstore.DatabaseTypePostgres}, "postgres host"},
		{"unknown type", sqlstore.Config{Type: "oracle"}, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDefaultsAndDSN(t *testing.T) {
	cfg := sqlstore.Config{
		Type:     sqlstore.DatabaseTypePostgres,
		Postgres: sqlstore.PostgresConfig{Host: "db", Database: "images", User: "u", Password: "p"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=images sslmode=disable", cfg.Postgres.DSN())
}
