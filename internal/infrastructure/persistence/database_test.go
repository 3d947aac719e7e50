package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newMockGormDB opens GORM over sqlmock with the postgres dialect
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		assert.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDialectHelpers(t *testing.T) {
	pg, _, mockDB := newMockGormDB(t)
	defer mockDB.Close()

	lite, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	assert.True(t, isPostgres(pg))
	assert.False(t, isPostgres(lite))
	assert.Equal(t, "to_char(r.received_date, 'YYYY-MM')", monthExpr(pg, "r.received_date"))
	assert.Equal(t, "strftime('%Y-%m', r.received_date)", monthExpr(lite, "r.received_date"))
	assert.Equal(t, `cu.name ILIKE ? ESCAPE '\'`, containsMatch(pg, "cu.name"))
	assert.Equal(t, `cu.name LIKE ? ESCAPE '\'`, containsMatch(lite, "cu.name"))
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"acme", "%acme%"},
		{"100%", `%100\%%`},
		{"A_1", `%A\_1%`},
		{`C:\data`, `%C:\\data%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPattern(tt.in), tt.in)
	}
}
