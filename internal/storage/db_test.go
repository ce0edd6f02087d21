package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/duckdb"
	"github.com/coral-mesh/liveprof/internal/testutil"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

var testProfile = profiledata.Data{
	"main()":            {Count: 1, WallTime: 5000, CPUTime: 4000, Memory: 1024},
	"main()==>handler":  {Count: 3, WallTime: 4800},
	"handler==>db.Exec": {Count: 6, WallTime: 3000},
}

func setupTestDBStorage(t *testing.T, packer codec.Packer) (*DB, *sql.DB) {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewDBWithConn(db, packer, testutil.NewTestLoggerWithOutput(t)), db
}

type detailRow struct {
	id       string
	app      string
	label    string
	perfdata []byte
	codec    string
	checksum string
	ts       time.Time
}

func queryDetails(t *testing.T, db *sql.DB) []detailRow {
	t.Helper()

	rows, err := db.Query(`SELECT id, app, label, perfdata, codec, checksum, timestamp FROM details ORDER BY timestamp`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []detailRow
	for rows.Next() {
		var r detailRow
		require.NoError(t, rows.Scan(&r.id, &r.app, &r.label, &r.perfdata, &r.codec, &r.checksum, &r.ts))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestDB_Save(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	store, db := setupTestDBStorage(t, codec.JSON{})

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, "billing", "/invoices", ts, testProfile))
	require.NoError(t, store.Save(ctx, "billing", "All", ts.Add(time.Minute), testProfile))

	rows := queryDetails(t, db)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.NotEmpty(t, first.id)
	assert.NotEqual(t, first.id, rows[1].id)
	assert.Equal(t, "billing", first.app)
	assert.Equal(t, "/invoices", first.label)
	assert.Equal(t, "json", first.codec)
	assert.Equal(t, Checksum(first.perfdata), first.checksum)
	assert.True(t, ts.Equal(first.ts), "got %v", first.ts)

	data, err := codec.JSON{}.Unpack(first.perfdata)
	require.NoError(t, err)
	assert.Equal(t, testProfile, data)
	assert.Equal(t, "All", rows[1].label)
}

func TestDB_SaveCompressed(t *testing.T) {
	z, err := codec.NewZstd()
	require.NoError(t, err)
	store, db := setupTestDBStorage(t, z)

	require.NoError(t, store.Save(testutil.NewTestContext(t), "app", "label", time.Unix(1700000000, 0), testProfile))

	rows := queryDetails(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "json.zst", rows[0].codec)

	data, err := z.Unpack(rows[0].perfdata)
	require.NoError(t, err)
	assert.Equal(t, testProfile, data)
}

func TestDB_SaveRejectsMalformedData(t *testing.T) {
	store, db := setupTestDBStorage(t, codec.JSON{})
	require.NoError(t, store.CreateTable(testutil.NewTestContext(t)))

	err := store.Save(testutil.NewTestContext(t), "app", "label", time.Now(), nil)
	require.ErrorIs(t, err, profiledata.ErrMalformed)
	assert.Empty(t, queryDetails(t, db))
}

func TestDB_CreateTableIsIdempotent(t *testing.T) {
	store, _ := setupTestDBStorage(t, codec.JSON{})

	require.NoError(t, store.CreateTable(testutil.NewTestContext(t)))
	require.NoError(t, store.CreateTable(testutil.NewTestContext(t)))
}

func TestDB_OpensLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.duckdb")
	store, err := NewDB(duckdb.Scheme+path, codec.JSON{}, testutil.NewTestLoggerWithOutput(t))
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "database must not be opened before first use")

	require.NoError(t, store.Save(testutil.NewTestContext(t), "app", "label", time.Unix(1700000000, 0), testProfile))
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	// Reopening keeps the rows.
	require.NoError(t, store.Save(testutil.NewTestContext(t), "app", "label", time.Unix(1700000060, 0), testProfile))
	require.NotNil(t, store.db)
	assert.Len(t, queryDetails(t, store.db), 2)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestNewDB_InvalidURL(t *testing.T) {
	_, err := NewDB("postgres://localhost/profiles", codec.JSON{}, testutil.NewTestLoggerWithOutput(t))
	require.Error(t, err)
}
