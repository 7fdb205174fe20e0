package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	core "boatsync/storage/database"
	"boatsync/storage/database/basic"
)

func openMemory(t *testing.T) *basic.DB {
	t.Helper()
	db, err := basic.New(core.DBConfig{Database: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ExecScript(context.Background(), `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`))
	return db
}

func count(t *testing.T, db core.IDatabase) int {
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT COUNT(*) FROM kv`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openMemory(t)
	err := core.WithTx(context.Background(), db, func(tx core.ITransaction) error {
		_, err := tx.Exec(context.Background(), `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openMemory(t)
	boom := errors.New("boom")
	err := core.WithTx(context.Background(), db, func(tx core.ITransaction) error {
		if _, err := tx.Exec(context.Background(), `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestTx_RejectsNestedTransactions(t *testing.T) {
	db := openMemory(t)
	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Begin(context.Background())
	assert.Error(t, err)
}

func TestSelectBuilder(t *testing.T) {
	query, args := basic.NewSelect().
		Select("id", "name").
		From("boats").
		Where("boat_type_id = ?", "kayak").
		Where("").
		OrderBy("name", true).
		Limit(5).
		Build()

	assert.Equal(t, "SELECT id, name FROM boats WHERE boat_type_id = ? ORDER BY name DESC LIMIT 5", query)
	assert.Equal(t, []interface{}{"kayak"}, args)

	query, args = basic.NewSelect().From("boats").Build()
	assert.Equal(t, "SELECT * FROM boats", query)
	assert.Empty(t, args)
}
