package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "properties",
		Columns:      []string{"apn", "county"},
		ConflictKeys: []string{"apn", "county"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_RequiresColumnsAndKeys(t *testing.T) {
	rows := [][]any{{"1", "Spokane"}}

	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "properties",
		ConflictKeys: []string{"apn"},
	}, rows)
	assert.Error(t, err)

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "properties",
		Columns: []string{"apn"},
	}, rows)
	assert.Error(t, err)
}

func TestBulkUpsert_DoUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_properties"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_properties"}, []string{"apn", "county", "owner_name"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "properties" .+ ON CONFLICT \("apn", "county"\) DO UPDATE SET "owner_name" = EXCLUDED\."owner_name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{
		{"1234567890", "Spokane", "A Owner"},
		{"1234567891", "Spokane", "B Owner"},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "properties",
		Columns:      []string{"apn", "county", "owner_name"},
		ConflictKeys: []string{"apn", "county"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_DoNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_distress_events"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_distress_events"}, []string{"fingerprint", "event_type"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "distress_events" .+ ON CONFLICT \("fingerprint"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "distress_events",
		Columns:      []string{"fingerprint", "event_type"},
		ConflictKeys: []string{"fingerprint"},
		DoNothing:    true,
	}, [][]any{{"abc", "tax_lien"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "duplicate rows are skipped, not errors")
	assert.NoError(t, mock.ExpectationsWereMet())
}
