package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/crawld/internal/crawl"
)

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawl.Record{
		ID:          "uuid-v7",
		URL:         "https://example.com",
		ContentHash: "abc123",
		Status:      crawl.StatusAccepted,
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(rec.ID, rec.URL, rec.ContentHash, string(rec.Status), "", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	out, created, err := store.Create(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, rec.ID, out.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConflictFetchesExisting(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawl.Record{
		ID:          "loser",
		URL:         "https://example.com",
		ContentHash: "abc123",
		Status:      crawl.StatusAccepted,
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(rec.ID, rec.URL, rec.ContentHash, string(rec.Status), "", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, url, content_hash, status, artifact_ref, task_id, created_at, updated_at").
		WithArgs(rec.ContentHash).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "content_hash", "status", "artifact_ref", "task_id", "created_at", "updated_at",
		}).AddRow("winner", rec.URL, rec.ContentHash, "Accepted", "", "", now, now))

	out, created, err := store.Create(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "winner", out.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, url, content_hash, status, artifact_ref, task_id, created_at, updated_at").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "content_hash", "status", "artifact_ref", "task_id", "created_at", "updated_at",
		}))

	_, err = store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusClearsArtifactRefForNonComplete(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawls SET status").
		WithArgs("crawl-1", "Running", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateStatus(context.Background(), "crawl-1", crawl.StatusRunning, "leftover-ref")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusCompleteKeepsArtifactRef(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawls SET status").
		WithArgs("crawl-1", "Complete", "path://abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateStatus(context.Background(), "crawl-1", crawl.StatusComplete, "path://abc")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawls SET status").
		WithArgs("missing", "Error", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateStatus(context.Background(), "missing", crawl.StatusError, "")
	require.ErrorIs(t, err, crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "bad;table")
	require.Error(t, err)

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "crawls", store.table)
}
