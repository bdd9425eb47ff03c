package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/contractwatch/noticecrawler/internal/hash/sha256"
	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func TestPutInsertsCompressedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	arch, err := NewWithPool(mock, "raw_documents", fixedIDs{id: "arch-1"}, sha256.New(), fixedClock{now: now})
	require.NoError(t, err)

	raw := []byte("<html>notice</html>")
	gz, err := payload.Compress(raw)
	require.NoError(t, err)
	hash, err := sha256.New().Hash(raw)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO raw_documents").
		WithArgs(
			"arch-1",
			"uk_cf",
			"results:p=1",
			"https://example.test/Search/Results?page=1",
			notice.KindListing,
			"text/html",
			200,
			gz,
			hash,
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := arch.Put(context.Background(), "uk_cf", "results:p=1",
		"https://example.test/Search/Results?page=1", notice.KindListing, "text/html", 200, raw)
	require.NoError(t, err)
	require.Equal(t, "arch-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestReturnsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	arch, err := NewWithPool(mock, "raw_documents", fixedIDs{id: "x"}, sha256.New(), fixedClock{now: time.Now()})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT archive_id").
		WithArgs("uk_cf", "abc", notice.KindDetail).
		WillReturnRows(pgxmock.NewRows([]string{
			"archive_id", "source", "source_id", "url", "kind", "mime",
			"status_code", "payload_gz", "content_hash", "fetched_at",
		}))

	_, err = arch.GetLatest(context.Background(), "uk_cf", "abc", notice.KindDetail)
	require.ErrorIs(t, err, notice.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	arch, err := NewWithPool(mock, "raw_documents", fixedIDs{id: "x"}, sha256.New(), fixedClock{now: time.Now()})
	require.NoError(t, err)

	fetched := time.Unix(1700000500, 0).UTC()
	hash := "deadbeef"
	mock.ExpectQuery("SELECT archive_id").
		WithArgs("uk_cf", "abc", notice.KindDetail).
		WillReturnRows(pgxmock.NewRows([]string{
			"archive_id", "source", "source_id", "url", "kind", "mime",
			"status_code", "payload_gz", "content_hash", "fetched_at",
		}).AddRow(
			"arch-9", "uk_cf", "abc", "https://example.test/notice/abc", notice.KindDetail,
			"text/html", 200, []byte{0x1f, 0x8b}, &hash, fetched,
		))

	doc, err := arch.GetLatest(context.Background(), "uk_cf", "abc", notice.KindDetail)
	require.NoError(t, err)
	require.Equal(t, "arch-9", doc.ArchiveID)
	require.Equal(t, fetched, doc.FetchedAt)
	require.NotNil(t, doc.ContentHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestListingsScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	arch, err := NewWithPool(mock, "raw_documents", fixedIDs{id: "x"}, sha256.New(), fixedClock{now: time.Now()})
	require.NoError(t, err)

	fetched := time.Unix(1700000500, 0).UTC()
	hash := "deadbeef"
	mock.ExpectQuery(`SELECT DISTINCT ON \(source_id\)`).
		WithArgs("uk_cf", notice.KindListing, "results:p=%", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"archive_id", "source", "source_id", "url", "kind", "mime",
			"status_code", "payload_gz", "content_hash", "fetched_at",
		}).AddRow(
			"arch-1", "uk_cf", "results:p=1", "https://example.test/Search/Results?page=1",
			notice.KindListing, "text/html", 200, []byte{0x1f, 0x8b}, &hash, fetched,
		).AddRow(
			"arch-2", "uk_cf", "results:p=2", "https://example.test/Search/Results?page=2",
			notice.KindListing, "text/html", 200, []byte{0x1f, 0x8b}, &hash, fetched,
		))

	docs, err := arch.LatestListings(context.Background(), "uk_cf", "results:p=", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "results:p=1", docs[0].SourceID)
	require.Equal(t, "results:p=2", docs[1].SourceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestListingsZeroLimitBindsNull(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	arch, err := NewWithPool(mock, "raw_documents", fixedIDs{id: "x"}, sha256.New(), fixedClock{now: time.Now()})
	require.NoError(t, err)

	// limit <= 0 means every archived page: the query must bind NULL
	// (LIMIT ALL), never a literal 0 which would return no rows.
	fetched := time.Unix(1700000500, 0).UTC()
	hash := "deadbeef"
	mock.ExpectQuery(`SELECT DISTINCT ON \(source_id\)`).
		WithArgs("uk_cf", notice.KindListing, "results:p=%", nil).
		WillReturnRows(pgxmock.NewRows([]string{
			"archive_id", "source", "source_id", "url", "kind", "mime",
			"status_code", "payload_gz", "content_hash", "fetched_at",
		}).AddRow(
			"arch-1", "uk_cf", "results:p=1", "https://example.test/Search/Results?page=1",
			notice.KindListing, "text/html", 200, []byte{0x1f, 0x8b}, &hash, fetched,
		))

	docs, err := arch.LatestListings(context.Background(), "uk_cf", "results:p=", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad; drop", fixedIDs{id: "x"}, sha256.New(), fixedClock{now: time.Now()})
	require.Error(t, err)
}
