package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivemem "github.com/contractwatch/noticecrawler/internal/archive/memory"
	"github.com/contractwatch/noticecrawler/internal/notice"
	"github.com/contractwatch/noticecrawler/internal/payload"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "id-" + string(rune('a'+s.n-1)), nil
}

type fixedHasher struct{}

func (fixedHasher) Hash([]byte) (string, error) { return "hash", nil }

type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestArchive() *archivemem.Archive {
	return archivemem.New(&seqIDs{}, fixedHasher{}, &tickingClock{t: time.Unix(1700000000, 0).UTC()})
}

func TestFetchAndArchiveStoresBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><h1>Road resurfacing</h1></html>"))
	}))
	defer srv.Close()

	archive := newTestArchive()
	f, err := New(Config{UserAgent: "noticecrawler-test", Timeout: 5 * time.Second}, archive, zap.NewNop())
	require.NoError(t, err)

	res, err := f.FetchAndArchive(context.Background(), notice.KindDetail, "uk_cf", "abc", srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), "Road resurfacing")
	require.NotEmpty(t, res.ArchiveID)

	doc, err := archive.GetLatest(context.Background(), "uk_cf", "abc", notice.KindDetail)
	require.NoError(t, err)
	require.Equal(t, res.ArchiveID, doc.ArchiveID)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", doc.MIME)

	raw, err := payload.Decompress(doc.PayloadGZ)
	require.NoError(t, err)
	require.Equal(t, res.Body, raw)
}

func TestFetchAndArchiveKeepsErrorResponses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>gone</html>"))
	}))
	defer srv.Close()

	archive := newTestArchive()
	f, err := New(Config{Timeout: 5 * time.Second}, archive, zap.NewNop())
	require.NoError(t, err)

	res, err := f.FetchAndArchive(context.Background(), notice.KindDetail, "uk_cf", "missing", srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	doc, err := archive.GetLatest(context.Background(), "uk_cf", "missing", notice.KindDetail)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, doc.StatusCode)
	raw, err := payload.Decompress(doc.PayloadGZ)
	require.NoError(t, err)
	require.Contains(t, string(raw), "gone")
}

func TestFetchAndArchiveTransportError(t *testing.T) {
	t.Parallel()

	archive := newTestArchive()
	f, err := New(Config{Timeout: time.Second}, archive, zap.NewNop())
	require.NoError(t, err)

	_, err = f.FetchAndArchive(context.Background(), notice.KindDetail, "uk_cf", "x", "http://127.0.0.1:1")
	require.Error(t, err)

	_, err = archive.GetLatest(context.Background(), "uk_cf", "x", notice.KindDetail)
	require.ErrorIs(t, err, notice.ErrNotFound)
}

func TestNewRequiresArchive(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, zap.NewNop())
	require.Error(t, err)
}
