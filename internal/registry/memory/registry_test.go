package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contractwatch/noticecrawler/internal/notice"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRegistry() *Registry {
	return New("UK", &tickingClock{now: time.Unix(1700000000, 0).UTC()})
}

func strPtr(s string) *string { return &s }

func TestRegisterIfAbsentIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	inserted, err := reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)
	require.False(t, inserted)

	rec, ok := reg.Get("uk_cf", "abc")
	require.True(t, ok)
	require.Equal(t, notice.TypeTender, rec.NoticeType)
	require.NotNil(t, rec.RegionCode)
	require.Equal(t, "UK", *rec.RegionCode)
}

func TestMergeFieldsNeverErasesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	_, err := reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)

	published := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{
		Title:       strPtr("Road resurfacing"),
		BuyerName:   strPtr("Borough Council"),
		PublishedAt: &published,
		CPVCodes:    []string{"45233141"},
	})
	require.NoError(t, err)

	// A later merge with nil fields leaves populated values untouched.
	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{})
	require.NoError(t, err)

	rec, _ := reg.Get("uk_cf", "abc")
	require.Equal(t, "Road resurfacing", *rec.Title)
	require.Equal(t, "Borough Council", *rec.BuyerName)
	require.Equal(t, published, *rec.PublishedAt)
	require.Equal(t, []string{"45233141"}, rec.CPVCodes)
}

func TestMergeFieldsDoesNotOverwritePopulatedFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	_, err := reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)

	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{Title: strPtr("First title")})
	require.NoError(t, err)
	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{Title: strPtr("Second title")})
	require.NoError(t, err)

	rec, _ := reg.Get("uk_cf", "abc")
	require.Equal(t, "First title", *rec.Title)
}

func TestMergeFieldsCorrectsNoticeTypeAndCountry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	_, err := reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)

	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{
		NoticeType:   notice.TypeAward,
		BuyerCountry: strPtr("GB"),
	})
	require.NoError(t, err)

	rec, _ := reg.Get("uk_cf", "abc")
	require.Equal(t, notice.TypeAward, rec.NoticeType)
	require.Equal(t, "GB", *rec.BuyerCountry)
}

func TestMergeFieldsKeepsCPVsWhenNewSetEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	_, err := reg.RegisterIfAbsent(ctx, "uk_cf:abc", "uk_cf", "abc", "u")
	require.NoError(t, err)

	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{CPVCodes: []string{"45233141", "45000000"}})
	require.NoError(t, err)
	_, err = reg.MergeFields(ctx, "uk_cf", "abc", notice.FieldSet{CPVCodes: nil})
	require.NoError(t, err)

	rec, _ := reg.Get("uk_cf", "abc")
	require.Equal(t, []string{"45233141", "45000000"}, rec.CPVCodes)
}

func TestListPendingOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newTestRegistry()

	for _, id := range []string{"one", "two", "three"} {
		_, err := reg.RegisterIfAbsent(ctx, notice.UID("uk_cf", id), "uk_cf", id, "u")
		require.NoError(t, err)
	}
	require.NoError(t, reg.SetLatestArchive(ctx, "uk_cf", "two", "arch-2"))

	pendingDetail, err := reg.ListPending(ctx, "uk_cf", notice.PendingDetail, 10)
	require.NoError(t, err)
	require.Len(t, pendingDetail, 2)
	require.Equal(t, "three", pendingDetail[0].SourceID)
	require.Equal(t, "one", pendingDetail[1].SourceID)

	pendingExtraction, err := reg.ListPending(ctx, "uk_cf", notice.PendingExtraction, 10)
	require.NoError(t, err)
	require.Len(t, pendingExtraction, 1)
	require.Equal(t, "two", pendingExtraction[0].SourceID)
}
