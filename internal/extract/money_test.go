package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMoneyKeepsTextAndDerivesMax(t *testing.T) {
	t.Parallel()

	got := ParseMoney("£1,234.50 (estimated)")
	require.NotNil(t, got.Text)
	require.Equal(t, "£1,234.50", *got.Text)
	require.Nil(t, got.Min)
	require.NotNil(t, got.Max)
	require.InDelta(t, 1234.50, *got.Max, 0.001)
}

func TestParseMoneyStripsThousandsSeparators(t *testing.T) {
	t.Parallel()

	got := ParseMoney("Contract value (exclusive of VAT): £2,500,000")
	require.NotNil(t, got.Max)
	require.InDelta(t, 2500000, *got.Max, 0.001)
}

func TestParseMoneyNoCurrencyToken(t *testing.T) {
	t.Parallel()

	got := ParseMoney("price on application")
	require.Nil(t, got.Text)
	require.Nil(t, got.Min)
	require.Nil(t, got.Max)
}

func TestParseMoneyCollapsesInternalWhitespace(t *testing.T) {
	t.Parallel()

	got := ParseMoney("£ 10 000")
	require.NotNil(t, got.Text)
	require.Equal(t, "£ 10 000", *got.Text)
	require.NotNil(t, got.Max)
	require.InDelta(t, 10000, *got.Max, 0.001)
}
