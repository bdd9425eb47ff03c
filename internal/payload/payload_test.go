package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	raw := []byte("<html><body>Contract notice</body></html>")
	gz, err := Compress(raw)
	require.NoError(t, err)
	require.NotEqual(t, raw, gz)

	back, err := Decompress(gz)
	require.NoError(t, err)
	require.Equal(t, raw, back)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decompress([]byte("not gzip"))
	require.Error(t, err)
}
