package notice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUIDIsDeterministic(t *testing.T) {
	t.Parallel()

	first := UID("uk_cf", "6a1f3c2d-9b8e-4f10-a2c3-1d2e3f4a5b6c")
	second := UID("uk_cf", "6a1f3c2d-9b8e-4f10-a2c3-1d2e3f4a5b6c")

	require.Equal(t, first, second)
	require.Equal(t, "uk_cf:6a1f3c2d-9b8e-4f10-a2c3-1d2e3f4a5b6c", first)
}

func TestUIDSeparatesSources(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, UID("uk_cf", "abc"), UID("ie_et", "abc"))
}
