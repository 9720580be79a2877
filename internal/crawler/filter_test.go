package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterChunks(t *testing.T) {
	t.Parallel()

	relevant := "The PlayStation 5 Pro features a custom AMD GPU delivering " +
		"16.7 teraflops of compute power, paired with a fast SSD and support " +
		"for hardware accelerated ray tracing throughout its game library."

	tests := []struct {
		name  string
		chunk string
		kept  bool
	}{
		{"relevant prose", relevant, true},
		{"too short", "PS5 specs are great.", false},
		{"too long", relevant + strings.Repeat(" More filler about the console hardware.", 30), false},
		{
			"too few words",
			"PlayStationPlayStationPlayStationPlayStationPlayStationPlayStation" +
				"PlayStationPlayStationPlayStation one two three",
			false,
		},
		{
			"mostly links",
			"[PS5](https://a) [PS5](https://b) [PS5](https://c) [PS5](https://d) " +
				"[PS5](https://e) [PS5](https://f) [PS5](https://g) [PS5](https://h) " +
				"[PS5](https://i) [PS5](https://j) [PS5](https://k) [PS5](https://l) " +
				"[PS5](https://m) [PS5](https://n) [PS5](https://o) some words here",
			false,
		},
		{
			"off topic",
			"The weather in Lisbon tends to be mild throughout the year, with " +
				"warm summers, rainy winters, and a pleasant breeze coming off the " +
				"Atlantic coast most afternoons.",
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FilterChunks([]string{tt.chunk})
			if tt.kept {
				require.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFilterChunks_PreservesOrder(t *testing.T) {
	t.Parallel()

	a := "The original PlayStation console shipped with a double speed CD drive " +
		"and introduced millions of players to 3D gaming with its distinctive " +
		"grey hardware design and iconic controller layout."
	b := "Sony's DualSense controller for the PS5 adds adaptive triggers and " +
		"haptic feedback, a built in microphone, and a create button that " +
		"replaces the share button found on earlier hardware."

	got := FilterChunks([]string{a, "short", b})
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])
}
