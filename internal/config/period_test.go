package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	cases := map[string]time.Duration{
		"P3D":     72 * time.Hour,
		"PT1H":    time.Hour,
		"P1DT12H": 36 * time.Hour,
		"PT90S":   90 * time.Second,
		"P1W":     7 * 24 * time.Hour,
		"pt30m":   30 * time.Minute,
		"36h":     36 * time.Hour,
		"PT0.5S":  500 * time.Millisecond,
	}
	for input, want := range cases {
		got, err := ParsePeriod(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, bad := range []string{"", "P", "PT", "3 days", "P3X", "P0D", "PT0S", "0s", "-5h", "P300Y", "P100000W", "PT9999999999999H"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}
