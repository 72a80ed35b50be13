package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoPeriod = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParsePeriod parses an ISO-8601 duration ("P3D", "PT1H", "P1DT12H") or a Go
// duration string ("36h"). Years count as 365 days and months as 30 days.
// Periods must be positive and fit in a time.Duration.
func ParsePeriod(value string) (time.Duration, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return 0, fmt.Errorf("empty period")
	}
	if !strings.HasPrefix(value, "P") {
		d, err := time.ParseDuration(strings.ToLower(value))
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", value, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("period %q must be positive", value)
		}
		return d, nil
	}

	m := isoPeriod.FindStringSubmatch(value)
	if m == nil || value == "P" || strings.HasSuffix(value, "T") {
		return 0, fmt.Errorf("invalid period %q", value)
	}

	units := []time.Duration{
		365 * 24 * time.Hour,
		30 * 24 * time.Hour,
		7 * 24 * time.Hour,
		24 * time.Hour,
		time.Hour,
		time.Minute,
	}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", value, err)
		}
		if n > int64(math.MaxInt64-total)/int64(unit) {
			return 0, fmt.Errorf("period %q is too long", value)
		}
		total += time.Duration(n) * unit
	}
	if m[7] != "" {
		secs, err := strconv.ParseFloat(m[7], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", value, err)
		}
		if secs*float64(time.Second) >= float64(math.MaxInt64-total) {
			return 0, fmt.Errorf("period %q is too long", value)
		}
		total += time.Duration(secs * float64(time.Second))
	}
	if total <= 0 {
		return 0, fmt.Errorf("period %q must be positive", value)
	}
	return total, nil
}
