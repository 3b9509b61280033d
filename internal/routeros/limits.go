package routeros

import (
	"fmt"
	"strconv"
	"strings"
)

// dataUnits maps the accepted size suffixes to their byte multipliers.
// Binary multiples, matching how the device accounts traffic.
var dataUnits = map[string]int64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseDataLimit converts a human data-limit string such as "500MB" or
// "1.5GB" into bytes. The grammar is <number><unit> with unit one of B, KB,
// MB, GB, TB, case-insensitive; whitespace around and between number and
// unit is tolerated. A bare number carries no unit and is rejected rather
// than guessed at. Fractional values are floored after multiplication.
// Empty input means no limit and parses to 0.
func ParseDataLimit(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}

	upper := strings.ToUpper(trimmed)
	split := len(upper)
	for split > 0 {
		c := upper[split-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		split--
	}
	numPart := strings.TrimSpace(upper[:split])
	unitPart := strings.TrimSpace(upper[split:])

	if numPart == "" {
		return 0, fmt.Errorf("%w: %q has no numeric part", ErrInvalidDataLimit, s)
	}
	if unitPart == "" {
		return 0, fmt.Errorf("%w: %q has no unit (want B, KB, MB, GB or TB)", ErrInvalidDataLimit, s)
	}

	mult, ok := dataUnits[unitPart]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidDataLimit, unitPart, s)
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidDataLimit, numPart)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: negative value in %q", ErrInvalidDataLimit, s)
	}

	return int64(value * float64(mult)), nil
}

// FormatBytes renders a byte count with the largest unit that divides it
// cleanly enough to read. Used in log lines where the raw byte count is
// too noisy.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<40:
		return trimZeros(float64(n)/float64(1<<40)) + "TB"
	case n >= 1<<30:
		return trimZeros(float64(n)/float64(1<<30)) + "GB"
	case n >= 1<<20:
		return trimZeros(float64(n)/float64(1<<20)) + "MB"
	case n >= 1<<10:
		return trimZeros(float64(n)/float64(1<<10)) + "KB"
	default:
		return strconv.FormatInt(n, 10) + "B"
	}
}

func trimZeros(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseDeviceUptime parses the device's compound duration syntax
// ("1w2d3h4m5s", weeks and days included) used in active-session uptime
// fields. Unknown or empty input returns 0 without error; telemetry reads
// should not fail an operation over a display field.
func parseDeviceUptime(s string) int64 {
	var total, cur int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			cur = cur*10 + int64(c-'0')
		case c == 'w':
			total += cur * 7 * 24 * 3600
			cur = 0
		case c == 'd':
			total += cur * 24 * 3600
			cur = 0
		case c == 'h':
			total += cur * 3600
			cur = 0
		case c == 'm':
			total += cur * 60
			cur = 0
		case c == 's':
			total += cur
			cur = 0
		default:
			return 0
		}
	}
	return total
}
