package apexlog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// ErrMalformedTimestamp is returned when a token is not HH:MM:SS.fraction [(N)]
var ErrMalformedTimestamp = errors.New("malformed timestamp")

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute

	// the parenthesized counter is in nanoseconds
	nanosPerMs = 1e6

	maxFractionDigits = 9
)

// ParseTimestamp parses an Apex log timestamp token
// Format: 12:34:56.789 (1234567)
// The counter in parentheses is optional; when present it is converted to
// milliseconds and added to the clock time.
func ParseTimestamp(token string) (domain.Instant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("%w: empty token", ErrMalformedTimestamp)
	}

	clock := token
	counter := ""
	if open := strings.IndexByte(token, '('); open != -1 {
		if !strings.HasSuffix(token, ")") {
			return 0, fmt.Errorf("%w: unterminated counter in %q", ErrMalformedTimestamp, token)
		}
		clock = strings.TrimSpace(token[:open])
		counter = strings.TrimSpace(token[open+1 : len(token)-1])
		if !isDigits(counter) {
			return 0, fmt.Errorf("%w: invalid counter in %q", ErrMalformedTimestamp, token)
		}
	}

	// Clock: HH:MM:SS.fraction
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: invalid clock %q", ErrMalformedTimestamp, clock)
	}

	hours, err := parseBounded(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hours: %v", ErrMalformedTimestamp, err)
	}
	minutes, err := parseBounded(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid minutes: %v", ErrMalformedTimestamp, err)
	}

	secStr, fracStr, hasFrac := strings.Cut(parts[2], ".")
	seconds, err := parseBounded(secStr, 59)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid seconds: %v", ErrMalformedTimestamp, err)
	}

	var fraction float64
	if hasFrac {
		if !isDigits(fracStr) || len(fracStr) > maxFractionDigits {
			return 0, fmt.Errorf("%w: invalid fraction %q", ErrMalformedTimestamp, fracStr)
		}
		f, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid fraction: %v", ErrMalformedTimestamp, err)
		}
		fraction = float64(f*msPerSecond) / math.Pow10(len(fracStr))
	}

	base := float64(hours*msPerHour+minutes*msPerMinute+seconds*msPerSecond) + fraction

	if counter != "" {
		n, err := strconv.ParseInt(counter, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid counter: %v", ErrMalformedTimestamp, err)
		}
		base += float64(n) / nanosPerMs
	}

	return domain.Instant(base), nil
}

// parseBounded parses a non-negative decimal not greater than max
func parseBounded(s string, max int) (int, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
