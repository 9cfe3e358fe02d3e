package expiry

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

type InvalidExpirationError struct {
	Input string
	cause error
}

func (e *InvalidExpirationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid expiration %q: %v", e.Input, e.cause)
	}
	return fmt.Sprintf("invalid expiration %q", e.Input)
}

func (e *InvalidExpirationError) Unwrap() error {
	return e.cause
}

var numericPattern = regexp.MustCompile(`^\d+$`)

// Absolute resolves s to a Unix timestamp in seconds. Numeric input is the
// timestamp itself; anything else is parsed as a duration added to now.
func Absolute(s string, now time.Time) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if numericPattern.MatchString(trimmed) {
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, &InvalidExpirationError{Input: s, cause: err}
		}
		return n, nil
	}
	d, err := parseDuration(trimmed)
	if err != nil {
		return 0, &InvalidExpirationError{Input: s, cause: err}
	}
	return now.Add(d).Unix(), nil
}

// Relative resolves s to a second count. Numeric input is the count itself;
// anything else is parsed as a duration and floored to whole seconds.
func Relative(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if numericPattern.MatchString(trimmed) {
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, &InvalidExpirationError{Input: s, cause: err}
		}
		return n, nil
	}
	d, err := parseDuration(trimmed)
	if err != nil {
		return 0, &InvalidExpirationError{Input: s, cause: err}
	}
	return int64(d / time.Second), nil
}

var unitSuffix = map[string]string{
	"w": "w", "week": "w", "weeks": "w", "wk": "w", "wks": "w",
	"d": "d", "day": "d", "days": "d",
	"h": "h", "hr": "h", "hrs": "h", "hour": "h", "hours": "h",
	"m": "m", "min": "m", "mins": "m", "minute": "m", "minutes": "m",
	"s": "s", "sec": "s", "secs": "s", "second": "s", "seconds": "s",
	"ms": "ms", "msec": "ms", "msecs": "ms", "millisecond": "ms", "milliseconds": "ms",
}

var durationToken = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-z]+)\s*`)

// parseDuration accepts both compact ("10h", "2d", "1w2d") and spelled-out
// ("2 days", "1 week") forms by normalizing units before handing off to
// str2duration, which extends time.ParseDuration with day and week units.
func parseDuration(s string) (time.Duration, error) {
	rest := strings.ToLower(s)
	if rest == "" {
		return 0, errors.New("empty duration")
	}
	var compact strings.Builder
	for rest != "" {
		m := durationToken.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("unparseable duration segment %q", rest)
		}
		suffix, ok := unitSuffix[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown duration unit %q", m[2])
		}
		compact.WriteString(m[1])
		compact.WriteString(suffix)
		rest = rest[len(m[0]):]
	}
	d, err := str2duration.ParseDuration(compact.String())
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("negative duration")
	}
	return d, nil
}
