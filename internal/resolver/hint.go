package resolver

import (
	"regexp"
	"strconv"
	"time"
)

// The marketplace embeds its rate-limit back-off as free text, e.g.
// "too many requests, try again in 5 seconds". The pattern match stays
// narrow and isolated here; when the pattern is absent callers fall back to
// their default delay.
var retryHintPattern = regexp.MustCompile(`(?i)try again in (\d+)`)

// maxRetryHintSeconds bounds how long a server hint may stall an attempt.
// A garbled or hostile number in the error text must not park the run.
const maxRetryHintSeconds = 300

// ParseRetryHint extracts a server-supplied wait hint from an error message.
// It returns the server's value plus one second of slack, so a hint of
// "try again in 5" yields 6s. The extra second keeps the next attempt from
// racing the limiter's own clock. Hints beyond maxRetryHintSeconds are
// treated as absent.
func ParseRetryHint(msg string) (time.Duration, bool) {
	m := retryHintPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil || seconds > maxRetryHintSeconds {
		return 0, false
	}
	return time.Duration(seconds+1) * time.Second, true
}
