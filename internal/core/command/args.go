package command

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/respkv-go/internal/core/domain"
)

// parseInt parses a strict base-10 int64.
func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, domain.ErrNotInteger
	}
	return n, nil
}

// expireAfter returns now + n*unit, or false when the result does not fit
// in a time.Time reachable through time.Duration arithmetic.
func expireAfter(now time.Time, n int64, unit time.Duration) (time.Time, bool) {
	if n > math.MaxInt64/int64(unit) || n < math.MinInt64/int64(unit) {
		return time.Time{}, false
	}
	return now.Add(time.Duration(n) * unit), true
}

// equalFold compares an argument with an upper-case keyword.
func equalFold(arg []byte, keyword string) bool {
	return strings.EqualFold(string(arg), keyword)
}

// boolReply converts a bool to the 1/0 integer reply.
func boolReply(ok bool) int64 {
	if ok {
		return 1
	}
	return 0
}
