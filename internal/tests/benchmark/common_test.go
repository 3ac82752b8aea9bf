package benchmark

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// KeyCounts defines the key space sizes for benchmarking.
var KeyCounts = []int{10000, 100000, 500000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

// ValueSize is the payload size of generated values.
const ValueSize = 128

// newKey generates a session-style key.
func newKey() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return "session:" + strings.ToLower(id.String())
}

func newValue() []byte {
	v := make([]byte, ValueSize)
	rand.Read(v)
	return v
}

// prefillStore fills store with count keys; every fourth key expires in
// an hour. It returns the keys.
func prefillStore(store *memory.Store, count int) []string {
	keys := make([]string, count)
	expireAt := time.Now().Add(time.Hour)
	for i := range keys {
		keys[i] = newKey()
		var at time.Time
		if i%4 == 0 {
			at = expireAt
		}
		store.Set(keys[i], newValue(), at)
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various key space sizes.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
