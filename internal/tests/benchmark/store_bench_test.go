package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

func BenchmarkStoreGet(b *testing.B) {
	runWithKeyCounts(b, KeyCounts, func(b *testing.B, count int) {
		store := memory.New()
		keys := prefillStore(store, count)

		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				store.Get(keys[i%len(keys)])
				i++
			}
		})
	})
}

func BenchmarkStoreSet(b *testing.B) {
	store := memory.New()
	value := newValue()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			store.Set(fmt.Sprintf("key:%d", i%100000), value, time.Time{})
			i++
		}
	})
}

func BenchmarkStoreMixed(b *testing.B) {
	store := memory.New()
	keys := prefillStore(store, 100000)
	value := newValue()

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := keys[i%len(keys)]
			if i%10 == 0 {
				store.Set(key, value, time.Time{})
			} else {
				store.Get(key)
			}
			i++
		}
	})
}

func BenchmarkSweep(b *testing.B) {
	runWithKeyCounts(b, SmallKeyCounts, func(b *testing.B, count int) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			b.StopTimer()
			store := memory.New()
			past := store.Now().Add(-time.Second)
			for j := 0; j < count; j++ {
				store.Set(fmt.Sprintf("k%d", j), nil, past)
			}
			b.StartTimer()

			for store.SweepExpired(1000) > 0 {
			}
		}
	})
}

func BenchmarkSnapshot(b *testing.B) {
	runWithKeyCounts(b, KeyCounts, func(b *testing.B, count int) {
		store := memory.New()
		prefillStore(store, count)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			store.Snapshot()
		}
		b.StopTimer()
		reportMemory(b, "mem")
	})
}
