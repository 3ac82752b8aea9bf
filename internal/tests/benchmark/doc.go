// Package benchmark measures the hot paths of respkv: key space reads and
// writes, RESP decoding and encoding, command dispatch, and snapshot
// persistence (RDB, sealed RDB, Badger).
//
// Store benchmarks run at several key space sizes (see KeyCounts) and
// report heap usage per key.
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark/
//	go test -run=^$ -bench=BenchmarkStore -benchtime=5s ./internal/tests/benchmark/
//
// Use benchstat over repeated runs (-count=5) to compare changes.
package benchmark
