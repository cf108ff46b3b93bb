//go:build bench
// +build bench

package frame

import (
	"strings"
	"testing"
)

// BenchmarkEncodePooled_Parallel measures EncodePooled performance under parallel load.
// Ensure ReleaseEncoded is called to avoid pool exhaustion during benchmarks.
func BenchmarkEncodePooled_Parallel(b *testing.B) {
	text := strings.Repeat("x", 1500)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := EncodePooled(text)
			if err != nil {
				b.Fatalf("EncodePooled failed: %v", err)
			}
			ReleaseEncoded(buf) // Must release pooled buffer after use
		}
	})
}
