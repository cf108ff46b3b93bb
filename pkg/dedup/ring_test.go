package dedup

import (
	"fmt"
	"testing"
)

func TestRing_Eviction(t *testing.T) {
	r := New(0)
	for i := 1; i <= DefaultCapacity+1; i++ {
		r.Record(fmt.Sprintf("id-%d", i))
	}
	if r.Seen("id-1") {
		t.Fatalf("oldest id must be evicted after capacity+1 inserts")
	}
	for i := 2; i <= DefaultCapacity+1; i++ {
		if !r.Seen(fmt.Sprintf("id-%d", i)) {
			t.Fatalf("id-%d must still be tracked", i)
		}
	}
	if r.Len() != DefaultCapacity {
		t.Fatalf("unexpected len %d", r.Len())
	}
}

func TestRing_CheckAndRecordIdempotent(t *testing.T) {
	r := New(16)
	dispatched := 0
	for round := 0; round < 2; round++ {
		for i := 0; i < 10; i++ {
			if !r.CheckAndRecord(fmt.Sprintf("m%d", i)) {
				dispatched++
			}
		}
	}
	if dispatched != 10 {
		t.Fatalf("each id must dispatch exactly once, got %d", dispatched)
	}
}

func TestRing_DuplicateRecordKeepsSlot(t *testing.T) {
	r := New(2)
	r.Record("a")
	r.Record("a")
	r.Record("b")
	if !r.Seen("a") || !r.Seen("b") {
		t.Fatalf("re-recording must not consume a slot")
	}
}

func TestRing_Reset(t *testing.T) {
	r := New(4)
	r.Record("a")
	r.Reset()
	if r.Seen("a") || r.Len() != 0 {
		t.Fatalf("reset must forget every id")
	}
}
