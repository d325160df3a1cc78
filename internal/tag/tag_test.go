package tag_test

import (
	"math"
	"testing"

	"github.com/momentics/hioload-bench/internal/tag"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	kinds := []tag.Kind{tag.Accept, tag.Receive, tag.Send, tag.ReturnBuffer}
	ids := []uint32{0, 1, 63, 64, 1023, 1 << 16, math.MaxUint32 - 1, math.MaxUint32}
	for _, k := range kinds {
		for _, id := range ids {
			gk, gid := tag.Decode(tag.Encode(k, id))
			if gk != k || gid != id {
				t.Errorf("round trip (%v, %d) -> (%v, %d)", k, id, gk, gid)
			}
		}
	}
}

func TestEncodeIsInjective(t *testing.T) {
	seen := make(map[uint64]struct{})
	for _, k := range []tag.Kind{tag.Accept, tag.Receive, tag.Send, tag.ReturnBuffer} {
		for id := uint32(0); id < 256; id++ {
			v := tag.Encode(k, id)
			if _, dup := seen[v]; dup {
				t.Fatalf("collision for (%v, %d)", k, id)
			}
			seen[v] = struct{}{}
		}
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []tag.Kind{tag.Accept, tag.Receive, tag.Send, tag.ReturnBuffer} {
		if !k.Valid() {
			t.Errorf("%v should be valid", k)
		}
	}
	if tag.Kind(3).Valid() || tag.Kind(7).Valid() {
		t.Error("unknown kinds reported valid")
	}
	k, _ := tag.Decode(0xdead_0000_0000_0001)
	if k.Valid() {
		t.Errorf("garbage user_data decoded to valid kind %v", k)
	}
}
