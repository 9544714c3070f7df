package cache

import (
	"testing"

	"github.com/overlaynet/endpoint/core/packet"
)

func fragPacket(sessionID, idx uint64) *packet.Packet {
	return &packet.Packet{
		SessionID: sessionID,
		Kind:      packet.KindMsgFragment,
		Fragment:  &packet.Fragment{FragmentIndex: idx, TotalFragments: idx + 1},
	}
}

func TestInsertAndTake(t *testing.T) {
	c := New()
	p := fragPacket(1, 0)
	c.Insert(p)

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	got, ok := c.Take(packet.CacheKey{SessionID: 1, FragmentIndex: 0})
	if !ok || got != p {
		t.Errorf("Take() = (%v, %v), want (%v, true)", got, ok, p)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Take = %d, want 0", c.Len())
	}
}

func TestTakeMissIsNonFatal(t *testing.T) {
	c := New()
	if _, ok := c.Take(packet.CacheKey{SessionID: 9, FragmentIndex: 9}); ok {
		t.Error("Take() on an absent key should report a miss, not panic or succeed")
	}
}

func TestDuplicateInsertResetsNackCount(t *testing.T) {
	c := New()
	key := packet.CacheKey{SessionID: 1, FragmentIndex: 0}
	c.Insert(fragPacket(1, 0))

	c.GetAndBump(key)
	c.GetAndBump(key)
	_, count, _ := c.GetAndBump(key)
	if count != 3 {
		t.Fatalf("NackCount before reinsert = %d, want 3", count)
	}

	c.Insert(fragPacket(1, 0))
	_, count, ok := c.GetAndBump(key)
	if !ok || count != 1 {
		t.Errorf("NackCount after duplicate insert = %d, want 1 (reset then bumped once)", count)
	}
}

func TestGetAndBumpMiss(t *testing.T) {
	c := New()
	if _, _, ok := c.GetAndBump(packet.CacheKey{SessionID: 1, FragmentIndex: 1}); ok {
		t.Error("GetAndBump() on an absent key should report a miss")
	}
}
