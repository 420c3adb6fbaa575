package layout_test

import (
	"testing"

	"github.com/mynewt-forge/flashboot/artifact/layout"
)

func TestRegionsDoNotOverlap(t *testing.T) {
	if bad := layout.Overlaps(); len(bad) != 0 {
		t.Fatalf("found overlapping regions: %+v", bad)
	}
}

func TestSlotAddr(t *testing.T) {
	cases := []struct {
		slot int
		want uint32
	}{
		{1, layout.Slot1Addr},
		{2, layout.Slot2Addr},
		{3, layout.Slot3Addr},
	}
	for _, c := range cases {
		got, err := layout.SlotAddr(c.slot)
		if err != nil {
			t.Fatalf("SlotAddr(%d) failed: %s", c.slot, err.Error())
		}
		if got != c.want {
			t.Fatalf("SlotAddr(%d) = 0x%x, want 0x%x", c.slot, got, c.want)
		}
	}

	if _, err := layout.SlotAddr(4); err == nil {
		t.Fatalf("expected error for invalid slot number")
	}
}

func TestMetadataAddr(t *testing.T) {
	a, err := layout.MetadataAddr('A')
	if err != nil || a != layout.MetadataAAddr {
		t.Fatalf("MetadataAddr('A') = %x, %v", a, err)
	}
	b, err := layout.MetadataAddr('B')
	if err != nil || b != layout.MetadataBAddr {
		t.Fatalf("MetadataAddr('B') = %x, %v", b, err)
	}
	if _, err := layout.MetadataAddr('C'); err == nil {
		t.Fatalf("expected error for invalid metadata copy")
	}
}

func TestPageSize(t *testing.T) {
	if layout.PageSize(layout.SingleBank) != 0x2000 {
		t.Fatalf("unexpected single-bank page size")
	}
	if layout.PageSize(layout.DualBank) != 0x1000 {
		t.Fatalf("unexpected dual-bank page size")
	}
}

func TestMetadataPagesDoNotOverlapBootloaderOrSlots(t *testing.T) {
	if layout.MetadataAAddr < layout.BootloaderMaxSize {
		t.Fatalf("metadata copy A overlaps the bootloader region")
	}
	if layout.Slot1Addr < layout.MetadataBAddr+layout.PageSize(layout.SingleBank) {
		t.Fatalf("slot 1 overlaps metadata copy B's page")
	}
}
