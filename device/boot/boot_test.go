package boot_test

import (
	"bytes"
	"testing"

	"github.com/mynewt-forge/flashboot/artifact/crc"
	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/artifact/metadata"
	"github.com/mynewt-forge/flashboot/device/boot"
	"github.com/mynewt-forge/flashboot/device/flash"
)

func buildImageTest(t *testing.T, rec metadata.Record, slot1 []byte) []byte {
	img := bytes.Repeat([]byte{0xff}, layout.TotalFlashSize)

	enc, err := metadata.Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}
	copy(img[layout.MetadataAAddr:], enc)
	copy(img[layout.MetadataBAddr:], enc)
	copy(img[layout.Slot1Addr:], slot1)

	return img
}

func recordForTest(version uint32, preferred uint8, slot1 []byte) metadata.Record {
	return metadata.Record{
		Version:       version,
		PreferredSlot: preferred,
		SlotLengths:   [3]uint32{uint32(len(slot1)), 0, 0},
		SlotCRCs:      [3]uint32{crc.Checksum(slot1), 0, 0},
	}
}

func TestRunHappyPathStagesSlot(t *testing.T) {
	slot1 := []byte{0x01, 0x02, 0x03}
	rec := recordForTest(7, 1, slot1)
	img := buildImageTest(t, rec, slot1)

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Outcome != boot.Booted {
		t.Fatalf("expected Booted, got %v", result.Outcome)
	}
	if result.StagedLength != 3 {
		t.Fatalf("expected staged length 3, got %d", result.StagedLength)
	}
	if !bytes.Equal(ram[:3], slot1) {
		t.Fatalf("RAM does not contain staged slot bytes: %x", ram[:3])
	}
	if result.Repaired != nil {
		t.Fatalf("expected no repair on an already-consistent image")
	}
}

func TestRunBrokenCopyARepairs(t *testing.T) {
	slot1 := []byte{0x01, 0x02, 0x03}
	rec := recordForTest(7, 1, slot1)
	img := buildImageTest(t, rec, slot1)

	for i := layout.MetadataAAddr; i < layout.MetadataAAddr+0x11; i++ {
		img[i] = 0xff
	}

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Outcome != boot.Booted {
		t.Fatalf("expected Booted, got %v", result.Outcome)
	}
	if result.Selected != boot.CopyB {
		t.Fatalf("expected copy B selected, got %v", result.Selected)
	}
	if result.Repaired == nil || *result.Repaired != boot.CopyA {
		t.Fatalf("expected copy A to be repaired, got %v", result.Repaired)
	}

	enc, err := metadata.Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}
	repaired := sim.Bytes()[layout.MetadataAAddr : layout.MetadataAAddr+len(enc)]
	if !bytes.Equal(repaired, enc) {
		t.Fatalf("repaired copy A does not match chosen serialization")
	}
}

func TestRunBrokenCopyBRepairs(t *testing.T) {
	slot1 := []byte{0xaa, 0xbb}
	rec := recordForTest(3, 1, slot1)
	img := buildImageTest(t, rec, slot1)

	for i := layout.MetadataBAddr; i < layout.MetadataBAddr+5; i++ {
		img[i] = 0xff
	}

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Selected != boot.CopyA {
		t.Fatalf("expected copy A selected, got %v", result.Selected)
	}
	if result.Repaired == nil || *result.Repaired != boot.CopyB {
		t.Fatalf("expected copy B to be repaired, got %v", result.Repaired)
	}
}

func TestRunBothCopiesBrokenFails(t *testing.T) {
	slot1 := []byte{0x01}
	rec := recordForTest(1, 1, slot1)
	img := buildImageTest(t, rec, slot1)

	for i := layout.MetadataAAddr; i < layout.MetadataAAddr+16000; i++ {
		img[i] = 0xff
	}

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Outcome != boot.Failed {
		t.Fatalf("expected Failed outcome, got %v", result.Outcome)
	}
}

func TestRunVersionTieBreakPrefersA(t *testing.T) {
	slot1 := []byte{0x01, 0x02}
	recA := recordForTest(4, 1, slot1)
	recB := recordForTest(4, 2, slot1)
	recB.SlotLengths[1] = uint32(len(slot1))
	recB.SlotCRCs[1] = crc.Checksum(slot1)

	img := bytes.Repeat([]byte{0xff}, layout.TotalFlashSize)
	encA, err := metadata.Encode(recA)
	if err != nil {
		t.Fatalf("Encode A failed: %s", err.Error())
	}
	encB, err := metadata.Encode(recB)
	if err != nil {
		t.Fatalf("Encode B failed: %s", err.Error())
	}
	copy(img[layout.MetadataAAddr:], encA)
	copy(img[layout.MetadataBAddr:], encB)
	copy(img[layout.Slot1Addr:], slot1)
	copy(img[layout.Slot2Addr:], slot1)

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Selected != boot.CopyA {
		t.Fatalf("expected tie-break to select copy A, got %v", result.Selected)
	}
	if result.Repaired == nil || *result.Repaired != boot.CopyB {
		t.Fatalf("expected copy B to be repaired to match A, got %v", result.Repaired)
	}
}

func TestRunSelectsHigherVersion(t *testing.T) {
	slot1 := []byte{0x05}
	recA := recordForTest(1, 1, slot1)
	recB := recordForTest(2, 1, slot1)

	img := bytes.Repeat([]byte{0xff}, layout.TotalFlashSize)
	encA, err := metadata.Encode(recA)
	if err != nil {
		t.Fatalf("Encode A failed: %s", err.Error())
	}
	encB, err := metadata.Encode(recB)
	if err != nil {
		t.Fatalf("Encode B failed: %s", err.Error())
	}
	copy(img[layout.MetadataAAddr:], encA)
	copy(img[layout.MetadataBAddr:], encB)
	copy(img[layout.Slot1Addr:], slot1)

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}
	if result.Selected != boot.CopyB {
		t.Fatalf("expected higher version copy B selected, got %v", result.Selected)
	}
}

func TestRunRepairIsIdempotent(t *testing.T) {
	slot1 := []byte{0x01, 0x02, 0x03}
	rec := recordForTest(7, 1, slot1)
	img := buildImageTest(t, rec, slot1)

	for i := layout.MetadataAAddr; i < layout.MetadataAAddr+0x11; i++ {
		img[i] = 0xff
	}

	sim := flash.NewSim(img, layout.SingleBank)
	ram := make([]byte, layout.SlotSizeBytes())

	if _, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram}); err != nil {
		t.Fatalf("first Run failed: %s", err.Error())
	}
	afterFirst := append([]byte(nil), sim.Bytes()...)

	result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
	if err != nil {
		t.Fatalf("second Run failed: %s", err.Error())
	}
	if result.Repaired != nil {
		t.Fatalf("expected no repair on second run, got %v", result.Repaired)
	}
	if !bytes.Equal(afterFirst, sim.Bytes()) {
		t.Fatalf("flash contents changed between first and second run")
	}
}

// recordingFlash wraps a Sim and records every address range touched by
// Program/ErasePage, so P7 (no slot writes) can be checked directly.
type recordingFlash struct {
	*flash.Sim
	writes [][2]uint32
}

func (r *recordingFlash) ErasePage(pageAddr uint32) error {
	r.writes = append(r.writes, [2]uint32{pageAddr, r.PageSize()})
	return r.Sim.ErasePage(pageAddr)
}

func (r *recordingFlash) Program(addr uint32, data []byte) error {
	r.writes = append(r.writes, [2]uint32{addr, uint32(len(data))})
	return r.Sim.Program(addr, data)
}

func TestRunNeverWritesSlotRegions(t *testing.T) {
	slot1 := []byte{0x01, 0x02, 0x03}
	rec := recordForTest(7, 1, slot1)
	img := buildImageTest(t, rec, slot1)
	for i := layout.MetadataAAddr; i < layout.MetadataAAddr+0x11; i++ {
		img[i] = 0xff
	}

	rf := &recordingFlash{Sim: flash.NewSim(img, layout.SingleBank)}
	ram := make([]byte, layout.SlotSizeBytes())

	if _, err := boot.Run(rf, boot.Options{RAMBase: layout.RAMBase, RAM: ram}); err != nil {
		t.Fatalf("Run failed: %s", err.Error())
	}

	for _, w := range rf.writes {
		addr, length := w[0], w[1]
		if addr+length > layout.Slot1Addr {
			t.Fatalf("boot logic wrote into slot region: addr=0x%x len=%d", addr, length)
		}
	}
}
