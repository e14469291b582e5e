package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"voxelstream/internal/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func awaitLoad(t *testing.T, s *Store) LoadResult {
	t.Helper()
	select {
	case res := <-s.LoadResults():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("load result never arrived")
		return LoadResult{}
	}
}

func testBuffers() ([]world.BlockID, []byte) {
	blocks := make([]world.BlockID, world.SubChunkVolume)
	light := make([]byte, world.SubChunkVolume)
	blocks[0] = world.BlockStone
	blocks[world.SubChunkVolume-1] = world.BlockDiamondOre
	light[7] = 0xF3
	return blocks, light
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	coord := world.SubChunkCoord{X: -3, Z: 7, SubY: 5}
	blocks, light := testBuffers()

	if s.Has(coord) {
		t.Error("Has true before save")
	}
	s.RequestSave(coord, blocks, light)
	if !s.Has(coord) {
		t.Error("existence cache not updated on save")
	}
	if !s.RequestLoad(coord) {
		t.Fatal("RequestLoad refused")
	}
	res := awaitLoad(t, s)
	if !res.OK {
		t.Fatal("load missed a saved record")
	}
	if res.Coord != coord {
		t.Errorf("coord = %v", res.Coord)
	}
	if res.Blocks[0] != world.BlockStone || res.Blocks[world.SubChunkVolume-1] != world.BlockDiamondOre {
		t.Error("block payload corrupted")
	}
	if res.Light[7] != 0xF3 {
		t.Error("light payload corrupted")
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := openTestStore(t)
	if !s.RequestLoad(world.SubChunkCoord{X: 1}) {
		t.Fatal("RequestLoad refused")
	}
	res := awaitLoad(t, s)
	if res.OK {
		t.Error("missing record loaded OK")
	}
}

func TestRequestIDsMonotonic(t *testing.T) {
	s := openTestStore(t)
	s.RequestLoad(world.SubChunkCoord{X: 1})
	s.RequestLoad(world.SubChunkCoord{X: 2})
	a := awaitLoad(t, s)
	b := awaitLoad(t, s)
	if b.ID <= a.ID {
		t.Errorf("ids not monotonic: %d then %d", a.ID, b.ID)
	}
}

func TestExistenceCacheWarmsOnReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	coord := world.SubChunkCoord{X: 9, Z: -9, SubY: 2}
	blocks, light := testBuffers()
	s.RequestSave(coord, blocks, light)
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if !s2.Has(coord) {
		t.Error("existence cache cold after reopen")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	s.SaveMeta(Metadata{Seed: 42, PlayerPosition: [3]float64{1, 2, 3}})
	meta, ok := s.LoadMeta()
	if !ok {
		t.Fatal("meta missing after save")
	}
	if meta.Seed != 42 || meta.PlayerPosition != [3]float64{1, 2, 3} {
		t.Errorf("meta = %+v", meta)
	}
	if meta.WorldID == "" {
		t.Error("world id not assigned")
	}
	if meta.Version != metadataVersion {
		t.Errorf("version = %d", meta.Version)
	}
	if meta.LastSavedAt.IsZero() || meta.CreatedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
}

func TestInventoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if s.LoadInventory() != nil {
		t.Error("inventory present before save")
	}
	s.SaveInventory([]byte("opaque-blob"))
	if string(s.LoadInventory()) != "opaque-blob" {
		t.Error("inventory corrupted")
	}
}

func TestClearAll(t *testing.T) {
	s := openTestStore(t)
	coord := world.SubChunkCoord{X: 4, Z: 4, SubY: 4}
	blocks, light := testBuffers()
	s.RequestSave(coord, blocks, light)
	s.SaveMeta(Metadata{Seed: 7})

	// Give the async save a moment, then wipe.
	time.Sleep(100 * time.Millisecond)
	s.ClearAll()
	if s.Has(coord) {
		t.Error("existence cache survived ClearAll")
	}
	if s.RequestLoad(coord) {
		if res := awaitLoad(t, s); res.OK {
			t.Error("record survived ClearAll")
		}
	}
	// Metadata is not part of the chunk wipe.
	if _, ok := s.LoadMeta(); !ok {
		t.Error("ClearAll destroyed metadata")
	}
}

func TestNopStoreDegradesGracefully(t *testing.T) {
	s := NewNop()
	defer s.Close()
	if s.Enabled() {
		t.Error("nop store claims enabled")
	}
	if s.Has(world.SubChunkCoord{}) {
		t.Error("nop Has true")
	}
	if s.RequestLoad(world.SubChunkCoord{}) {
		t.Error("nop accepted a load")
	}
	blocks, light := testBuffers()
	s.RequestSave(world.SubChunkCoord{}, blocks, light) // must not panic
	s.SaveMeta(Metadata{})
	if _, ok := s.LoadMeta(); ok {
		t.Error("nop returned metadata")
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	blocks, light := testBuffers()
	enc := encodeRecord(blocks, light)
	if len(enc) != world.SubChunkVolume*3 {
		t.Fatalf("record size = %d", len(enc))
	}
	b2, l2, ok := decodeRecord(enc)
	if !ok {
		t.Fatal("decode failed")
	}
	for i := range blocks {
		if blocks[i] != b2[i] {
			t.Fatalf("block %d differs", i)
		}
	}
	for i := range light {
		if light[i] != l2[i] {
			t.Fatalf("light %d differs", i)
		}
	}
	if _, _, ok := decodeRecord(enc[:10]); ok {
		t.Error("short record decoded")
	}
}
