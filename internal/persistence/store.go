package persistence

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"voxelstream/internal/world"
)

// Store is the async persistence facade over a leveldb key-value store.
// Sub-chunk records are keyed by coordinate; an in-memory existence cache
// answers Has without touching the store. Loads run on a background
// goroutine and return through LoadResults tagged with a monotonically
// increasing request id, so replies can never be matched to the wrong
// waiter. A Store whose database failed to open degrades to a no-op: the
// engine runs without persistence.
type Store struct {
	db *leveldb.DB

	existsMu sync.Mutex
	exists   map[world.SubChunkCoord]bool

	reqs  chan request
	loads chan LoadResult

	nextID  uint64
	closed  bool
	closeMu sync.Mutex
	wg      sync.WaitGroup
}

type requestKind int

const (
	reqLoad requestKind = iota
	reqSave
)

type request struct {
	kind   requestKind
	id     uint64
	coord  world.SubChunkCoord
	blocks []world.BlockID
	light  []byte
}

// LoadResult is one completed load. OK is false when the record is
// missing or unreadable; the scheduler then falls back to generation.
type LoadResult struct {
	ID     uint64
	Coord  world.SubChunkCoord
	Blocks []world.BlockID
	Light  []byte
	OK     bool
}

// Metadata is the world-level record saved alongside sub-chunks.
type Metadata struct {
	Version        int        `json:"version"`
	WorldID        string     `json:"worldId"`
	Seed           int64      `json:"seed"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastSavedAt    time.Time  `json:"lastSavedAt"`
	PlayerPosition [3]float64 `json:"playerPosition"`
}

const metadataVersion = 1

var (
	keyMeta      = []byte("meta")
	keyInventory = []byte("inventory")
	chunkPrefix  = byte('c')
)

// Open opens (or creates) a store at path. On failure a degraded no-op
// store is returned along with the error; the engine keeps running.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		log.Printf("persistence: open %s: %v (running without persistence)", path, err)
		return newStore(nil), err
	}
	s := newStore(db)
	s.warmExistenceCache()
	return s, nil
}

// NewNop returns a store that persists nothing.
func NewNop() *Store { return newStore(nil) }

func newStore(db *leveldb.DB) *Store {
	s := &Store{
		db:     db,
		exists: make(map[world.SubChunkCoord]bool),
		reqs:   make(chan request, 64),
		loads:  make(chan LoadResult, 64),
	}
	if db != nil {
		s.wg.Add(1)
		go s.serve()
	}
	return s
}

// Enabled reports whether a database is actually open.
func (s *Store) Enabled() bool { return s.db != nil }

func chunkKey(coord world.SubChunkCoord) []byte {
	key := make([]byte, 18)
	key[0] = chunkPrefix
	binary.BigEndian.PutUint64(key[1:], uint64(coord.X))
	binary.BigEndian.PutUint64(key[9:], uint64(coord.Z))
	key[17] = byte(coord.SubY)
	return key
}

func decodeChunkKey(key []byte) (world.SubChunkCoord, bool) {
	if len(key) != 18 || key[0] != chunkPrefix {
		return world.SubChunkCoord{}, false
	}
	return world.SubChunkCoord{
		X:    int64(binary.BigEndian.Uint64(key[1:])),
		Z:    int64(binary.BigEndian.Uint64(key[9:])),
		SubY: int(key[17]),
	}, true
}

// warmExistenceCache scans the chunk key range once at open.
func (s *Store) warmExistenceCache() {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{chunkPrefix}), nil)
	defer iter.Release()
	s.existsMu.Lock()
	for iter.Next() {
		if coord, ok := decodeChunkKey(iter.Key()); ok {
			s.exists[coord] = true
		}
	}
	s.existsMu.Unlock()
	if err := iter.Error(); err != nil {
		log.Printf("persistence: existence scan: %v", err)
	}
}

// Has answers from the existence cache only.
func (s *Store) Has(coord world.SubChunkCoord) bool {
	s.existsMu.Lock()
	defer s.existsMu.Unlock()
	return s.exists[coord]
}

// RequestLoad queues an async load. Returns false when the store is
// degraded or saturated; the caller generates instead.
func (s *Store) RequestLoad(coord world.SubChunkCoord) bool {
	if s.db == nil || s.isClosed() {
		return false
	}
	s.nextID++
	select {
	case s.reqs <- request{kind: reqLoad, id: s.nextID, coord: coord}:
		return true
	default:
		return false
	}
}

// LoadResults is drained on the main task.
func (s *Store) LoadResults() <-chan LoadResult { return s.loads }

// RequestSave queues an async save. The buffers are owned by the store
// from this call on.
func (s *Store) RequestSave(coord world.SubChunkCoord, blocks []world.BlockID, light []byte) {
	if s.db == nil || s.isClosed() {
		return
	}
	s.existsMu.Lock()
	s.exists[coord] = true
	s.existsMu.Unlock()
	select {
	case s.reqs <- request{kind: reqSave, coord: coord, blocks: blocks, light: light}:
	default:
		// Queue full: write synchronously rather than lose the record.
		s.doSave(request{coord: coord, blocks: blocks, light: light})
	}
}

func (s *Store) serve() {
	defer s.wg.Done()
	for req := range s.reqs {
		switch req.kind {
		case reqLoad:
			s.doLoad(req)
		case reqSave:
			s.doSave(req)
		}
	}
}

func (s *Store) doLoad(req request) {
	value, err := s.db.Get(chunkKey(req.coord), nil)
	res := LoadResult{ID: req.id, Coord: req.coord}
	if err == nil {
		if blocks, light, ok := decodeRecord(value); ok {
			res.Blocks, res.Light, res.OK = blocks, light, true
		}
	} else if err != leveldb.ErrNotFound {
		log.Printf("persistence: load %v: %v", req.coord, err)
	}
	select {
	case s.loads <- res:
	default:
		// The engine stopped draining (shutdown or a pathological
		// backlog); dropping keeps Close from wedging on a full channel.
		log.Printf("persistence: dropping load result for %v", req.coord)
	}
}

func (s *Store) doSave(req request) {
	if err := s.db.Put(chunkKey(req.coord), encodeRecord(req.blocks, req.light), nil); err != nil {
		log.Printf("persistence: save %v: %v", req.coord, err)
	}
}

// encodeRecord lays out VOLUME little-endian block ids followed by VOLUME
// light bytes.
func encodeRecord(blocks []world.BlockID, light []byte) []byte {
	out := make([]byte, world.SubChunkVolume*2+world.SubChunkVolume)
	for i, b := range blocks {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(b))
	}
	copy(out[world.SubChunkVolume*2:], light)
	return out
}

func decodeRecord(data []byte) ([]world.BlockID, []byte, bool) {
	if len(data) != world.SubChunkVolume*3 {
		return nil, nil, false
	}
	blocks := make([]world.BlockID, world.SubChunkVolume)
	for i := range blocks {
		blocks[i] = world.BlockID(binary.LittleEndian.Uint16(data[i*2:]))
	}
	light := make([]byte, world.SubChunkVolume)
	copy(light, data[world.SubChunkVolume*2:])
	return blocks, light, true
}

// LoadMeta reads the world metadata record.
func (s *Store) LoadMeta() (Metadata, bool) {
	var meta Metadata
	if s.db == nil {
		return meta, false
	}
	value, err := s.db.Get(keyMeta, nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			log.Printf("persistence: load meta: %v", err)
		}
		return meta, false
	}
	if err := json.Unmarshal(value, &meta); err != nil {
		log.Printf("persistence: decode meta: %v", err)
		return meta, false
	}
	return meta, true
}

// SaveMeta writes the world metadata record, stamping LastSavedAt and
// assigning a world id on first save.
func (s *Store) SaveMeta(meta Metadata) {
	if s.db == nil {
		return
	}
	if meta.WorldID == "" {
		meta.WorldID = uuid.New().String()
	}
	if meta.Version == 0 {
		meta.Version = metadataVersion
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.LastSavedAt = time.Now()
	value, err := json.Marshal(meta)
	if err != nil {
		log.Printf("persistence: encode meta: %v", err)
		return
	}
	if err := s.db.Put(keyMeta, value, nil); err != nil {
		log.Printf("persistence: save meta: %v", err)
	}
}

// SaveInventory stores the host's opaque inventory blob.
func (s *Store) SaveInventory(data []byte) {
	if s.db == nil {
		return
	}
	if err := s.db.Put(keyInventory, data, nil); err != nil {
		log.Printf("persistence: save inventory: %v", err)
	}
}

// LoadInventory returns the stored inventory blob, nil when absent.
func (s *Store) LoadInventory() []byte {
	if s.db == nil {
		return nil
	}
	value, err := s.db.Get(keyInventory, nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			log.Printf("persistence: load inventory: %v", err)
		}
		return nil
	}
	return value
}

// ClearAll deletes every sub-chunk record (seed change).
func (s *Store) ClearAll() {
	if s.db == nil {
		return
	}
	iter := s.db.NewIterator(util.BytesPrefix([]byte{chunkPrefix}), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	iter.Release()
	if err := s.db.Write(batch, nil); err != nil {
		log.Printf("persistence: clear: %v", err)
	}
	s.existsMu.Lock()
	s.exists = make(map[world.SubChunkCoord]bool)
	s.existsMu.Unlock()
}

func (s *Store) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// Close drains pending requests and closes the database.
func (s *Store) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	s.closeMu.Unlock()

	if s.db != nil {
		close(s.reqs)
		s.wg.Wait()
		if err := s.db.Close(); err != nil {
			log.Printf("persistence: close: %v", err)
		}
	}
}
