package streaming

import (
	"container/heap"
	"log"
	"math"

	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
	"voxelstream/internal/worldgen"
)

// Loader is the persistence surface the generation scheduler consults
// before generating: a synchronous existence check backed by a cache, and
// an async load whose result comes back through the engine.
type Loader interface {
	Has(coord world.SubChunkCoord) bool
	RequestLoad(coord world.SubChunkCoord) bool
}

// genEntry is one prioritized sub-chunk in the pending queue.
type genEntry struct {
	coord    world.SubChunkCoord
	priority float64
	seq      uint64
}

type genQueue []*genEntry

func (q genQueue) Len() int { return len(q) }
func (q genQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q genQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *genQueue) Push(x interface{}) { *q = append(*q, x.(*genEntry)) }
func (q *genQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// waterReprocess is a queued neighbor re-flood triggered by cross-chunk
// water.
type waterReprocess struct {
	coord      world.SubChunkCoord
	sourceEdge int // worldgen edge index the water came from
}

// GenerationScheduler decides which sub-chunks to generate, dispatches
// jobs, applies results, and evicts what the player left behind. All
// methods run on the main task.
type GenerationScheduler struct {
	mgr    *world.ChunkManager
	pool   *worldgen.Pool
	biomes *worldgen.BiomeMap

	seed     int64
	seaLevel int

	chunkDistance  int
	unloadDistance int

	playerCX, playerCZ int64
	playerSubY         int
	havePlayer         bool

	queue  genQueue
	queued map[world.SubChunkCoord]bool
	seq    uint64

	generated  map[world.SubChunkCoord]bool
	generating map[world.SubChunkCoord]bool

	nextWorker int

	reprocess    []waterReprocess
	reprocessSet map[world.SubChunkCoord]bool

	isLiquid         func(world.BlockID) bool
	onWaterReflooded func(coord world.SubChunkCoord, sub *world.SubChunk)

	loader Loader

	// OnApplied runs after a sub-chunk's data lands in the manager; res
	// is nil when the data came from persistence.
	OnApplied func(coord world.SubChunkCoord, sub *world.SubChunk, res *worldgen.Result)
	// OnColumnUnloaded runs for every column the scheduler evicts.
	OnColumnUnloaded func(coord world.ChunkCoord)
	// PlaceTree writes a worker-reported tree through column writes.
	PlaceTree func(seed worldgen.TreeSeed)
}

// NewGenerationScheduler wires the scheduler to its collaborators.
func NewGenerationScheduler(mgr *world.ChunkManager, pool *worldgen.Pool, biomes *worldgen.BiomeMap, seed int64, seaLevel, chunkDistance int) *GenerationScheduler {
	s := &GenerationScheduler{
		mgr:          mgr,
		pool:         pool,
		biomes:       biomes,
		seed:         seed,
		seaLevel:     seaLevel,
		queued:       make(map[world.SubChunkCoord]bool),
		generated:    make(map[world.SubChunkCoord]bool),
		generating:   make(map[world.SubChunkCoord]bool),
		reprocessSet: make(map[world.SubChunkCoord]bool),
	}
	s.SetChunkDistance(chunkDistance)
	return s
}

// SetLoader injects the persistence facade; nil disables load-first.
func (s *GenerationScheduler) SetLoader(l Loader) { s.loader = l }

// SetBiomeMap swaps the region biome assignment (seed change).
func (s *GenerationScheduler) SetBiomeMap(m *worldgen.BiomeMap) { s.biomes = m }

// SetChunkDistance updates the load radius and derived unload radius.
func (s *GenerationScheduler) SetChunkDistance(d int) {
	if d < 1 {
		d = 1
	}
	s.chunkDistance = d
	s.unloadDistance = (d*3 + 1) / 2
}

// ellipsoidDistance measures a sub-chunk offset in the load ellipsoid:
// vertical radius is half the horizontal, so dy counts double.
func ellipsoidDistance(dx, dz int64, dy int, yWeight float64) float64 {
	fy := float64(dy) * 2 * yWeight
	return math.Sqrt(float64(dx*dx) + float64(dz*dz) + fy*fy)
}

// SetPlayer drives the streaming window. A change of chunk or sub-chunk
// rebuilds the pending queue and runs the unload pass.
func (s *GenerationScheduler) SetPlayer(cx, cz int64, subY int) {
	if subY < 0 {
		subY = 0
	}
	if subY >= world.SubChunkCount {
		subY = world.SubChunkCount - 1
	}
	if s.havePlayer && cx == s.playerCX && cz == s.playerCZ && subY == s.playerSubY {
		return
	}
	s.playerCX, s.playerCZ, s.playerSubY = cx, cz, subY
	s.havePlayer = true
	s.rebuildQueue()
	s.unloadPass()
}

// rebuildQueue scans the load disc and enqueues every missing
// sub-chunk inside the ellipsoid, prioritized by distance with the
// vertical axis over-weighted to favor the player's horizontal band.
func (s *GenerationScheduler) rebuildQueue() {
	defer profiling.Track("streaming.RebuildQueue")()
	s.queue = s.queue[:0]
	for k := range s.queued {
		delete(s.queued, k)
	}

	d := s.chunkDistance
	for dx := int64(-d); dx <= int64(d); dx++ {
		for dz := int64(-d); dz <= int64(d); dz++ {
			if dx*dx+dz*dz > int64(d*d) {
				continue
			}
			for subY := 0; subY < world.SubChunkCount; subY++ {
				dy := subY - s.playerSubY
				if ellipsoidDistance(dx, dz, dy, 1) > float64(d) {
					continue
				}
				coord := world.SubChunkCoord{X: s.playerCX + dx, Z: s.playerCZ + dz, SubY: subY}
				if s.generated[coord] || s.generating[coord] {
					continue
				}
				s.seq++
				e := &genEntry{
					coord:    coord,
					priority: ellipsoidDistance(dx, dz, dy, 1.5),
					seq:      s.seq,
				}
				s.queue = append(s.queue, e)
				s.queued[coord] = true
			}
		}
	}
	heap.Init(&s.queue)
}

// unloadPass disposes columns beyond the unload radius and forgets
// out-of-ellipsoid sub-chunks of columns that stay resident.
func (s *GenerationScheduler) unloadPass() {
	defer profiling.Track("streaming.UnloadPass")()
	for _, coord := range s.mgr.Coords() {
		dx := coord.X - s.playerCX
		dz := coord.Z - s.playerCZ
		if dx*dx+dz*dz > int64(s.unloadDistance*s.unloadDistance) {
			s.mgr.Unload(coord)
			continue
		}
		for subY := 0; subY < world.SubChunkCount; subY++ {
			sc := world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: subY}
			if !s.generated[sc] {
				continue
			}
			if ellipsoidDistance(dx, dz, subY-s.playerSubY, 1) > float64(s.unloadDistance) {
				delete(s.generated, sc)
			}
		}
	}
}

// PurgeColumn drops every scheduler key of an evicted column. Wired to
// the manager's OnEvict by the engine.
func (s *GenerationScheduler) PurgeColumn(coord world.ChunkCoord) {
	for subY := 0; subY < world.SubChunkCount; subY++ {
		sc := world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: subY}
		delete(s.generated, sc)
		delete(s.generating, sc)
		delete(s.queued, sc)
		delete(s.reprocessSet, sc)
	}
	if s.OnColumnUnloaded != nil {
		s.OnColumnUnloaded(coord)
	}
}

// Tick pops up to dispatchCap pending sub-chunks: saved ones load, the
// rest go to generation workers round-robin.
func (s *GenerationScheduler) Tick(dispatchCap int) {
	defer profiling.Track("streaming.GenTick")()
	dispatched := 0
	for dispatched < dispatchCap && len(s.queue) > 0 {
		e := heap.Pop(&s.queue).(*genEntry)
		if !s.queued[e.coord] {
			continue // purged while queued
		}
		delete(s.queued, e.coord)
		if s.generated[e.coord] || s.generating[e.coord] {
			continue
		}
		dx := e.coord.X - s.playerCX
		dz := e.coord.Z - s.playerCZ
		if ellipsoidDistance(dx, dz, e.coord.SubY-s.playerSubY, 1) > float64(s.unloadDistance) {
			continue // player moved on
		}

		if s.loader != nil && s.loader.Has(e.coord) {
			if s.loader.RequestLoad(e.coord) {
				s.generating[e.coord] = true
				dispatched++
				continue
			}
		}

		req := &worldgen.Request{
			Coord:    e.coord,
			Seed:     s.seed,
			SeaLevel: s.seaLevel,
			Blend:    s.biomes.BlendFor(e.coord.X, e.coord.Z),
			Blocks:   make([]world.BlockID, world.SubChunkVolume),
			Light:    make([]byte, world.SubChunkVolume),
		}
		if !s.pool.Dispatch(s.nextWorker, req) {
			// Worker queues full: push back and stop for this frame.
			s.requeue(e.coord, e.priority)
			return
		}
		s.nextWorker = (s.nextWorker + 1) % s.pool.Workers()
		s.generating[e.coord] = true
		dispatched++
	}
}

func (s *GenerationScheduler) requeue(coord world.SubChunkCoord, priority float64) {
	if s.queued[coord] {
		return
	}
	s.seq++
	heap.Push(&s.queue, &genEntry{coord: coord, priority: priority, seq: s.seq})
	s.queued[coord] = true
}

// ApplyResult installs a generation worker's output. Stale results for
// unloaded or evicted regions are discarded.
func (s *GenerationScheduler) ApplyResult(res *worldgen.Result) *world.SubChunk {
	defer profiling.Track("streaming.ApplyGenResult")()
	if !s.generating[res.Coord] {
		return nil // stale result from before a reset or purge
	}
	delete(s.generating, res.Coord)

	if res.Err != nil {
		log.Printf("generation: %v", res.Err)
		profiling.Count("streaming.GenErrors")
		return nil
	}
	dx := res.Coord.X - s.playerCX
	dz := res.Coord.Z - s.playerCZ
	if s.havePlayer && dx*dx+dz*dz > int64(s.unloadDistance*s.unloadDistance) {
		return nil
	}

	col := s.mgr.LoadColumn(res.Coord.Column())
	sub := col.SubChunk(res.Coord.SubY, true)
	sub.ApplyWorkerData(res.Blocks, res.Light)
	sub.SetFullyOpaque(res.FullyOpaque)
	s.generated[res.Coord] = true

	if s.PlaceTree != nil {
		for _, seed := range res.TreeSeeds {
			s.PlaceTree(seed)
		}
	}
	s.handleWaterEdges(res.Coord, res.WaterEdges)
	s.inspectNeighborsForWater(res.Coord)

	if s.OnApplied != nil {
		s.OnApplied(res.Coord, sub, res)
	}
	return sub
}

// ApplyLoaded installs sub-chunk data that came from persistence.
func (s *GenerationScheduler) ApplyLoaded(coord world.SubChunkCoord, blocks []world.BlockID, light []byte) {
	delete(s.generating, coord)
	col := s.mgr.LoadColumn(coord.Column())
	sub := col.SubChunk(coord.SubY, true)
	sub.ApplyWorkerData(blocks, light)
	s.generated[coord] = true
	if s.OnApplied != nil {
		s.OnApplied(coord, sub, nil)
	}
}

// LoadFailed falls back to generation when a saved record could not be
// read.
func (s *GenerationScheduler) LoadFailed(coord world.SubChunkCoord) {
	delete(s.generating, coord)
	s.requeue(coord, 0)
}

// IsGenerated reports whether a sub-chunk's data is resident.
func (s *GenerationScheduler) IsGenerated(coord world.SubChunkCoord) bool {
	return s.generated[coord]
}

// MarkGenerated records externally installed sub-chunk data (world edits
// into virgin columns).
func (s *GenerationScheduler) MarkGenerated(coord world.SubChunkCoord) {
	s.generated[coord] = true
}

// QueueLen exposes the pending queue depth for diagnostics.
func (s *GenerationScheduler) QueueLen() int { return len(s.queue) }

// Reset clears every queue and set (seed change).
func (s *GenerationScheduler) Reset(seed int64) {
	s.seed = seed
	s.queue = s.queue[:0]
	s.queued = make(map[world.SubChunkCoord]bool)
	s.generated = make(map[world.SubChunkCoord]bool)
	s.generating = make(map[world.SubChunkCoord]bool)
	s.reprocess = nil
	s.reprocessSet = make(map[world.SubChunkCoord]bool)
	s.havePlayer = false
}
