package engine

import (
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
	"voxelstream/internal/lighting"
	"voxelstream/internal/meshing"
	"voxelstream/internal/persistence"
	"voxelstream/internal/profiling"
	"voxelstream/internal/registry"
	"voxelstream/internal/streaming"
	"voxelstream/internal/world"
	"voxelstream/internal/worldgen"
)

// SceneSink receives applied meshes. The renderer (out of scope here)
// implements it; internal/remote offers a websocket implementation.
type SceneSink interface {
	MeshAdded(coord world.SubChunkCoord, res *meshing.Result)
	MeshRemoved(coord world.SubChunkCoord)
}

// OpacityCache is the occlusion collaborator's view of sub-chunk opacity.
type OpacityCache interface {
	Set(coord world.SubChunkCoord, fullyOpaque bool)
	Remove(coord world.SubChunkCoord)
}

// Engine is the streaming world engine: one instance owns the chunk data,
// the worker pools, and the schedulers, and is driven by Tick from the
// host's frame loop. All methods must be called from that single loop.
type Engine struct {
	settings *config.EngineSettings
	reg      *registry.Registry

	seed     int64
	seaLevel int
	biomes   []*worldgen.Biome

	mgr *world.ChunkManager

	genPool   *worldgen.Pool
	meshPool  *meshing.WorkerPool
	lightPool *lighting.Pool
	prop      *lighting.Propagator

	gen    *streaming.GenerationScheduler
	mesh   *streaming.MeshScheduler
	lights *streaming.LightingManager
	budget *streaming.FrameBudget

	store   *persistence.Store
	sink    SceneSink
	opacity OpacityCache

	playerPos mgl64.Vec3

	appliedMeshes map[world.SubChunkCoord]bool

	meshAddedSubs   []func(world.SubChunkCoord, *meshing.Result)
	meshRemovedSubs []func(world.SubChunkCoord)
	lightingSubs    []func(world.ChunkCoord)
	oreSubs         []func([]worldgen.OrePosition)

	lastAutosave time.Time
	disposed     bool
}

// New builds an engine from settings, a finalized registry, and a
// resolved worldgen config.
func New(settings *config.EngineSettings, reg *registry.Registry, gen *config.WorldGenConfig) (*Engine, error) {
	biomes, err := gen.Resolve(reg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		settings:      settings,
		reg:           reg,
		seed:          gen.Seed,
		seaLevel:      gen.SeaLevel,
		biomes:        biomes,
		store:         persistence.NewNop(),
		appliedMeshes: make(map[world.SubChunkCoord]bool),
		lastAutosave:  time.Now(),
	}

	e.mgr = world.NewChunkManager(settings.MaxLoadedColumns())
	e.mgr.OnEvict = e.onColumnEvicted

	e.genPool = worldgen.NewPool(settings.GenWorkers(), worldgen.NewGenerator(reg.Opaque()))
	e.meshPool = meshing.NewWorkerPool(settings.MeshWorkers(), e.meshTables())
	e.prop = lighting.NewPropagator(reg.LightBlockingTable())
	e.lightPool = lighting.NewPool(settings.LightWorkers(), e.prop)

	biomeMap := worldgen.NewBiomeMap(e.seed, biomes)
	e.gen = streaming.NewGenerationScheduler(e.mgr, e.genPool, biomeMap, e.seed, e.seaLevel, settings.ChunkDistance())
	e.gen.OnApplied = e.onSubChunkApplied
	e.gen.PlaceTree = func(seed worldgen.TreeSeed) { worldgen.PlaceTree(e, seed) }
	e.gen.SetLiquidTest(func(id world.BlockID) bool {
		def := reg.Lookup(id)
		return def != nil && def.IsLiquid
	})
	e.gen.SetWaterCallback(func(coord world.SubChunkCoord, sub *world.SubChunk) {
		e.mesh.Queue(coord, false, true)
		e.lights.Enqueue(coord.Column())
	})

	e.mesh = streaming.NewMeshScheduler(e.mgr, e.meshPool, settings.BackgroundMeshPerTick(), settings.MeshApplyPerTick())
	e.mesh.OnMeshReady = e.onMeshReady

	e.lights = streaming.NewLightingManager(e.mgr, e.lightPool, e.prop, streaming.LightingParams{
		ColumnsPerUpdate: settings.LightColumnsPerUpdate(),
		MaxDistance:      settings.LightMaxDistance(),
		NearbyDistance:   settings.LightNearbyDistance(),
		Cooldown:         settings.ReprocessCooldown(),
		NearbyCooldown:   settings.NearbyReprocessCooldown(),
	})
	e.lights.OnSubChanged = func(coord world.SubChunkCoord, high bool) {
		e.mesh.Queue(coord, high, true)
	}
	e.lights.OnColumnStarted = func(coord world.ChunkCoord) {
		for _, fn := range e.lightingSubs {
			if fn != nil {
				fn(coord)
			}
		}
	}

	e.registerBudgetTasks()
	return e, nil
}

func (e *Engine) meshTables() *meshing.Tables {
	maxID := e.reg.MaxID()
	nonGreedy := make([]bool, maxID+1)
	transparent := make([]bool, maxID+1)
	for id := world.BlockID(0); id <= maxID; id++ {
		nonGreedy[id] = e.reg.IsNonGreedy(id)
		transparent[id] = e.reg.IsTransparent(id)
	}
	return &meshing.Tables{
		Opaque:       e.reg.Opaque(),
		FaceTextures: e.reg.FaceTextureTable(),
		NonGreedy:    nonGreedy,
		Transparent:  transparent,
	}
}

// registerBudgetTasks wires the per-frame work items into the frame
// budget in pipeline order.
func (e *Engine) registerBudgetTasks() {
	e.budget = streaming.NewFrameBudget(e.settings.FrameBudget())

	e.budget.Register("gen.results", func() bool {
		select {
		case res := <-e.genPool.Results():
			e.gen.ApplyResult(res)
			return len(e.genPool.Results()) > 0
		default:
			return false
		}
	})
	e.budget.Register("persist.loads", func() bool {
		select {
		case res := <-e.store.LoadResults():
			if res.OK {
				e.gen.ApplyLoaded(res.Coord, res.Blocks, res.Light)
			} else {
				e.gen.LoadFailed(res.Coord)
			}
			return len(e.store.LoadResults()) > 0
		default:
			return false
		}
	})
	e.budget.Register("light.results", func() bool {
		select {
		case res := <-e.lightPool.Results():
			e.lights.ApplyResult(res)
			return len(e.lightPool.Results()) > 0
		default:
			return false
		}
	})
	e.budget.Register("gen.dispatch", func() bool {
		e.gen.Tick(e.settings.GenDispatchPerTick())
		return false
	})
	e.budget.Register("water.reprocess", func() bool {
		return e.gen.ReprocessWater(2)
	})
	e.budget.Register("light.tick", func() bool {
		e.lights.Tick()
		return false
	})
	e.budget.Register("mesh.tick", func() bool {
		e.mesh.Tick()
		return false
	})
}

// SetPlayer drives the streaming window from the player position.
func (e *Engine) SetPlayer(pos mgl64.Vec3) {
	e.playerPos = pos
	cx, cz := world.WorldToChunk(floor64(pos.X()), floor64(pos.Z()))
	subY := world.SubYForWorldY(int(pos.Y()))
	if subY < 0 {
		if pos.Y() < 0 {
			subY = 0
		} else {
			subY = world.SubChunkCount - 1
		}
	}
	e.gen.SetPlayer(cx, cz, subY)
	e.lights.SetPlayer(cx, cz)
}

func floor64(v float64) int64 {
	i := int64(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}

// Tick advances every scheduler one frame under the time budget.
func (e *Engine) Tick() {
	if e.disposed {
		return
	}
	defer profiling.Track("engine.Tick")()
	e.budget.SetBudget(e.settings.FrameBudget())
	e.budget.RunFrame()
	e.maybeAutosave()
}

// GetBlock reads a block at world coordinates; air when unloaded.
func (e *Engine) GetBlock(wx, wy, wz int64) world.BlockID {
	cx, cz := world.WorldToChunk(wx, wz)
	col := e.mgr.Peek(world.ChunkCoord{X: cx, Z: cz})
	if col == nil {
		return world.BlockAir
	}
	lx, ly, lz := world.WorldToLocal(wx, wy, wz)
	return col.GetBlock(lx, ly, lz)
}

// SetBlock writes a block at world coordinates, returning whether the
// value changed. A change marks the sub-chunk player-modified, triggers
// the lighting fast path, and requests a high-priority remesh of the
// sub-chunk and any seam neighbors.
func (e *Engine) SetBlock(wx, wy, wz int64, id world.BlockID) bool {
	subY := world.SubYForWorldY(int(wy))
	if subY < 0 {
		return false
	}
	cx, cz := world.WorldToChunk(wx, wz)
	colCoord := world.ChunkCoord{X: cx, Z: cz}
	col := e.mgr.LoadColumn(colCoord)
	lx, ly, lz := world.WorldToLocal(wx, wy, wz)

	if !col.SetBlock(lx, ly, lz, id) {
		return false
	}
	coord := world.SubChunkCoord{X: cx, Z: cz, SubY: subY}
	sub := col.SubChunk(subY, false)
	sub.MarkModifiedByPlayer()
	if e.opacity != nil {
		e.opacity.Set(coord, sub.IsFullyOpaque(e.reg.Opaque()))
	}

	e.lights.QueueBlockChange(colCoord, lx, int(wy), lz, id == world.BlockAir)
	e.mesh.Queue(coord, true, true)
	e.queueSeamNeighbors(coord, lx, ly, lz)
	return true
}

// queueSeamNeighbors remeshes sub-chunks whose boundary faces an edited
// cell.
func (e *Engine) queueSeamNeighbors(coord world.SubChunkCoord, lx, wy, lz int) {
	localY := wy % world.SubChunkHeight
	if lx == 0 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X - 1, Z: coord.Z, SubY: coord.SubY})
	}
	if lx == world.ChunkSizeX-1 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X + 1, Z: coord.Z, SubY: coord.SubY})
	}
	if lz == 0 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X, Z: coord.Z - 1, SubY: coord.SubY})
	}
	if lz == world.ChunkSizeZ-1 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X, Z: coord.Z + 1, SubY: coord.SubY})
	}
	if localY == 0 && coord.SubY > 0 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: coord.SubY - 1})
	}
	if localY == world.SubChunkHeight-1 && coord.SubY < world.SubChunkCount-1 {
		e.queueIfLoaded(world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: coord.SubY + 1})
	}
}

func (e *Engine) queueIfLoaded(coord world.SubChunkCoord) {
	if e.mgr.SubChunkAt(coord) != nil {
		e.mesh.Queue(coord, true, true)
	}
}

// FillRegion writes a block over an inclusive world-space box. Lighting
// is corrected by a background pass per touched column instead of one
// fast-path job per cell.
func (e *Engine) FillRegion(min, max [3]int64, id world.BlockID) {
	touched := make(map[world.SubChunkCoord]bool)
	for wx := min[0]; wx <= max[0]; wx++ {
		for wz := min[2]; wz <= max[2]; wz++ {
			cx, cz := world.WorldToChunk(wx, wz)
			col := e.mgr.LoadColumn(world.ChunkCoord{X: cx, Z: cz})
			lx, _, lz := world.WorldToLocal(wx, 0, wz)
			for wy := min[1]; wy <= max[1]; wy++ {
				subY := world.SubYForWorldY(int(wy))
				if subY < 0 {
					continue
				}
				if col.SetBlock(lx, int(wy), lz, id) {
					coord := world.SubChunkCoord{X: cx, Z: cz, SubY: subY}
					col.SubChunk(subY, false).MarkModifiedByPlayer()
					touched[coord] = true
				}
			}
		}
	}
	for coord := range touched {
		e.mesh.Queue(coord, true, true)
		e.lights.Enqueue(coord.Column())
		if e.opacity != nil {
			if sub := e.mgr.SubChunkAt(coord); sub != nil {
				e.opacity.Set(coord, sub.IsFullyOpaque(e.reg.Opaque()))
			}
		}
	}
}

// ForEachBlockInRegion walks an inclusive box; returning false from the
// callback stops the walk.
func (e *Engine) ForEachBlockInRegion(min, max [3]int64, cb func(wx, wy, wz int64, id world.BlockID) bool) {
	for wx := min[0]; wx <= max[0]; wx++ {
		for wy := min[1]; wy <= max[1]; wy++ {
			for wz := min[2]; wz <= max[2]; wz++ {
				if !cb(wx, wy, wz, e.GetBlock(wx, wy, wz)) {
					return
				}
			}
		}
	}
}

// GetLightLevelAtWorld returns max(skylight, blocklight) at a world
// position, 15 for unloaded space.
func (e *Engine) GetLightLevelAtWorld(wx, wy, wz int64) byte {
	subY := world.SubYForWorldY(int(wy))
	if subY < 0 {
		return 15
	}
	cx, cz := world.WorldToChunk(wx, wz)
	col := e.mgr.Peek(world.ChunkCoord{X: cx, Z: cz})
	if col == nil {
		return 15
	}
	sub := col.SubChunk(subY, false)
	if sub == nil {
		return 15
	}
	lx, _, lz := world.WorldToLocal(wx, wy, wz)
	return sub.GetLightLevel(lx, int(wy)%world.SubChunkHeight, lz)
}

// QueueSubChunkForMeshing exposes the mesh queue to the host.
func (e *Engine) QueueSubChunkForMeshing(coord world.SubChunkCoord, highPriority, forceRequeue bool) {
	e.mesh.Queue(coord, highPriority, forceRequeue)
}

// SetGeneratedBlock implements worldgen.BlockWriter for tree placement:
// a write that may create neighbor sub-chunks, marks dirty, but does not
// count as a player edit.
func (e *Engine) SetGeneratedBlock(wx, wy int64, wz int64, id world.BlockID) bool {
	subY := world.SubYForWorldY(int(wy))
	if subY < 0 {
		return false
	}
	cx, cz := world.WorldToChunk(wx, wz)
	col := e.mgr.LoadColumn(world.ChunkCoord{X: cx, Z: cz})
	lx, _, lz := world.WorldToLocal(wx, wy, wz)
	if !col.SetBlock(lx, int(wy), lz, id) {
		return false
	}
	coord := world.SubChunkCoord{X: cx, Z: cz, SubY: subY}
	if e.gen.IsGenerated(coord) {
		e.mesh.Queue(coord, false, false)
	}
	return true
}

// GetGeneratedBlock implements worldgen.BlockWriter.
func (e *Engine) GetGeneratedBlock(wx, wy int64, wz int64) world.BlockID {
	return e.GetBlock(wx, wy, wz)
}

// onSubChunkApplied runs when generated or loaded data lands.
func (e *Engine) onSubChunkApplied(coord world.SubChunkCoord, sub *world.SubChunk, res *worldgen.Result) {
	if e.opacity != nil {
		e.opacity.Set(coord, sub.IsFullyOpaque(e.reg.Opaque()))
	}
	e.mesh.Queue(coord, false, false)
	e.lights.Enqueue(coord.Column())
	e.lights.SeedEdge(coord.Column())

	// Neighbor meshes culled against a missing sub-chunk are now stale.
	for _, d := range [6][3]int64{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0}} {
		n := world.SubChunkCoord{X: coord.X + d[0], Z: coord.Z + d[2], SubY: coord.SubY + int(d[1])}
		if n.SubY < 0 || n.SubY >= world.SubChunkCount {
			continue
		}
		if e.appliedMeshes[n] {
			e.mesh.Queue(n, false, true)
		}
	}

	if res != nil && len(res.OrePositions) > 0 {
		for _, fn := range e.oreSubs {
			if fn != nil {
				fn(res.OrePositions)
			}
		}
	}
}

// onMeshReady installs a finished mesh and notifies the scene.
func (e *Engine) onMeshReady(coord world.SubChunkCoord, res *meshing.Result) {
	e.appliedMeshes[coord] = true
	if e.sink != nil {
		e.sink.MeshAdded(coord, res)
	}
	for _, fn := range e.meshAddedSubs {
		if fn != nil {
			fn(coord, res)
		}
	}
}

// onColumnEvicted purges every per-column key and checkpoints edits.
func (e *Engine) onColumnEvicted(col *world.ChunkColumn) {
	coord := col.Coord
	col.EachSubChunk(func(subY int, sub *world.SubChunk) {
		sc := world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: subY}
		if sub.ModifiedByPlayer() && e.store.Enabled() {
			e.store.RequestSave(sc, sub.CopyBlocks(), sub.CopyLight())
			sub.ClearModifiedByPlayer()
		}
		if e.opacity != nil {
			e.opacity.Remove(sc)
		}
		if e.appliedMeshes[sc] {
			delete(e.appliedMeshes, sc)
			if e.sink != nil {
				e.sink.MeshRemoved(sc)
			}
			for _, fn := range e.meshRemovedSubs {
				if fn != nil {
					fn(sc)
				}
			}
		}
	})
	e.gen.PurgeColumn(coord)
	e.mesh.PurgeColumn(coord)
	e.lights.PurgeColumn(coord)
}

// maybeAutosave checkpoints player-modified sub-chunks on the configured
// interval.
func (e *Engine) maybeAutosave() {
	interval := e.settings.AutosaveInterval()
	if interval <= 0 || !e.store.Enabled() {
		return
	}
	if time.Since(e.lastAutosave) < interval {
		return
	}
	e.lastAutosave = time.Now()
	e.SaveModified()
}

// SaveModified checkpoints every player-modified sub-chunk plus the world
// metadata. Also called on dispose and by the host on demand.
func (e *Engine) SaveModified() {
	if !e.store.Enabled() {
		return
	}
	defer profiling.Track("engine.SaveModified")()
	saved := 0
	e.mgr.Each(func(col *world.ChunkColumn) {
		col.EachSubChunk(func(subY int, sub *world.SubChunk) {
			if !sub.ModifiedByPlayer() {
				return
			}
			sc := world.SubChunkCoord{X: col.Coord.X, Z: col.Coord.Z, SubY: subY}
			e.store.RequestSave(sc, sub.CopyBlocks(), sub.CopyLight())
			sub.ClearModifiedByPlayer()
			saved++
		})
	})
	e.store.SaveMeta(persistence.Metadata{
		Seed:           e.seed,
		PlayerPosition: [3]float64{e.playerPos.X(), e.playerPos.Y(), e.playerPos.Z()},
	})
	if saved > 0 {
		log.Printf("engine: checkpointed %d sub-chunks", saved)
	}
}

// SetPersistence injects the persistence facade.
func (e *Engine) SetPersistence(store *persistence.Store) {
	if store == nil {
		store = persistence.NewNop()
	}
	e.store = store
	if store.Enabled() {
		e.gen.SetLoader(store)
	} else {
		e.gen.SetLoader(nil)
	}
}

// SetSceneSink injects the mesh consumer.
func (e *Engine) SetSceneSink(sink SceneSink) { e.sink = sink }

// SetOpacityCache injects the occlusion collaborator's cache.
func (e *Engine) SetOpacityCache(cache OpacityCache) { e.opacity = cache }

// Reset discards all world state and restarts from a seed. The persisted
// world is wiped only when the seed actually changes.
func (e *Engine) Reset(seed int64) {
	if seed != e.seed && e.store.Enabled() {
		e.store.ClearAll()
	}
	e.seed = seed
	e.mgr.Clear()
	e.gen.Reset(seed)
	e.mesh.Reset()
	e.lights.Reset()
	e.appliedMeshes = make(map[world.SubChunkCoord]bool)
	// The biome assignment is seed-derived, so rebuild the scheduler's map.
	biomeMap := worldgen.NewBiomeMap(seed, e.biomes)
	e.gen.SetBiomeMap(biomeMap)
}

// Dispose checkpoints and stops every worker. The engine is unusable
// afterwards.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.SaveModified()
	e.genPool.Shutdown()
	e.meshPool.Shutdown()
	e.lightPool.Shutdown()
	e.store.Close()
}

// Manager exposes the chunk manager for collaborators that need direct
// read access (physics reads blocks through GetBlock instead).
func (e *Engine) Manager() *world.ChunkManager { return e.mgr }

// Seed returns the active world seed.
func (e *Engine) Seed() int64 { return e.seed }
