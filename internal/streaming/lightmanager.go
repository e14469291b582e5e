package streaming

import (
	"log"
	"time"

	"voxelstream/internal/lighting"
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
)

// LightingManager runs the background correction loop: per-sub-chunk
// generation lacks full column context, so columns are periodically
// relit by workers and light is walked across column seams on the main
// task. Block edits take a high-priority fast path through the same pool.
type LightingManager struct {
	mgr  *world.ChunkManager
	pool *lighting.Pool
	prop *lighting.Propagator

	active    []world.ChunkCoord
	activeSet map[world.ChunkCoord]bool

	pendingAdd    []world.ChunkCoord
	pendingAddSet map[world.ChunkCoord]bool

	lastProcessed map[world.ChunkCoord]time.Time
	pendingJobs   map[world.ChunkCoord]bool

	edgeOrder []world.ChunkCoord
	edgeSet   map[world.ChunkCoord]bool

	fastQueue []fastEdit

	playerCX, playerCZ int64

	columnsPerUpdate int
	maxDistance      int
	nearbyDistance   int
	cooldown         time.Duration
	nearbyCooldown   time.Duration

	rngState uint64
	now      func() time.Time

	// OnSubChanged queues a remesh for a sub-chunk whose light changed.
	OnSubChanged func(coord world.SubChunkCoord, highPriority bool)
	// OnColumnStarted fires when a correction job is dispatched.
	OnColumnStarted func(coord world.ChunkCoord)
}

type fastEdit struct {
	coord                   world.ChunkCoord
	localX, globalY, localZ int
	wasRemoved              bool
}

// LightingParams bundles the pacing knobs.
type LightingParams struct {
	ColumnsPerUpdate int
	MaxDistance      int
	NearbyDistance   int
	Cooldown         time.Duration
	NearbyCooldown   time.Duration
}

// NewLightingManager wires the manager to its pool and propagator.
func NewLightingManager(mgr *world.ChunkManager, pool *lighting.Pool, prop *lighting.Propagator, params LightingParams) *LightingManager {
	if params.ColumnsPerUpdate < 1 {
		params.ColumnsPerUpdate = 1
	}
	return &LightingManager{
		mgr:              mgr,
		pool:             pool,
		prop:             prop,
		activeSet:        make(map[world.ChunkCoord]bool),
		pendingAddSet:    make(map[world.ChunkCoord]bool),
		lastProcessed:    make(map[world.ChunkCoord]time.Time),
		pendingJobs:      make(map[world.ChunkCoord]bool),
		edgeSet:          make(map[world.ChunkCoord]bool),
		columnsPerUpdate: params.ColumnsPerUpdate,
		maxDistance:      params.MaxDistance,
		nearbyDistance:   params.NearbyDistance,
		cooldown:         params.Cooldown,
		nearbyCooldown:   params.NearbyCooldown,
		rngState:         0x9E3779B97F4A7C15,
		now:              time.Now,
	}
}

// SetPlayer updates the distance reference.
func (l *LightingManager) SetPlayer(cx, cz int64) {
	l.playerCX, l.playerCZ = cx, cz
}

// Enqueue schedules a column for correction. At most one pending add is
// promoted to the active queue per tick so bursts of generation don't
// stampede the correction loop.
func (l *LightingManager) Enqueue(coord world.ChunkCoord) {
	if l.activeSet[coord] || l.pendingAddSet[coord] {
		return
	}
	l.pendingAdd = append(l.pendingAdd, coord)
	l.pendingAddSet[coord] = true
}

// SeedEdge marks a column for the cross-seam light pass.
func (l *LightingManager) SeedEdge(coord world.ChunkCoord) {
	if l.edgeSet[coord] {
		return
	}
	l.edgeSet[coord] = true
	l.edgeOrder = append(l.edgeOrder, coord)
}

// QueueBlockChange runs the block-edit fast path: the column is
// serialized and dispatched to any idle worker, ahead of column
// corrections.
func (l *LightingManager) QueueBlockChange(coord world.ChunkCoord, localX, globalY, localZ int, wasRemoved bool) {
	edit := fastEdit{coord: coord, localX: localX, globalY: globalY, localZ: localZ, wasRemoved: wasRemoved}
	if !l.dispatchFast(edit) {
		l.fastQueue = append(l.fastQueue, edit)
	}
}

func (l *LightingManager) dispatchFast(edit fastEdit) bool {
	col := l.mgr.Peek(edit.coord)
	if col == nil {
		return true // column gone, drop silently
	}
	job := &lighting.Job{
		Kind:            lighting.JobUpdateBlockLighting,
		Coord:           edit.coord,
		Subs:            serializeColumn(col),
		LocalX:          edit.localX,
		GlobalY:         edit.globalY,
		LocalZ:          edit.localZ,
		WasRemoved:      edit.wasRemoved,
		ForceRemeshSubY: edit.globalY / world.SubChunkHeight,
	}
	return l.pool.TryDispatch(job)
}

func serializeColumn(col *world.ChunkColumn) []*lighting.SubVolume {
	var subs []*lighting.SubVolume
	col.EachSubChunk(func(subY int, s *world.SubChunk) {
		subs = append(subs, &lighting.SubVolume{
			SubY:   subY,
			Blocks: s.CopyBlocks(),
			Light:  s.CopyLight(),
		})
	})
	return subs
}

// Tick advances the correction loop one frame.
func (l *LightingManager) Tick() {
	defer profiling.Track("streaming.LightTick")()

	// One promotion per tick.
	if len(l.pendingAdd) > 0 {
		coord := l.pendingAdd[0]
		l.pendingAdd = l.pendingAdd[1:]
		delete(l.pendingAddSet, coord)
		if !l.activeSet[coord] {
			l.active = append(l.active, coord)
			l.activeSet[coord] = true
		}
	}

	// Retry queued fast-path edits before anything else.
	for len(l.fastQueue) > 0 {
		if !l.dispatchFast(l.fastQueue[0]) {
			break
		}
		l.fastQueue = l.fastQueue[1:]
	}

	l.edgePass()
	l.columnPass()
}

// edgePass walks light across up to five columns' seams on the main task.
func (l *LightingManager) edgePass() {
	const perTick = 5
	processed := 0
	for processed < perTick && len(l.edgeOrder) > 0 {
		coord := l.edgeOrder[0]
		l.edgeOrder = l.edgeOrder[1:]
		delete(l.edgeSet, coord)
		processed++

		col := l.mgr.Peek(coord)
		if col == nil {
			continue
		}
		changedAny := false
		for _, dir := range []lighting.Dir{lighting.DirPosX, lighting.DirNegX, lighting.DirPosZ, lighting.DirNegZ} {
			dx, dz := dir.Offset()
			nCol := l.mgr.Peek(world.ChunkCoord{X: coord.X + dx, Z: coord.Z + dz})
			if nCol == nil {
				continue
			}
			for subY := 0; subY < world.SubChunkCount; subY++ {
				target := col.SubChunk(subY, false)
				source := nCol.SubChunk(subY, false)
				if target == nil || source == nil {
					continue
				}
				if l.prop.PropagateFromNeighbor(target.Blocks(), target.Light(), source.Light(), dir) {
					changedAny = true
					target.MarkDirty()
					if l.OnSubChanged != nil {
						l.OnSubChanged(world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: subY}, false)
					}
				}
			}
		}
		if changedAny {
			for _, d := range [4][2]int64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				n := world.ChunkCoord{X: coord.X + d[0], Z: coord.Z + d[1]}
				if l.mgr.Has(n) {
					l.SeedEdge(n)
				}
			}
		}
	}
}

// columnPass dispatches up to columnsPerUpdate correction jobs, sampling
// random queue positions so old entries don't starve new ones.
func (l *LightingManager) columnPass() {
	now := l.now()
	for attempt := 0; attempt < l.columnsPerUpdate; attempt++ {
		if len(l.active) == 0 {
			return
		}
		idx := int(l.nextRand() % uint64(len(l.active)))
		coord := l.active[idx]

		col := l.mgr.Peek(coord)
		if col == nil {
			l.removeActive(idx)
			continue
		}
		dx := coord.X - l.playerCX
		dz := coord.Z - l.playerCZ
		dist2 := dx*dx + dz*dz
		if dist2 > int64(l.maxDistance*l.maxDistance) {
			continue
		}
		if last, ok := l.lastProcessed[coord]; ok {
			cd := l.cooldownFor(coord, dist2)
			if now.Sub(last) < cd {
				continue
			}
		}
		if l.pendingJobs[coord] {
			continue
		}

		job := &lighting.Job{
			Kind:            lighting.JobRecalculateColumn,
			Coord:           coord,
			Subs:            serializeColumn(col),
			ForceRemeshSubY: -1,
		}
		if !l.pool.TryDispatch(job) {
			return // pool saturated, retry next tick
		}
		l.pendingJobs[coord] = true
		l.removeActive(idx)
		if l.OnColumnStarted != nil {
			l.OnColumnStarted(coord)
		}
	}
}

// cooldownFor applies the near/far cooldown with a deterministic 0-50%
// jitter for far columns so rings of chunks don't re-correct in lockstep.
func (l *LightingManager) cooldownFor(coord world.ChunkCoord, dist2 int64) time.Duration {
	if dist2 <= int64(l.nearbyDistance*l.nearbyDistance) {
		return l.nearbyCooldown
	}
	j := world.PositionRandom(0, coord.X, coord.Z, 0xC0)
	return l.cooldown + time.Duration(float64(l.cooldown)*0.5*j)
}

func (l *LightingManager) removeActive(idx int) {
	coord := l.active[idx]
	l.active = append(l.active[:idx], l.active[idx+1:]...)
	delete(l.activeSet, coord)
}

func (l *LightingManager) nextRand() uint64 {
	// xorshift64*; queue sampling needs no more than this.
	x := l.rngState
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	l.rngState = x
	return x * 0x2545F4914F6CDD1D
}

// ApplyResult installs a worker's lighting output. A cell is only
// overwritten where the worker's value differs from its pre-job snapshot,
// so a fast-path edit that landed mid-job survives.
func (l *LightingManager) ApplyResult(res *lighting.Result) {
	defer profiling.Track("streaming.ApplyLightResult")()
	l.pool.Release()
	delete(l.pendingJobs, res.Coord)

	if res.Err != nil {
		log.Printf("lighting: %v", res.Err)
		profiling.Count("streaming.LightErrors")
		l.lastProcessed[res.Coord] = l.now()
		l.readd(res.Coord)
		return
	}

	col := l.mgr.Peek(res.Coord)
	if col == nil {
		return
	}
	high := res.Kind == lighting.JobUpdateBlockLighting
	for _, sr := range res.Subs {
		if !sr.Changed {
			continue
		}
		sub := col.SubChunk(sr.SubY, false)
		if sub == nil {
			continue
		}
		live := sub.Light()
		for i := range sr.Light {
			if sr.Light[i] != sr.Snapshot[i] {
				live[i] = sr.Light[i]
			}
		}
		sub.MarkDirty()
		if l.OnSubChanged != nil {
			l.OnSubChanged(world.SubChunkCoord{X: res.Coord.X, Z: res.Coord.Z, SubY: sr.SubY}, high)
		}
	}

	if res.Kind == lighting.JobRecalculateColumn {
		l.lastProcessed[res.Coord] = l.now()
		l.readd(res.Coord)
		l.SeedEdge(res.Coord)
		for _, d := range [4][2]int64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := world.ChunkCoord{X: res.Coord.X + d[0], Z: res.Coord.Z + d[1]}
			if l.mgr.Has(n) {
				l.SeedEdge(n)
			}
		}
	}
}

func (l *LightingManager) readd(coord world.ChunkCoord) {
	if l.activeSet[coord] || !l.mgr.Has(coord) {
		return
	}
	l.active = append(l.active, coord)
	l.activeSet[coord] = true
}

// HasEdgeBacklog reports pending seam work (drives the budget task).
func (l *LightingManager) HasEdgeBacklog() bool { return len(l.edgeOrder) > 0 }

// PurgeColumn forgets every key of an evicted column.
func (l *LightingManager) PurgeColumn(coord world.ChunkCoord) {
	if l.activeSet[coord] {
		for i, c := range l.active {
			if c == coord {
				l.active = append(l.active[:i], l.active[i+1:]...)
				break
			}
		}
		delete(l.activeSet, coord)
	}
	if l.pendingAddSet[coord] {
		for i, c := range l.pendingAdd {
			if c == coord {
				l.pendingAdd = append(l.pendingAdd[:i], l.pendingAdd[i+1:]...)
				break
			}
		}
		delete(l.pendingAddSet, coord)
	}
	if l.edgeSet[coord] {
		for i, c := range l.edgeOrder {
			if c == coord {
				l.edgeOrder = append(l.edgeOrder[:i], l.edgeOrder[i+1:]...)
				break
			}
		}
		delete(l.edgeSet, coord)
	}
	delete(l.lastProcessed, coord)
	delete(l.pendingJobs, coord)
}

// Reset drops all state (seed change).
func (l *LightingManager) Reset() {
	l.active = nil
	l.activeSet = make(map[world.ChunkCoord]bool)
	l.pendingAdd = nil
	l.pendingAddSet = make(map[world.ChunkCoord]bool)
	l.lastProcessed = make(map[world.ChunkCoord]time.Time)
	l.pendingJobs = make(map[world.ChunkCoord]bool)
	l.edgeOrder = nil
	l.edgeSet = make(map[world.ChunkCoord]bool)
	l.fastQueue = nil
}
