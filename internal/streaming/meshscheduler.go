package streaming

import (
	"log"

	"voxelstream/internal/meshing"
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
)

// MeshScheduler feeds the meshing workers: a priority queue for
// player-facing remeshes, a background queue for generation and lighting
// churn, one in-flight job per sub-chunk, and throttled result
// application.
type MeshScheduler struct {
	mgr  *world.ChunkManager
	pool *meshing.WorkerPool

	priority      []world.SubChunkCoord
	prioritySet   map[world.SubChunkCoord]bool
	background    []world.SubChunkCoord
	backgroundSet map[world.SubChunkCoord]bool

	pending       map[world.SubChunkCoord]*world.SubChunk
	pendingRemesh map[world.SubChunkCoord]bool

	pendingResults []*meshing.Result

	backgroundPerTick int
	applyPerTick      int

	// OnMeshReady applies a finished mesh to the scene (engine-provided).
	OnMeshReady func(coord world.SubChunkCoord, res *meshing.Result)
}

// NewMeshScheduler wires the scheduler to the manager and worker pool.
func NewMeshScheduler(mgr *world.ChunkManager, pool *meshing.WorkerPool, backgroundPerTick, applyPerTick int) *MeshScheduler {
	if backgroundPerTick < 1 {
		backgroundPerTick = 1
	}
	if applyPerTick < 1 {
		applyPerTick = 1
	}
	return &MeshScheduler{
		mgr:               mgr,
		pool:              pool,
		prioritySet:       make(map[world.SubChunkCoord]bool),
		backgroundSet:     make(map[world.SubChunkCoord]bool),
		pending:           make(map[world.SubChunkCoord]*world.SubChunk),
		pendingRemesh:     make(map[world.SubChunkCoord]bool),
		backgroundPerTick: backgroundPerTick,
		applyPerTick:      applyPerTick,
	}
}

// Queue requests a mesh build. A sub-chunk already in flight is not
// double-dispatched: forceRequeue instead marks it for exactly one
// follow-up rebuild when the current job lands.
func (m *MeshScheduler) Queue(coord world.SubChunkCoord, highPriority, forceRequeue bool) {
	if forceRequeue {
		m.removeFromQueues(coord)
	}
	if _, inFlight := m.pending[coord]; inFlight {
		if forceRequeue {
			m.pendingRemesh[coord] = true
		}
		return
	}
	if highPriority {
		if m.backgroundSet[coord] {
			delete(m.backgroundSet, coord)
			m.background = removeCoord(m.background, coord)
		}
		if !m.prioritySet[coord] {
			m.priority = append(m.priority, coord)
			m.prioritySet[coord] = true
		}
		return
	}
	if !m.backgroundSet[coord] && !m.prioritySet[coord] {
		m.background = append(m.background, coord)
		m.backgroundSet[coord] = true
	}
}

func (m *MeshScheduler) removeFromQueues(coord world.SubChunkCoord) {
	if m.prioritySet[coord] {
		delete(m.prioritySet, coord)
		m.priority = removeCoord(m.priority, coord)
	}
	if m.backgroundSet[coord] {
		delete(m.backgroundSet, coord)
		m.background = removeCoord(m.background, coord)
	}
}

func removeCoord(list []world.SubChunkCoord, coord world.SubChunkCoord) []world.SubChunkCoord {
	for i, c := range list {
		if c == coord {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Tick dispatches queued work and applies a bounded number of results.
func (m *MeshScheduler) Tick() {
	defer profiling.Track("streaming.MeshTick")()

	for m.pool.IdleWorkers() > 0 && len(m.priority) > 0 {
		coord := m.priority[0]
		m.priority = m.priority[1:]
		delete(m.prioritySet, coord)
		m.dispatch(coord)
	}
	backgroundDispatched := 0
	for m.pool.IdleWorkers() > 0 && len(m.background) > 0 && backgroundDispatched < m.backgroundPerTick {
		coord := m.background[0]
		m.background = m.background[1:]
		delete(m.backgroundSet, coord)
		if m.dispatch(coord) {
			backgroundDispatched++
		}
	}

	m.drainResults()
	m.applyResults()
}

// dispatch snapshots the sub-chunk and its six neighbor boundaries and
// submits the job. Returns true when a job actually went out.
func (m *MeshScheduler) dispatch(coord world.SubChunkCoord) bool {
	sub := m.mgr.SubChunkAt(coord)
	if sub == nil {
		return false
	}
	if _, inFlight := m.pending[coord]; inFlight {
		m.pendingRemesh[coord] = true
		return false
	}

	job := &meshing.Job{
		Coord:  coord,
		Blocks: sub.CopyBlocks(),
		Light:  sub.CopyLight(),
	}
	for f := 0; f < world.FaceCount; f++ {
		face := world.Face(f)
		if n := m.neighborSub(coord, face); n != nil {
			blocks, light := meshing.ExtractBoundary(n, face)
			job.Neighbors.Blocks[face] = blocks
			job.Neighbors.Light[face] = light
		}
	}
	if !m.pool.Submit(job) {
		// No idle worker after all: requeue at the priority head.
		if !m.prioritySet[coord] {
			m.priority = append([]world.SubChunkCoord{coord}, m.priority...)
			m.prioritySet[coord] = true
		}
		return false
	}
	m.pending[coord] = sub
	sub.ClearDirty()
	sub.SetState(world.StateMeshing)
	return true
}

func (m *MeshScheduler) neighborSub(coord world.SubChunkCoord, face world.Face) *world.SubChunk {
	switch face {
	case world.FaceTop:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: coord.SubY + 1})
	case world.FaceBottom:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: coord.SubY - 1})
	case world.FaceEast:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X + 1, Z: coord.Z, SubY: coord.SubY})
	case world.FaceWest:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X - 1, Z: coord.Z, SubY: coord.SubY})
	case world.FaceNorth:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X, Z: coord.Z + 1, SubY: coord.SubY})
	default:
		return m.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X, Z: coord.Z - 1, SubY: coord.SubY})
	}
}

// drainResults moves finished jobs off the worker channel. Application is
// deferred so one frame never uploads an unbounded batch.
func (m *MeshScheduler) drainResults() {
	for {
		select {
		case res := <-m.pool.Results():
			m.pool.Release()
			coord := res.Coord
			delete(m.pending, coord)
			if res.Err != nil {
				log.Printf("meshing: %v", res.Err)
				profiling.Count("streaming.MeshErrors")
				delete(m.pendingRemesh, coord)
				continue
			}
			if m.pendingRemesh[coord] {
				delete(m.pendingRemesh, coord)
				m.Queue(coord, true, false)
			}
			m.pendingResults = append(m.pendingResults, res)
		default:
			return
		}
	}
}

// applyResults installs up to applyPerTick finished meshes.
func (m *MeshScheduler) applyResults() {
	n := 0
	for n < m.applyPerTick && len(m.pendingResults) > 0 {
		res := m.pendingResults[0]
		m.pendingResults = m.pendingResults[1:]
		n++

		sub := m.mgr.SubChunkAt(res.Coord)
		if sub == nil {
			continue // column unloaded while the job ran
		}
		if m.OnMeshReady != nil {
			m.OnMeshReady(res.Coord, res)
		}
		if !sub.IsDirty() {
			sub.SetState(world.StateReady)
		}
	}
}

// HasBacklog reports whether queued or buffered work remains.
func (m *MeshScheduler) HasBacklog() bool {
	return len(m.priority) > 0 || len(m.background) > 0 || len(m.pendingResults) > 0
}

// PurgeColumn forgets every key of an evicted column.
func (m *MeshScheduler) PurgeColumn(coord world.ChunkCoord) {
	for subY := 0; subY < world.SubChunkCount; subY++ {
		sc := world.SubChunkCoord{X: coord.X, Z: coord.Z, SubY: subY}
		m.removeFromQueues(sc)
		delete(m.pending, sc)
		delete(m.pendingRemesh, sc)
	}
}

// Reset drops all queues and buffered results.
func (m *MeshScheduler) Reset() {
	m.priority = nil
	m.background = nil
	m.prioritySet = make(map[world.SubChunkCoord]bool)
	m.backgroundSet = make(map[world.SubChunkCoord]bool)
	m.pending = make(map[world.SubChunkCoord]*world.SubChunk)
	m.pendingRemesh = make(map[world.SubChunkCoord]bool)
	m.pendingResults = nil
}
