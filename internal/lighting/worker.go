package lighting

import (
	"context"
	"fmt"
	"sync"

	"voxelstream/internal/world"
)

// JobKind selects the lighting operation a worker runs.
type JobKind int

const (
	JobRecalculateColumn JobKind = iota
	JobUpdateBlockLighting
)

// Job is one unit of worker lighting work. Subs carry copies of the
// column's present sub-chunks; the worker owns them until the result
// hands them back.
type Job struct {
	Kind  JobKind
	Coord world.ChunkCoord
	Subs  []*SubVolume

	// Block-edit fields (JobUpdateBlockLighting).
	LocalX, GlobalY, LocalZ int
	WasRemoved              bool
	ForceRemeshSubY         int // -1 when unset
}

// SubResult is the post-job light of one sub-chunk plus the pre-job
// snapshot, so the apply step can skip cells that a concurrent fast-path
// job already rewrote.
type SubResult struct {
	SubY     int
	Light    []byte
	Snapshot []byte
	Changed  bool
}

// Result returns a lighting job's output, or Err on failure.
type Result struct {
	Kind            JobKind
	Coord           world.ChunkCoord
	Subs            []SubResult
	ForceRemeshSubY int
	Err             error
}

// Pool runs lighting jobs on a fixed set of workers. Dispatch is
// non-blocking: TryDispatch fails when every worker is occupied and the
// caller retries on a later tick.
type Pool struct {
	prop    *Propagator
	jobs    chan *Job
	results chan *Result

	busy    int
	busyMu  sync.Mutex
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool starts n lighting workers.
func NewPool(n int, prop *Propagator) *Pool {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		prop:    prop,
		jobs:    make(chan *Job, n),
		results: make(chan *Result, n*2),
		workers: n,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// TryDispatch hands a job to an idle worker. Returns false when the whole
// pool is busy.
func (p *Pool) TryDispatch(job *Job) bool {
	p.busyMu.Lock()
	defer p.busyMu.Unlock()
	if p.busy >= p.workers {
		return false
	}
	select {
	case p.jobs <- job:
		p.busy++
		return true
	default:
		return false
	}
}

// Results is drained on the main task; every received result frees one
// worker slot.
func (p *Pool) Results() <-chan *Result { return p.results }

// Release marks one worker idle again. Call once per received result.
func (p *Pool) Release() {
	p.busyMu.Lock()
	if p.busy > 0 {
		p.busy--
	}
	p.busyMu.Unlock()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			res := p.runSafe(job)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) runSafe(job *Job) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Kind: job.Kind, Coord: job.Coord,
				Err: fmt.Errorf("lighting panic at %v: %v", job.Coord, r)}
		}
	}()
	return p.run(job)
}

func (p *Pool) run(job *Job) *Result {
	// Snapshot before mutating so the apply step can diff.
	snapshots := make(map[int][]byte, len(job.Subs))
	for _, s := range job.Subs {
		snap := make([]byte, len(s.Light))
		copy(snap, s.Light)
		snapshots[s.SubY] = snap
	}

	view := NewColumnView(job.Subs)
	res := &Result{Kind: job.Kind, Coord: job.Coord, ForceRemeshSubY: job.ForceRemeshSubY}

	var changedSubs map[int]bool
	switch job.Kind {
	case JobRecalculateColumn:
		p.prop.RecalculateColumn(view)
	case JobUpdateBlockLighting:
		changedSubs = make(map[int]bool)
		for _, subY := range p.prop.UpdateLightingAt(view, job.LocalX, job.GlobalY, job.LocalZ, job.WasRemoved) {
			changedSubs[subY] = true
		}
		// The edited sub-chunk's block data changed regardless of light.
		if subY := world.SubYForWorldY(job.GlobalY); subY >= 0 {
			changedSubs[subY] = true
			// An edit on a sub-chunk seam exposes the adjacent faces.
			localY := job.GlobalY % world.SubChunkHeight
			if localY == 0 && view.Sub(subY-1) != nil {
				changedSubs[subY-1] = true
			}
			if localY == world.SubChunkHeight-1 && view.Sub(subY+1) != nil {
				changedSubs[subY+1] = true
			}
		}
	}

	for _, s := range job.Subs {
		snap := snapshots[s.SubY]
		changed := false
		if changedSubs != nil {
			changed = changedSubs[s.SubY]
		}
		if !changed {
			for i := range s.Light {
				if s.Light[i] != snap[i] {
					changed = true
					break
				}
			}
		}
		res.Subs = append(res.Subs, SubResult{
			SubY:     s.SubY,
			Light:    s.Light,
			Snapshot: snap,
			Changed:  changed,
		})
	}
	return res
}

// Shutdown stops the workers.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
