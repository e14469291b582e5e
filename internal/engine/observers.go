package engine

import (
	"voxelstream/internal/meshing"
	"voxelstream/internal/world"
	"voxelstream/internal/worldgen"
)

// Unsubscribe removes a previously registered observer.
type Unsubscribe func()

// Observers are indexed lists: unsubscribing nils the slot so other
// indices stay stable.

// SubscribeMeshAdded registers a callback for every applied mesh.
func (e *Engine) SubscribeMeshAdded(fn func(world.SubChunkCoord, *meshing.Result)) Unsubscribe {
	e.meshAddedSubs = append(e.meshAddedSubs, fn)
	i := len(e.meshAddedSubs) - 1
	return func() { e.meshAddedSubs[i] = nil }
}

// SubscribeMeshRemoved registers a callback for every dropped mesh.
func (e *Engine) SubscribeMeshRemoved(fn func(world.SubChunkCoord)) Unsubscribe {
	e.meshRemovedSubs = append(e.meshRemovedSubs, fn)
	i := len(e.meshRemovedSubs) - 1
	return func() { e.meshRemovedSubs[i] = nil }
}

// SubscribeColumnLightingStarted registers a callback fired when a column
// correction job is dispatched.
func (e *Engine) SubscribeColumnLightingStarted(fn func(world.ChunkCoord)) Unsubscribe {
	e.lightingSubs = append(e.lightingSubs, fn)
	i := len(e.lightingSubs) - 1
	return func() { e.lightingSubs[i] = nil }
}

// SubscribeOrePositionsGenerated registers a callback for worker-reported
// ore placements.
func (e *Engine) SubscribeOrePositionsGenerated(fn func([]worldgen.OrePosition)) Unsubscribe {
	e.oreSubs = append(e.oreSubs, fn)
	i := len(e.oreSubs) - 1
	return func() { e.oreSubs[i] = nil }
}
