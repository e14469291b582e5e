package world

import "container/list"

// ChunkManager owns every loaded column. Columns are kept in an
// insertion-order list reinserted on access, giving LRU eviction once
// maxLoadedColumns is exceeded. All access happens on the main task; the
// manager is deliberately unsynchronized.
type ChunkManager struct {
	columns map[ChunkCoord]*list.Element
	order   *list.List // front = oldest
	max     int

	// OnEvict runs before a column is dropped so schedulers can purge
	// their keys and persistence can checkpoint it.
	OnEvict func(col *ChunkColumn)
}

type columnEntry struct {
	coord ChunkCoord
	col   *ChunkColumn
}

// NewChunkManager creates a manager bounded to maxLoadedColumns.
func NewChunkManager(maxLoadedColumns int) *ChunkManager {
	if maxLoadedColumns < 1 {
		maxLoadedColumns = 1
	}
	return &ChunkManager{
		columns: make(map[ChunkCoord]*list.Element),
		order:   list.New(),
		max:     maxLoadedColumns,
	}
}

// Column returns the column at coord, refreshing its LRU position.
// Returns nil when not loaded.
func (m *ChunkManager) Column(coord ChunkCoord) *ChunkColumn {
	e, ok := m.columns[coord]
	if !ok {
		return nil
	}
	m.order.MoveToBack(e)
	return e.Value.(*columnEntry).col
}

// Peek returns the column without refreshing its LRU position.
func (m *ChunkManager) Peek(coord ChunkCoord) *ChunkColumn {
	e, ok := m.columns[coord]
	if !ok {
		return nil
	}
	return e.Value.(*columnEntry).col
}

// LoadColumn returns the existing column or creates one, evicting the
// oldest column when the cap would be exceeded.
func (m *ChunkManager) LoadColumn(coord ChunkCoord) *ChunkColumn {
	if col := m.Column(coord); col != nil {
		return col
	}
	col := NewChunkColumn(coord)
	e := m.order.PushBack(&columnEntry{coord: coord, col: col})
	m.columns[coord] = e
	for m.order.Len() > m.max {
		oldest := m.order.Front()
		m.evict(oldest)
	}
	return col
}

// Unload disposes the column at coord if present. Returns true on removal.
func (m *ChunkManager) Unload(coord ChunkCoord) bool {
	e, ok := m.columns[coord]
	if !ok {
		return false
	}
	m.evict(e)
	return true
}

func (m *ChunkManager) evict(e *list.Element) {
	entry := e.Value.(*columnEntry)
	if m.OnEvict != nil {
		m.OnEvict(entry.col)
	}
	m.order.Remove(e)
	delete(m.columns, entry.coord)
}

// Len returns the number of loaded columns.
func (m *ChunkManager) Len() int { return m.order.Len() }

// Has reports whether a column is loaded without touching LRU order.
func (m *ChunkManager) Has(coord ChunkCoord) bool {
	_, ok := m.columns[coord]
	return ok
}

// Each calls fn for every loaded column in LRU order (oldest first).
// fn must not load or unload columns.
func (m *ChunkManager) Each(fn func(col *ChunkColumn)) {
	for e := m.order.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*columnEntry).col)
	}
}

// Coords returns the coordinates of all loaded columns.
func (m *ChunkManager) Coords() []ChunkCoord {
	out := make([]ChunkCoord, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*columnEntry).coord)
	}
	return out
}

// Clear unloads every column (used by engine reset).
func (m *ChunkManager) Clear() {
	for m.order.Len() > 0 {
		m.evict(m.order.Front())
	}
}

// SubChunkAt resolves a sub-chunk coordinate to the loaded sub-chunk, or
// nil when its column or slot is absent.
func (m *ChunkManager) SubChunkAt(coord SubChunkCoord) *SubChunk {
	col := m.Peek(coord.Column())
	if col == nil {
		return nil
	}
	return col.SubChunk(coord.SubY, false)
}
