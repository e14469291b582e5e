package remote

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"voxelstream/internal/meshing"
	"voxelstream/internal/world"
)

// Hub is a websocket SceneSink: applied meshes stream as JSON messages to
// every connected viewer. Each client gets a buffered send channel with a
// dedicated write goroutine so one slow viewer cannot stall the engine.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int]*client
	nextID  int
}

type client struct {
	id   int
	conn *websocket.Conn
	send chan []byte

	closed bool
	mu     sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[int]*client),
	}
}

// ServeHTTP upgrades a viewer connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("remote: upgrade: %v", err)
		return
	}
	h.mu.Lock()
	h.nextID++
	c := &client{id: h.nextID, conn: conn, send: make(chan []byte, 32)}
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writeLoop()
	go h.readLoop(c)
}

// readLoop discards inbound frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// broadcast queues a message for every client; clients with a full buffer
// are dropped rather than blocked on.
func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	var drop []*client
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			drop = append(drop, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range drop {
		log.Printf("remote: dropping slow viewer %d", c.id)
		h.remove(c)
	}
}

// ClientCount reports connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Wire messages.

type meshGroupMsg struct {
	Texture     uint16 `json:"texture"`
	Face        int    `json:"face"`
	Transparent bool   `json:"transparent"`
	Vertices    string `json:"vertices"` // base64 little-endian float32
	Indices     string `json:"indices"`  // base64 little-endian uint16
}

type meshAddedMsg struct {
	Type        string         `json:"type"`
	ChunkX      int64          `json:"chunkX"`
	ChunkZ      int64          `json:"chunkZ"`
	SubY        int            `json:"subY"`
	Opaque      []meshGroupMsg `json:"opaque"`
	Transparent []meshGroupMsg `json:"transparent"`
}

type meshRemovedMsg struct {
	Type   string `json:"type"`
	ChunkX int64  `json:"chunkX"`
	ChunkZ int64  `json:"chunkZ"`
	SubY   int    `json:"subY"`
}

// MeshAdded implements engine.SceneSink.
func (h *Hub) MeshAdded(coord world.SubChunkCoord, res *meshing.Result) {
	if h.ClientCount() == 0 {
		return
	}
	msg := meshAddedMsg{
		Type:   "meshAdded",
		ChunkX: coord.X, ChunkZ: coord.Z, SubY: coord.SubY,
		Opaque:      encodeGroups(res.Opaque),
		Transparent: encodeGroups(res.Transparent),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("remote: encode mesh: %v", err)
		return
	}
	h.broadcast(data)
}

// MeshRemoved implements engine.SceneSink.
func (h *Hub) MeshRemoved(coord world.SubChunkCoord) {
	if h.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(meshRemovedMsg{
		Type: "meshRemoved", ChunkX: coord.X, ChunkZ: coord.Z, SubY: coord.SubY,
	})
	if err != nil {
		return
	}
	h.broadcast(data)
}

func encodeGroups(groups []meshing.MeshGroup) []meshGroupMsg {
	out := make([]meshGroupMsg, 0, len(groups))
	for _, g := range groups {
		out = append(out, meshGroupMsg{
			Texture:     uint16(g.Texture),
			Face:        int(g.Face),
			Transparent: g.Transparent,
			Vertices:    base64.StdEncoding.EncodeToString(floatBytes(g.Vertices)),
			Indices:     base64.StdEncoding.EncodeToString(indexBytes(g.Indices)),
		})
	}
	return out
}

func floatBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func indexBytes(v []uint16) []byte {
	out := make([]byte, len(v)*2)
	for i, x := range v {
		binary.LittleEndian.PutUint16(out[i*2:], x)
	}
	return out
}
