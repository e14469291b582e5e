package remote

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream/internal/meshing"
	"voxelstream/internal/world"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sampleResult() *meshing.Result {
	return &meshing.Result{
		Opaque: []meshing.MeshGroup{{
			Texture:  3,
			Face:     world.FaceTop,
			Vertices: []float32{0, 1, 2, 0, 0, 0, 1, 0, 1, 1, 1},
			Indices:  []uint16{0, 1, 2, 2, 3, 0},
		}},
	}
}

func TestMeshAddedBroadcast(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)

	// Wait for registration.
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatal("client not registered")
	}

	coord := world.SubChunkCoord{X: 2, Z: -3, SubY: 4}
	h.MeshAdded(coord, sampleResult())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg meshAddedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "meshAdded" || msg.ChunkX != 2 || msg.ChunkZ != -3 || msg.SubY != 4 {
		t.Errorf("header = %+v", msg)
	}
	if len(msg.Opaque) != 1 || msg.Opaque[0].Texture != 3 {
		t.Errorf("groups = %+v", msg.Opaque)
	}
}

func TestMeshRemovedBroadcast(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	h.MeshRemoved(world.SubChunkCoord{X: 1, Z: 1, SubY: 1})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg meshRemovedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "meshRemoved" {
		t.Errorf("type = %q", msg.Type)
	}
}

func TestNoClientsIsCheap(t *testing.T) {
	h := NewHub()
	// Must not block or panic with zero viewers.
	h.MeshAdded(world.SubChunkCoord{}, sampleResult())
	h.MeshRemoved(world.SubChunkCoord{})
}
