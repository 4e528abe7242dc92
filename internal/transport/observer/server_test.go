package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"festering.ai/internal/observerproto"
	"festering.ai/internal/protocol"
	"festering.ai/internal/sim/encoding"
	"festering.ai/internal/sim/tuning"
	"festering.ai/internal/sim/world"
)

func runningWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := world.ConfigFromTuning("obs", 7, tuning.Defaults())
	cfg.ChunkRadius = 0
	cfg.TickRateHz = 100
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestBootstrapHandler(t *testing.T) {
	w := runningWorld(t)
	s := NewServer(w, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rr := httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "obs" || resp.WorldParams.Seed != 7 || resp.WorldParams.ChunkSize[0] != world.ChunkSize {
		t.Fatalf("bootstrap: %+v", resp)
	}
	if len(resp.BlockPalette) == 0 {
		t.Fatalf("empty block palette")
	}

	req.RemoteAddr = "10.1.2.3:5555"
	rr = httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote status: got %d want 403", rr.Code)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSHandler_StreamsTicks(t *testing.T) {
	w := runningWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	sub := observerproto.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: observerproto.Version, FrontierLimit: 4}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := protocol.Validate(protocol.SchemaTick, msg); err != nil {
		t.Fatalf("tick message: %v (%s)", err, msg)
	}
	var tick observerproto.TickMsg
	if err := json.Unmarshal(msg, &tick); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tick.Type != protocol.TypeTick {
		t.Fatalf("type: got %q", tick.Type)
	}
}

func TestWSHandler_RejectsBadSubscribe(t *testing.T) {
	w := runningWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SUBSCRIBE","protocol_version":"9.9"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("got %v want policy violation close", err)
	}
}

func TestChunkHandler(t *testing.T) {
	w := runningWorld(t)
	h := NewServer(w, nil).ChunkHandler()

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/chunk?"+query, nil)
		req.RemoteAddr = "127.0.0.1:5555"
		rr := httptest.NewRecorder()
		h(rr, req)
		return rr
	}

	rr := get("cx=0&cz=0")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rr.Code, rr.Body.String())
	}
	if err := protocol.Validate(protocol.SchemaChunkVoxels, rr.Body.Bytes()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	var msg observerproto.ChunkVoxelsMsg
	if err := json.Unmarshal(rr.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != protocol.TypeChunkVoxels || msg.Encoding != observerproto.EncodingPal16RLE || msg.CX != 0 || msg.CZ != 0 {
		t.Fatalf("msg: %+v", msg)
	}
	blocks, err := encoding.DecodeRLE(msg.Data, world.ChunkSize*world.ChunkSize*msg.Height)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	for i, id := range blocks {
		if int(id) >= len(msg.Palette) {
			t.Fatalf("block %d: palette id %d out of range %d", i, id, len(msg.Palette))
		}
	}
	if msg.Palette[blocks[0]] == "AIR" {
		t.Fatalf("bottom layer should not be air")
	}

	if rr := get("cx=30&cz=30"); rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), protocol.ErrNotLoaded) {
		t.Fatalf("unloaded: got %d %s", rr.Code, rr.Body.String())
	}
	if rr := get("cx=a&cz=0"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad query: got %d", rr.Code)
	}
}
