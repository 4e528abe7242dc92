// Package observer streams world state to read-only websocket clients:
// per-tick source summaries and, on request, every voxel change.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"festering.ai/internal/observerproto"
	"festering.ai/internal/protocol"
	"festering.ai/internal/sim/encoding"
	"festering.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readIdleTimeout  = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote serves non-loopback clients too.
	AllowRemote bool

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:          cfg.TickRateHz,
				ChunkSize:           [3]int{world.ChunkSize, world.ChunkSize, cfg.Height},
				Height:              cfg.Height,
				Seed:                cfg.Seed,
				ChunkRadius:         cfg.ChunkRadius,
				SpreadIntervalTicks: cfg.SpreadIntervalTicks,
			},
			BlockPalette: s.world.BlockPalette(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// ChunkHandler serves one loaded chunk as a CHUNK_VOXELS message:
// GET /admin/v1/observer/chunk?cx=&cz=
func (s *Server) ChunkHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		cx, errX := strconv.Atoi(q.Get("cx"))
		cz, errZ := strconv.Atoi(q.Get("cz"))
		if errX != nil || errZ != nil {
			writeError(rw, protocol.ErrorResponse{Code: protocol.ErrBadRequest, Message: "cx and cz must be integers"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
		defer cancel()
		v, err := s.world.ChunkVoxels(ctx, cx, cz)
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(rw, protocol.ErrorResponse{Code: protocol.ErrWorldBusy, Message: "world loop did not answer"})
			return
		}
		if err != nil {
			writeError(rw, protocol.NewErrorResponse(err))
			return
		}
		msg := observerproto.ChunkVoxelsMsg{
			Type:            protocol.TypeChunkVoxels,
			ProtocolVersion: observerproto.Version,
			Tick:            v.Tick,
			CX:              v.CX,
			CZ:              v.CZ,
			Height:          v.Height,
			Encoding:        observerproto.EncodingPal16RLE,
			Palette:         v.Palette,
			Data:            encoding.EncodeRLE(v.Blocks),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(msg)
	}
}

func writeError(rw http.ResponseWriter, resp protocol.ErrorResponse) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(protocol.HTTPStatus(resp.Code))
	_ = json.NewEncoder(rw).Encode(resp)
}

// readSubscribe decodes and schema-checks a SUBSCRIBE message.
func readSubscribe(msg []byte) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	if err := protocol.Validate(protocol.SchemaSubscribe, msg); err != nil {
		return sub, err
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, err
	}
	if sub.ProtocolVersion != observerproto.Version {
		return sub, errVersion
	}
	return sub, nil
}

var errVersion = errors.New("unsupported protocol_version; want " + observerproto.Version)

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := readSubscribe(msg)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		sid := uuid.NewString()
		tickOut := make(chan []byte, 8)
		dataOut := make(chan []byte, 1024)
		select {
		case s.world.ObserverJoin() <- world.ObserverJoinRequest{
			SessionID:     sid,
			TickOut:       tickOut,
			DataOut:       dataOut,
			Changes:       sub.Changes,
			FrontierLimit: sub.FrontierLimit,
		}:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined from %s changes=%v", sid, r.RemoteAddr, sub.Changes)
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(ctx, conn, tickOut, dataOut)
		}()

		// Re-sent SUBSCRIBE messages update the session.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, err := readSubscribe(msg)
			if err != nil {
				continue
			}
			select {
			case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{
				SessionID:     sid,
				Changes:       sub.Changes,
				FrontierLimit: sub.FrontierLimit,
			}:
			default:
				// Dropped under load; the client may resend.
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// writeLoop forwards both outboxes until ctx ends or the world closes them.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, tickOut, dataOut <-chan []byte) {
	for {
		var b []byte
		var ok bool
		select {
		case <-ctx.Done():
			return
		case b, ok = <-dataOut:
		case b, ok = <-tickOut:
		}
		if !ok {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
