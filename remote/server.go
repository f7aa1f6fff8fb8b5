package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-midikeys/debug"
	"go-midikeys/engine"
)

const (
	writeWait   = 5 * time.Second
	inboundSize = 64
	sendSize    = 256
)

// Server accepts websocket clients, one Session per connection. Sessions
// share the output and the device manager.
type Server struct {
	out      engine.Output
	devices  Devices
	sink     debug.Sink
	opts     []engine.Option
	rate     int
	origins  map[string]bool
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

// NewServer creates a server. opts are applied to every session's engine;
// rateHz is the session tick rate and should match the engine's touch rate.
func NewServer(out engine.Output, devices Devices, sink debug.Sink, rateHz int, opts ...engine.Option) *Server {
	if rateHz <= 0 {
		rateHz = engine.DefaultRate
	}
	if sink == nil {
		sink = debug.Discard
	}
	s := &Server{
		out:     out,
		devices: devices,
		sink:    sink,
		opts:    opts,
		rate:    rateHz,
		origins: make(map[string]bool),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// AllowOrigins lets browser pages served from other origins connect, such as
// "http://192.168.1.20:3000". "*" allows any origin. Call before serving.
func (s *Server) AllowOrigins(origins ...string) {
	for _, o := range origins {
		s.origins[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
}

// checkOrigin accepts clients that send no Origin (not a browser), pages from
// the server's own host, and the allowed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.origins["*"] || s.origins[strings.ToLower(origin)] {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	debug.Warn("remote", "rejected origin %q from %s", origin, r.RemoteAddr)
	return false
}

// ServeHTTP upgrades the request and runs the session until the client goes
// away or the request context ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("remote", "upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.serve(r.Context(), conn)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)

	hs := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	s.sink.Emit(debug.KindInfo, "Remote surface listening on ws://"+ln.Addr().String()+"/ws")
	err := hs.Serve(ln)
	// hijacked websocket connections are not tracked by Shutdown
	s.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peer := conn.RemoteAddr().String()
	s.sink.Emit(debug.KindSuccess, "Remote client connected: "+peer)
	debug.Log("remote", "client %s connected", peer)

	outbound := make(chan Message, sendSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, outbound)
		cancel()
	}()
	send := func(m Message) {
		select {
		case outbound <- m:
		case <-writerDone:
		}
	}

	inbound := make(chan frame, inboundSize)
	go s.readLoop(ctx, conn, inbound)

	sess := NewSession(s.out, s.devices, s.sink, send, s.opts...)
	ticker := time.NewTicker(time.Second / time.Duration(s.rate))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case f, ok := <-inbound:
			if !ok {
				break loop
			}
			err := f.err
			if err == nil {
				err = sess.Handle(f.msg)
			}
			if err != nil {
				debug.Warn("remote", "%s: %v", peer, err)
				send(Message{Type: TypeError, Message: err.Error()})
			}
		case now := <-ticker.C:
			sess.Tick(now)
		}
	}

	sess.Close()
	close(outbound)
	<-writerDone
	conn.Close()
	s.sink.Emit(debug.KindInfo, "Remote client disconnected: "+peer)
	debug.Log("remote", "client %s disconnected", peer)
}

// frame is one decoded client message, or the reason it could not be decoded.
type frame struct {
	msg Message
	err error
}

// readLoop decodes frames into inbound until the connection fails.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, inbound chan<- frame) {
	defer close(inbound)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Warn("remote", "read: %v", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f.msg); err != nil {
			f.err = fmt.Errorf("bad message: %w", err)
		}
		select {
		case inbound <- f:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, outbound <-chan Message) {
	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				debug.Warn("remote", "write: %v", err)
				return
			}
		case <-ctx.Done():
			// keep draining so the session can flush its final releases
			for msg := range outbound {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if conn.WriteJSON(msg) != nil {
					return
				}
			}
			return
		}
	}
}
