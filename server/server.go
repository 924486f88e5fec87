// Package server is the web viewer: it streams the canvas as PNG frames
// over a websocket, accepts parameter controls from the browser and
// exports prometheus metrics.
package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/simulation"
)

//go:embed index.html
var indexHTML []byte

const writeTimeout = 5 * time.Second

// Status is the JSON text message sent alongside every frame.
type Status struct {
	Type    string            `json:"type"`
	Frame   int64             `json:"frame"`
	SimTime float64           `json:"sim_time"`
	Steps   int64             `json:"steps"`
	FPS     float64           `json:"fps"` // 0 until the counter has a finite reading
	Paused  bool              `json:"paused"`
	Params  simulation.Params `json:"params"`
	Width   int               `json:"width"`
	Height  int               `json:"height"`
}

// errorMessage reports a rejected control back to its sender.
type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Server fans frames out to websocket clients and forwards their controls
// into a game mailbox.
type Server struct {
	controls *game.Mailbox
	metrics  *Metrics
	interval time.Duration
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	statusMu   sync.RWMutex
	lastStatus []byte

	lastFrame time.Time
}

// New creates a server posting controls into controls. Frames are
// broadcast at most once per interval.
func New(controls *game.Mailbox, metrics *Metrics, interval time.Duration) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		controls: controls,
		metrics:  metrics,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:     http.NewServeMux(),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
	s.mux.HandleFunc("/", s.serveHome)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	return s
}

// Handler returns the HTTP handler serving /, /ws and /metrics.
func (s *Server) Handler() http.Handler { return s.mux }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("web viewer listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close disconnects every client.
func (s *Server) Close() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.metrics.Clients.Set(0)
}

func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = connMu
	s.metrics.Clients.Set(float64(len(s.clients)))
	s.clientsMu.Unlock()
	defer s.removeClient(conn)

	s.statusMu.RLock()
	initial := s.lastStatus
	s.statusMu.RUnlock()
	if initial == nil {
		initial, _ = json.Marshal(Status{Type: "status"})
	}
	if err := s.write(conn, connMu, websocket.TextMessage, initial); err != nil {
		return
	}

	for {
		var c game.Control
		if err := conn.ReadJSON(&c); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}
		if err := s.controls.Post(c); err != nil {
			s.metrics.ObserveControl(c.Type, false)
			msg, _ := json.Marshal(errorMessage{Type: "error", Error: err.Error()})
			if err := s.write(conn, connMu, websocket.TextMessage, msg); err != nil {
				return
			}
			continue
		}
		s.metrics.ObserveControl(c.Type, true)
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.metrics.Clients.Set(float64(len(s.clients)))
	s.clientsMu.Unlock()
}

func (s *Server) write(conn *websocket.Conn, mu *sync.Mutex, kind int, data []byte) error {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(kind, data)
}

// StatusOf snapshots g for the viewer.
func StatusOf(g *game.Game) Status {
	sim := g.Simulation()
	fps := g.FPS()
	if math.IsInf(fps, 0) || math.IsNaN(fps) {
		fps = 0
	}
	return Status{
		Type:    "status",
		Frame:   g.FrameCount(),
		SimTime: sim.SimulationTime(),
		Steps:   sim.Steps(),
		FPS:     fps,
		Paused:  g.Scheduler().Paused(),
		Params:  sim.Params(),
		Width:   sim.Width(),
		Height:  sim.Height(),
	}
}

// Publish updates metrics and, when the frame interval has elapsed and
// anyone is watching, broadcasts the status and the canvas. Call it from
// the frame goroutine after Game.Frame.
func (s *Server) Publish(g *game.Game) error {
	st := StatusOf(g)
	s.metrics.observeStatus(st)

	status, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	s.statusMu.Lock()
	s.lastStatus = status
	s.statusMu.Unlock()

	now := time.Now()
	if s.interval > 0 && now.Sub(s.lastFrame) < s.interval {
		return nil
	}
	if s.clientCount() == 0 {
		return nil
	}
	s.lastFrame = now

	frame, err := s.encodeFrame(g.Simulation().CanvasSurface())
	if err != nil {
		return err
	}
	s.broadcast(websocket.TextMessage, status)
	s.broadcast(websocket.BinaryMessage, frame)
	return nil
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) encodeFrame(surface compute.Surface) ([]byte, error) {
	start := time.Now()
	img, err := compute.SurfaceImage(surface)
	if err != nil {
		return nil, fmt.Errorf("reading canvas: %w", err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	s.metrics.Encode.Observe(time.Since(start).Seconds())
	return buf.Bytes(), nil
}

func (s *Server) broadcast(kind int, data []byte) {
	s.clientsMu.RLock()
	var failed []*websocket.Conn
	for conn, mu := range s.clients {
		if err := s.write(conn, mu, kind, data); err != nil {
			slog.Warn("websocket write failed", "error", err)
			conn.Close()
			failed = append(failed, conn)
		}
	}
	s.clientsMu.RUnlock()

	for _, conn := range failed {
		s.removeClient(conn)
	}
}
