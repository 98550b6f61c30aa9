// Package web exposes the HTTP boundary: live preview stream, status and
// clip queries, and the start/stop recording commands. All handlers are
// pure readers of the core's published state or issuers of serialized
// session commands; none of them can stall capture.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zredlined/frc-ai-camera/internal/camera"
	"github.com/zredlined/frc-ai-camera/internal/clipstore"
	"github.com/zredlined/frc-ai-camera/internal/recorder"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// Controller is the slice of the core service the HTTP layer consumes.
type Controller interface {
	Status() types.HealthSnapshot
	Clips() []clipstore.ClipRecord
	StartRecording(label string) (string, error)
	StopRecording() error
	LatestPreview() *types.PreviewFrame
	NextPreview(ctx context.Context, after uint64) (*types.PreviewFrame, error)
	ClipPath(name string) (string, bool)
}

// Server wraps the HTTP server and its routes.
type Server struct {
	ctrl       Controller
	httpServer *http.Server
}

// NewServer builds the route table over the controller.
func NewServer(listen string, ctrl Controller) *Server {
	s := &Server{ctrl: ctrl}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/clips", s.handleClips)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /stream.mjpg", s.handleStream)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)

	s.httpServer = &http.Server{
		Addr:        listen,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: the MJPEG stream is a deliberately unbounded
		// response.
	}

	return s
}

// Handler returns the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	slog.Info("http server starting", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

type clipResponse struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	SizeBytes   int64  `json:"size_bytes"`
	ModifiedTS  int64  `json:"modified_ts"`
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	clips := s.ctrl.Clips()
	out := make([]clipResponse, 0, len(clips))
	for _, c := range clips {
		out = append(out, clipResponse{
			Name:        c.Name,
			DownloadURL: "/download/" + c.Name,
			SizeBytes:   c.SizeBytes,
			ModifiedTS:  c.ModifiedTS,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": out})
}

type startRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		// An empty or malformed body means an empty label; the start
		// command accepts that.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	path, err := s.ctrl.StartRecording(req.Label)
	if err != nil {
		writeJSON(w, commandErrorStatus(err), map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "file": path})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StopRecording(); err != nil {
		writeJSON(w, commandErrorStatus(err), map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, ok := s.ctrl.ClipPath(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", "attachment")
	http.ServeFile(w, r, path)
}

// commandErrorStatus maps session command failures onto HTTP statuses.
func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording), errors.Is(err, recorder.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, camera.ErrDeviceUnavailable), errors.Is(err, camera.ErrDeviceDisconnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
