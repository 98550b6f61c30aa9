package web

import (
	"fmt"
	"log/slog"
	"net/http"
)

// mjpegBoundary delimits frames in the multipart stream. Browser <img>
// tags consume this natively.
const mjpegBoundary = "frame"

// handleStream serves the live preview as a multipart JPEG stream. One
// encode feeds every consumer: each connection just waits for the next
// published frame and writes it out, so consumers observe frames in
// publish order and a slow client only affects itself.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-store")

	slog.Debug("mjpeg consumer connected", "remote", r.RemoteAddr)

	var lastSeq uint64
	for {
		frame, err := s.ctrl.NextPreview(r.Context(), lastSeq)
		if err != nil {
			// Client went away.
			slog.Debug("mjpeg consumer disconnected", "remote", r.RemoteAddr)
			return
		}
		lastSeq = frame.Seq

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			mjpegBoundary, len(frame.JPEG)); err != nil {
			return
		}
		if _, err := w.Write(frame.JPEG); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
