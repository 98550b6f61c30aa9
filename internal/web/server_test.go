package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zredlined/frc-ai-camera/internal/clipstore"
	"github.com/zredlined/frc-ai-camera/internal/preview"
	"github.com/zredlined/frc-ai-camera/internal/recorder"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// fakeController scripts the core behaviors without touching hardware or
// the filesystem layout of a real service.
type fakeController struct {
	status    types.HealthSnapshot
	clips     []clipstore.ClipRecord
	startErr  error
	stopErr   error
	started   []string
	stops     int
	publisher *preview.Publisher
	clipDir   string
}

func (f *fakeController) Status() types.HealthSnapshot      { return f.status }
func (f *fakeController) Clips() []clipstore.ClipRecord     { return f.clips }
func (f *fakeController) StopRecording() error              { f.stops++; return f.stopErr }
func (f *fakeController) LatestPreview() *types.PreviewFrame { return f.publisher.Latest() }

func (f *fakeController) StartRecording(label string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, label)
	return "/video/20240101_120000_" + label + ".mp4", nil
}

func (f *fakeController) NextPreview(ctx context.Context, after uint64) (*types.PreviewFrame, error) {
	return f.publisher.Next(ctx, after)
}

func (f *fakeController) ClipPath(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".mp4") {
		return "", false
	}
	path := filepath.Join(f.clipDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func newTestServer(t *testing.T) (*fakeController, http.Handler) {
	t.Helper()
	ctrl := &fakeController{
		publisher: preview.NewPublisher(),
		clipDir:   t.TempDir(),
	}
	return ctrl, NewServer("127.0.0.1:0", ctrl).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStatusFields(t *testing.T) {
	ctrl, h := newTestServer(t)
	ctrl.status = types.HealthSnapshot{
		CameraConnected: true,
		MeasuredFPS:     49.8,
		Recording:       true,
		LastError:       "camera: device disconnected",
	}

	w := doRequest(t, h, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got map[string]any
	decodeJSON(t, w, &got)
	if got["camera_connected"] != true {
		t.Error("camera_connected missing or false")
	}
	if got["measured_fps"] != 49.8 {
		t.Errorf("measured_fps = %v, want 49.8", got["measured_fps"])
	}
	if got["recording"] != true {
		t.Error("recording missing or false")
	}
	if got["last_error"] != "camera: device disconnected" {
		t.Errorf("last_error = %v", got["last_error"])
	}
}

func TestStatusOmitsEmptyError(t *testing.T) {
	_, h := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/api/status", "")

	var got map[string]any
	decodeJSON(t, w, &got)
	if _, present := got["last_error"]; present {
		t.Error("last_error should be omitted when empty")
	}
}

func TestClipsListing(t *testing.T) {
	ctrl, h := newTestServer(t)
	ctrl.clips = []clipstore.ClipRecord{
		{Name: "20240102_run.mp4", SizeBytes: 2048, ModifiedTS: 1704182400},
		{Name: "20240101_run.mp4", SizeBytes: 1024, ModifiedTS: 1704096000},
	}

	w := doRequest(t, h, http.MethodGet, "/api/clips", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		Clips []struct {
			Name        string `json:"name"`
			DownloadURL string `json:"download_url"`
			SizeBytes   int64  `json:"size_bytes"`
			ModifiedTS  int64  `json:"modified_ts"`
		} `json:"clips"`
	}
	decodeJSON(t, w, &got)
	if len(got.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(got.Clips))
	}
	if got.Clips[0].DownloadURL != "/download/20240102_run.mp4" {
		t.Errorf("download_url = %q", got.Clips[0].DownloadURL)
	}
	if got.Clips[0].SizeBytes != 2048 {
		t.Errorf("size_bytes = %d", got.Clips[0].SizeBytes)
	}
}

func TestClipsEmptyIsArray(t *testing.T) {
	_, h := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/api/clips", "")
	if !strings.Contains(w.Body.String(), `"clips":[]`) {
		t.Errorf("empty store should serialize as an empty array, got %s", w.Body.String())
	}
}

func TestStartRecording(t *testing.T) {
	ctrl, h := newTestServer(t)

	w := doRequest(t, h, http.MethodPost, "/api/start", `{"label":"yellow_ball"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "yellow_ball" {
		t.Errorf("started = %v", ctrl.started)
	}

	var got map[string]any
	decodeJSON(t, w, &got)
	if got["ok"] != true {
		t.Error("expected ok: true")
	}
	if file, _ := got["file"].(string); !strings.Contains(file, "yellow_ball") {
		t.Errorf("file = %v", got["file"])
	}
}

func TestStartWithEmptyBody(t *testing.T) {
	ctrl, h := newTestServer(t)

	w := doRequest(t, h, http.MethodPost, "/api/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "" {
		t.Errorf("started = %v, want one empty label", ctrl.started)
	}
}

func TestStartConflict(t *testing.T) {
	ctrl, h := newTestServer(t)
	ctrl.startErr = recorder.ErrAlreadyRecording

	w := doRequest(t, h, http.MethodPost, "/api/start", `{"label":"x"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var got map[string]any
	decodeJSON(t, w, &got)
	if got["ok"] != false {
		t.Error("expected ok: false")
	}
	if got["error"] == "" {
		t.Error("expected error message")
	}
}

func TestStopRecording(t *testing.T) {
	ctrl, h := newTestServer(t)

	w := doRequest(t, h, http.MethodPost, "/api/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, want 1", ctrl.stops)
	}
}

func TestStopWhenIdleConflicts(t *testing.T) {
	ctrl, h := newTestServer(t)
	ctrl.stopErr = recorder.ErrNotRecording

	w := doRequest(t, h, http.MethodPost, "/api/stop", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestCommandsRejectGet(t *testing.T) {
	_, h := newTestServer(t)
	if w := doRequest(t, h, http.MethodGet, "/api/start", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/start = %d, want 405", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/stop", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/stop = %d, want 405", w.Code)
	}
}

func TestDownload(t *testing.T) {
	ctrl, h := newTestServer(t)
	payload := []byte("mp4 bytes")
	if err := os.WriteFile(filepath.Join(ctrl.clipDir, "20240101_run.mp4"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, h, http.MethodGet, "/download/20240101_run.mp4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("served body does not match clip contents")
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment" {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestDownloadRejectsBadNames(t *testing.T) {
	ctrl, h := newTestServer(t)
	if err := os.WriteFile(filepath.Join(ctrl.clipDir, "20240101_run.h264"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"missing.mp4",
		"20240101_run.h264",
		"..%2F..%2Fetc%2Fpasswd",
	} {
		w := doRequest(t, h, http.MethodGet, "/download/"+name, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("download %q = %d, want 404", name, w.Code)
		}
	}
}

func TestStreamServesPublishedFrames(t *testing.T) {
	ctrl, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	jpegA := []byte{0xff, 0xd8, 0x01, 0xff, 0xd9}
	jpegB := []byte{0xff, 0xd8, 0x02, 0xff, 0xd9}
	go func() {
		for i := 0; i < 20; i++ {
			ctrl.publisher.Publish(&types.PreviewFrame{Timestamp: time.Now(), JPEG: jpegA})
			ctrl.publisher.Publish(&types.PreviewFrame{Timestamp: time.Now(), JPEG: jpegB})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream.mjpg", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Read two frame parts off the stream.
	reader := bufio.NewReader(resp.Body)
	parts := 0
	for parts < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended after %d parts: %v", parts, err)
		}
		if strings.HasPrefix(line, "--frame") {
			parts++
		}
	}
}
