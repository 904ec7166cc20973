package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/config"
	"github.com/smazurov/ffpipe/internal/engine"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/media"
	"github.com/smazurov/ffpipe/internal/process"
)

const (
	testUser     = "admin"
	testPassword = "secret"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Device{{
		Name: "cam",
		ID:   "cam-1",
		Capabilities: []catalog.Capability{
			{Width: 640, Height: 480, MaxFPS: 30, PixelFormat: media.PixelFormatI420},
			{Width: 1280, Height: 720, MaxFPS: 30, PixelFormat: media.PixelFormatI420},
			{Width: 1280, Height: 720, MaxFPS: 30, PixelFormat: media.PixelFormatRGB24},
		},
	}, {
		Name: "empty",
		ID:   "empty-1",
	}}, catalog.Default().AudioDevices(media.Record))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultEngine()
	cfg.Record.Command = "cat /dev/zero"
	cfg.Playout.Command = "sh -c 'cat > /dev/null'"

	bus := events.New()
	eng, err := engine.New(cfg, engine.Options{
		Logger: discard,
		Events: bus,
		Process: process.Options{
			Logger:          discard,
			GracefulTimeout: 200 * time.Millisecond,
			KillTimeout:     200 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Stop)

	return NewServer(&Options{
		AuthUsername: testUser,
		AuthPassword: testPassword,
		Engine:       eng,
		Catalog:      testCatalog(),
		EventBus:     bus,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ffpipe_stream_buffers_total 0\n")
		}),
	})
}

// do runs a request against the server with valid credentials unless
// auth is false.
func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token := base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPassword))
		req.Header.Set("Authorization", "Basic "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthNoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct{ Status string }
	decode(t, rec, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestOpenAPISchemaNames(t *testing.T) {
	s := newTestServer(t)
	schemas := s.API().OpenAPI().Components.Schemas.Map()
	for _, name := range []string{"Snapshot", "Status", "FrameSnapshot", "Engine", "Match"} {
		if _, ok := schemas[name]; !ok {
			t.Errorf("schema %q not registered", name)
		}
	}
}

func TestVersionNoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/version", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Version   string
		GoVersion string `json:"go_version"`
	}
	decode(t, rec, &body)
	if body.Version == "" || body.GoVersion == "" {
		t.Errorf("version = %+v", body)
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t)

	if rec := do(t, s, http.MethodGet, "/api/devices", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("without credentials: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.SetBasicAuth(testUser, "wrong")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	// Query parameter fallback for SSE clients.
	token := base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPassword))
	if rec := do(t, s, http.MethodGet, "/api/devices?auth="+token, "", false); rec.Code != http.StatusOK {
		t.Errorf("query auth: status = %d", rec.Code)
	}
}

func TestDeviceRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/devices", "", true)
	var devices struct {
		Devices []catalog.Device
		Count   int
	}
	decode(t, rec, &devices)
	if devices.Count != 2 || devices.Devices[0].ID != "cam-1" {
		t.Errorf("devices = %+v", devices)
	}

	rec = do(t, s, http.MethodGet, "/api/devices/cam-1/capabilities", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("capabilities status = %d", rec.Code)
	}
	var caps struct {
		Capabilities []catalog.Capability
	}
	decode(t, rec, &caps)
	if len(caps.Capabilities) != 3 || caps.Capabilities[2].PixelFormat != media.PixelFormatRGB24 {
		t.Errorf("capabilities = %+v", caps.Capabilities)
	}

	if rec := do(t, s, http.MethodGet, "/api/devices/nope/capabilities", "", true); rec.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/devices/audio", "", true)
	var audio struct {
		Recording []catalog.AudioDevice
		Playout   []catalog.AudioDevice
	}
	decode(t, rec, &audio)
	if len(audio.Recording) != 1 || len(audio.Playout) != 0 {
		t.Errorf("audio devices = %+v", audio)
	}
}

func TestBestMatch(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		device    string
		body      string
		wantCode  int
		wantIndex int
		wantScore int
	}{
		{"exact", "cam-1", `{"width":1280,"height":720,"fps":30,"pixel_format":"i420"}`, 200, 1, 1},
		{"rgb", "cam-1", `{"width":1280,"height":720,"fps":30,"pixel_format":"rgb24"}`, 200, 2, 1},
		{"nearest", "cam-1", `{"width":600,"height":480,"fps":25,"pixel_format":"i420"}`, 200, 0, 1 + 40*40 + 5*5},
		{"bad format", "cam-1", `{"width":640,"height":480,"fps":30,"pixel_format":"h264"}`, 422, 0, 0},
		{"no capabilities", "empty-1", `{"width":640,"height":480,"fps":30}`, 422, 0, 0},
		{"unknown device", "nope", `{"width":640,"height":480,"fps":30}`, 404, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/devices/"+tt.device+"/best-match", tt.body, true)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var match catalog.Match
			decode(t, rec, &match)
			if match.Index != tt.wantIndex || match.Score != tt.wantScore {
				t.Errorf("match = %+v, want index %d score %d", match, tt.wantIndex, tt.wantScore)
			}
		})
	}
}

func TestStreamRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/streams/record/start", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	var st struct {
		Direction  string
		State      string
		BufferSize int `json:"buffer_size"`
	}
	decode(t, rec, &st)
	if st.Direction != "record" || st.State != "running" || st.BufferSize != 1920 {
		t.Errorf("started status = %+v", st)
	}

	rec = do(t, s, http.MethodGet, "/api/streams", "", true)
	var all struct {
		Record struct{ Session string }
		Source string
	}
	decode(t, rec, &all)
	if all.Record.Session == "" || all.Source != engine.SourceLoopback {
		t.Errorf("engine status = %+v", all)
	}

	rec = do(t, s, http.MethodPost, "/api/streams/record/stop", "", true)
	decode(t, rec, &st)
	if st.State != "idle" {
		t.Errorf("state after stop = %q", st.State)
	}

	if rec := do(t, s, http.MethodGet, "/api/streams/sideways", "", true); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown direction: status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/streams/config", "", true)
	var cfg config.Engine
	decode(t, rec, &cfg)
	if cfg.Record.Command != "cat /dev/zero" {
		t.Errorf("config = %+v", cfg.Record)
	}
}

func TestStreamStartInvalidConfig(t *testing.T) {
	s := newTestServer(t)

	cfg := s.engine.Config()
	cfg.Video.Width = 0
	if _, err := s.engine.Apply(cfg); err != nil {
		t.Fatal(err)
	}

	rec := do(t, s, http.MethodPost, "/api/streams/capture/start", "", true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogRoutes(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", BufferSize: 50})
	logging.GetLogger("apitest").Info("hello from test")
	logging.GetLogger("apitest").Info("record side", "direction", "record")

	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/logs?module=apitest&level=info", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var logs struct {
		Entries []logging.LogEntry
		Count   int
		Total   int
	}
	decode(t, rec, &logs)
	if logs.Count != 2 || logs.Entries[0].Message != "hello from test" || logs.Total < 2 {
		t.Errorf("logs = %+v", logs)
	}

	rec = do(t, s, http.MethodGet, "/api/logs?module=apitest&direction=record", "", true)
	decode(t, rec, &logs)
	if logs.Count != 1 || logs.Entries[0].Message != "record side" || logs.Entries[0].Direction != "record" {
		t.Errorf("direction filter: %+v", logs)
	}

	rec = do(t, s, http.MethodPut, "/api/logs/levels/apitest", `{"level":"debug"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("set level status = %d: %s", rec.Code, rec.Body.String())
	}
	var levels map[string]string
	decode(t, rec, &levels)
	if levels["apitest"] != "debug" {
		t.Errorf("levels = %v", levels)
	}

	if rec := do(t, s, http.MethodPut, "/api/logs/levels/apitest", `{"level":"loud"}`, true); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid level: status = %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ffpipe_stream_buffers_total") {
		t.Errorf("metrics: %d %q", rec.Code, rec.Body.String())
	}
}
