package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/internal/server/response"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

type fakeFeed struct {
	mu        sync.Mutex
	artifacts map[string][]byte
	reads     int
	accepted  bool
	hooks     []worldfeed.CycleHook
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{artifacts: map[string][]byte{
		"pc/alerts.json":       []byte(`[{"id":"a1"}]`),
		"pc/invasionsraw.txt":  []byte("inv1|SolNode3\n"),
		"ps4/alerts.json":      []byte(`[]`),
		"pc/notifications.bin": []byte{0x01},
	}}
}

func (f *fakeFeed) Regions() []worldstate.Region {
	return []worldstate.Region{worldstate.RegionPC, worldstate.RegionPS4}
}

func (f *fakeFeed) Status() ([]worldfeed.RegionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []worldfeed.RegionStatus
	for _, r := range f.Regions() {
		st := worldfeed.RegionStatus{Region: r, Feed: "http://feed/" + r.String()}
		if f.accepted && r == worldstate.RegionPC {
			st.Checkpoint = store.Checkpoint{LastFeedTime: 1475600000, BuildLabel: "2016.10.04"}
		}
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeFeed) Artifact(region worldstate.Region, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	data, ok := f.artifacts[region.String()+"/"+name]
	if !ok {
		return nil, errors.NewNotFoundError("artifact", name)
	}
	return data, nil
}

func (f *fakeFeed) Versions(region worldstate.Region) ([]worldstate.VersionRecord, error) {
	if region != worldstate.RegionPC {
		return nil, nil
	}
	return []worldstate.VersionRecord{{BuildLabel: "2016.10.04", DetectTime: 1475600000}}, nil
}

func (f *fakeFeed) OnCycle(fn worldfeed.CycleHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
}

func (f *fakeFeed) finishCycle(report *worldfeed.CycleReport) {
	f.mu.Lock()
	hooks := append([]worldfeed.CycleHook(nil), f.hooks...)
	f.mu.Unlock()
	for _, fn := range hooks {
		fn(report)
	}
}

func (f *fakeFeed) set(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[key] = data
}

type fakeAdmin struct {
	mu      sync.Mutex
	tick    int
	reloads int
	fail    error
}

func (a *fakeAdmin) Tick() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick
}

func (a *fakeAdmin) SetTick(tick int) error {
	if tick < 0 {
		return errors.NewValidationError("tick", tick, "tick must not be negative")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tick = tick
	return nil
}

func (a *fakeAdmin) Reload(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	return a.fail
}

type testServer struct {
	feed  *fakeFeed
	admin *fakeAdmin
	srv   *Server
	http  *httptest.Server
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AdminKey = "s3cret"
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	ts := &testServer{feed: newFakeFeed(), admin: &fakeAdmin{tick: 59}}
	ts.srv = New(ts.feed, cfg, WithAdmin(ts.admin))
	ts.srv.Start()
	ts.http = httptest.NewServer(ts.srv.Handler())
	t.Cleanup(func() {
		ts.http.Close()
		_ = ts.srv.Shutdown(context.Background())
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func envelope(t *testing.T, body []byte) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestServerNewDoesNotBlock(t *testing.T) {
	done := make(chan *Server, 1)
	go func() { done <- New(newFakeFeed(), Config{}) }()
	select {
	case srv := <-done:
		require.NotNil(t, srv)
		assert.Equal(t, time.Minute, srv.config.CacheTTL)
		assert.NoError(t, srv.Shutdown(context.Background()))
	case <-time.After(5 * time.Second):
		t.Fatal("New blocked before Start")
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "worldfeed-api")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ts.feed.mu.Lock()
	ts.feed.accepted = true
	ts.feed.mu.Unlock()
	resp, body = ts.do(t, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope(t, body).Data.(map[string]any)
	assert.Equal(t, float64(1), data["regions_ready"])
}

func TestRegions(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/regions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope(t, body).Data.(map[string]any)
	assert.Equal(t, float64(2), data["count"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/PS4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ps4", envelope(t, body).Data.(map[string]any)["region"])

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/regions/xbox", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "region without a feed")
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/regions/mars", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/pc/versions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "2016.10.04")
}

func TestArtifactsAreCachedUntilCycle(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/alerts.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Equal(t, `[{"id":"a1"}]`, string(body))

	ts.feed.set("pc/alerts.json", []byte(`[]`))
	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/alerts.json", "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, `[{"id":"a1"}]`, string(body))

	// A cycle of another region keeps pc cached.
	ts.feed.finishCycle(&worldfeed.CycleReport{Region: worldstate.RegionPS4, Written: []string{"alerts.json"}})
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/alerts.json", "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	ts.feed.finishCycle(&worldfeed.CycleReport{Region: worldstate.RegionPC, Written: []string{"alerts.json"}})
	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/alerts.json", "")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Equal(t, `[]`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/invasionsraw.txt", "")
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "inv1|SolNode3\n", string(body))

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/notifications.bin", "")
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	resp, body = ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/missing.json", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", envelope(t, body).Error.Code)
}

func TestAdminRequiresKey(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/admin/tick", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/admin/tick", "", "X-Admin-Key", "s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(59), envelope(t, body).Data.(map[string]any)["tick"])

	resp, body = ts.do(t, http.MethodPut, "/api/v1/admin/tick", `{"tick": 359}`, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(359), envelope(t, body).Data.(map[string]any)["tick"])
	assert.Equal(t, 359, ts.admin.Tick())

	resp, _ = ts.do(t, http.MethodPut, "/api/v1/admin/tick", `{"tick": -1}`, "X-Admin-Key", "s3cret")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, "/api/v1/admin/tick", `{}`, "X-Admin-Key", "s3cret")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, "/api/v1/admin/tick", `tick=3`, "X-Admin-Key", "s3cret")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 359, ts.admin.Tick())

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/admin/stats", "", "X-Admin-Key", "s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminReload(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/api/v1/regions/pc/artifacts/alerts.json", "")
	require.Equal(t, 1, ts.srv.Cache().ItemCount())

	resp, body := ts.do(t, http.MethodPost, "/api/v1/admin/reload", "", "X-Admin-Key", "s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), envelope(t, body).Data.(map[string]any)["cache_cleared"])
	assert.Zero(t, ts.srv.Cache().ItemCount())

	ts.admin.mu.Lock()
	ts.admin.fail = errors.NewConfigError("config", "invalid feeds", nil)
	ts.admin.mu.Unlock()
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/admin/reload", "", "X-Admin-Key", "s3cret")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 2, ts.admin.reloads)
}

func TestAdminRoutesNeedKeyConfigured(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.AdminKey = "" })
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/admin/tick", "", "X-Admin-Key", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitAndCORS(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.RateLimit = 2
		c.CORSOrigins = []string{"https://status.example"}
	})

	resp, _ := ts.do(t, http.MethodGet, "/health", "", "Origin", "https://status.example")
	assert.Equal(t, "https://status.example", resp.Header.Get("Access-Control-Allow-Origin"))
	ts.do(t, http.MethodGet, "/health", "")
	resp, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", envelope(t, body).Error.Code)
}

func TestWebSocketStreamsRegionEvents(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/v1/updates/ws?region=pc"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	// Registration is asynchronous; publish until the client sees the event.
	received := make(chan map[string]any, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["region"] == "pc" {
				received <- msg
				return
			}
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		ts.srv.Broker().Publish(events.CycleFailed, map[string]any{"region": worldstate.RegionPS4, "error": "ignored"})
		ts.srv.Broker().Publish(events.CycleFailed, map[string]any{"region": worldstate.RegionPC, "error": "fetch failed"})
		select {
		case msg := <-received:
			assert.Equal(t, string(events.CycleFailed), msg["type"])
			assert.Equal(t, "fetch failed", msg["data"].(map[string]any)["error"])
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received over WebSocket")
		}
	}
}

func TestStreamsRejectUnknownRegion(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/updates/sse?region=mars", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/updates/ws?region=xbox", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
