package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/respkv-go/internal/core/command"
	"github.com/yndnr/respkv-go/internal/server/redisserver"
	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/internal/telemetry/logger"
	"github.com/yndnr/respkv-go/internal/telemetry/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================
// Routes
// ============================================================

func TestHealthz(t *testing.T) {
	saved := time.Unix(1700000000, 0)
	h := NewRouter(RouterConfig{
		Version:     "1.2.3",
		Keys:        func() int { return 7 },
		Connections: func() int { return 2 },
		LastSave:    func() time.Time { return saved },
		Logger:      discardLogger(),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get(HeaderRequestID), "req-"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "1.2.3", st.Version)
	assert.Equal(t, 7, st.Keys)
	assert.Equal(t, 2, st.Connections)
	assert.Equal(t, saved.Unix(), st.LastSave)
}

func TestHealthz_MethodNotAllowed(t *testing.T) {
	h := NewRouter(RouterConfig{Logger: discardLogger()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metric.New()
	m.ConnOpened()
	h := NewRouter(RouterConfig{Metrics: m.Handler(), Logger: discardLogger()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "respkv_connections_active 1")
}

func TestOptionalRoutesDisabled(t *testing.T) {
	h := NewRouter(RouterConfig{Logger: discardLogger()})

	for _, path := range []string{"/metrics", "/ws"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

// ============================================================
// Middleware
// ============================================================

func TestRequestID_ReusesClientID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))

	req.Header.Set(HeaderRequestID, "bad id\n")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, strings.HasPrefix(seen, "req-"), seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("01HREQ-abc"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("with space"))
	assert.False(t, validRequestID(strings.Repeat("x", maxRequestIDLen+1)))
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(log), RequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "/brew", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}

// ============================================================
// WebSocket
// ============================================================

func newWSServer(t *testing.T) string {
	t.Helper()
	redis := redisserver.New(redisserver.Config{}, command.NewEngine(memory.New()),
		redisserver.WithLogger(discardLogger()))
	srv := httptest.NewServer(NewRouter(RouterConfig{Stream: redis, Logger: discardLogger()}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = redis.Shutdown(ctx)
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocket_RESPSession(t *testing.T) {
	conn, _, err := websocket.DefaultDialer.Dial(newWSServer(t), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(msg))

	// A request split across two messages.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("*2\r\n$3\r\nGET")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("\r\n$1\r\nk\r\n")))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "$1\r\nv\r\n", string(msg))
}

func TestWebSocket_QuitCloses(t *testing.T) {
	conn, _, err := websocket.DefaultDialer.Dial(newWSServer(t), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("*1\r\n$4\r\nQUIT\r\n")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(msg))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

// ============================================================
// Server
// ============================================================

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewRouter(RouterConfig{Logger: discardLogger()}), discardLogger())
	assert.Nil(t, s.Addr())
	require.NoError(t, s.Start())

	res, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
