package metric

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	keys    int
	expired uint64
}

func (f fakeStats) Len() int             { return f.keys }
func (f fakeStats) ExpiredTotal() uint64 { return f.expired }

func TestObserveCommand(t *testing.T) {
	m := New()

	m.ObserveCommand("get", time.Millisecond, false)
	m.ObserveCommand("get", time.Millisecond, false)
	m.ObserveCommand("set", time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("set", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CommandDuration))
}

func TestConnections(t *testing.T) {
	m := New()

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.ConnRejected("max_clients")
	m.ProtocolError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsRejected.WithLabelValues("max_clients")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolErrors))
}

func TestObserveSave(t *testing.T) {
	m := New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m.ObserveSave(at, 10*time.Millisecond, nil)
	m.ObserveSave(at, 0, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastSaveTimestamp))
}

func TestCollector(t *testing.T) {
	c := NewCollector(fakeStats{keys: 7, expired: 3})

	expected := `
# HELP respkv_keyspace_expired_keys_total Keys removed because their expiry passed
# TYPE respkv_keyspace_expired_keys_total counter
respkv_keyspace_expired_keys_total 3
# HELP respkv_keyspace_keys Live keys in the key space
# TYPE respkv_keyspace_keys gauge
respkv_keyspace_keys 7
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Registry().MustRegister(NewCollector(fakeStats{keys: 1}))
	m.ObserveCommand("ping", time.Microsecond, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `respkv_commands_total{command="ping",status="ok"} 1`)
	assert.Contains(t, string(body), "respkv_keyspace_keys 1")
	assert.Contains(t, string(body), "go_goroutines")
}
