package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/internal/infra/clock"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/pkg/glob"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeSettings struct {
	mu     sync.Mutex
	params map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{params: map[string]string{
		"dir":         "/data",
		"dbfilename":  "dump.rdb",
		"requirepass": "",
	}}
}

func (f *fakeSettings) ConfigGet(pattern string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, name := range []string{"dbfilename", "dir", "requirepass"} {
		if glob.MatchFold(pattern, name) {
			out = append(out, name, f.params[name])
		}
	}
	return out
}

func (f *fakeSettings) ConfigSet(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.params[name]; !ok {
		return domain.Errorf("Unknown option or number of arguments for CONFIG SET - '%s'", name)
	}
	if name == "dir" && value == "/nonexistent" {
		return errors.New("no such directory")
	}
	f.params[name] = value
	return nil
}

func (f *fakeSettings) RequirePass() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params["requirepass"]
}

type fakeSaver struct {
	mu    sync.Mutex
	saves int
	err   error
	last  time.Time
}

func (f *fakeSaver) Save(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves++
	f.last = epoch
	return nil
}

func (f *fakeSaver) LastSave() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type recordingObserver struct {
	mu     sync.Mutex
	calls  []string
	failed int
}

func (o *recordingObserver) ObserveCommand(name string, _ time.Duration, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
	if failed {
		o.failed++
	}
}

type harness struct {
	t        *testing.T
	engine   *Engine
	store    *memory.Store
	clock    *clock.Manual
	settings *fakeSettings
	saver    *fakeSaver
	observer *recordingObserver
	sess     *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewManual(epoch)
	store := memory.New(memory.WithClock(clk))
	h := &harness{
		t:        t,
		store:    store,
		clock:    clk,
		settings: newFakeSettings(),
		saver:    &fakeSaver{},
		observer: &recordingObserver{},
		sess:     NewSession("test-conn", "127.0.0.1:1234"),
	}
	h.engine = NewEngine(store,
		WithSettings(h.settings),
		WithSaver(h.saver),
		WithObserver(h.observer),
	)
	return h
}

func (h *harness) do(args ...string) resp.Frame {
	h.t.Helper()
	return h.engine.Execute(context.Background(), h.sess, resp.Command(args...))
}

func assertFrame(t *testing.T, want, got resp.Frame) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func assertError(t *testing.T, got resp.Frame, prefix string) {
	t.Helper()
	require.Equal(t, resp.KindError, got.Kind, "want error, got %s", got)
	assert.True(t, strings.HasPrefix(got.Str, prefix), "error %q lacks prefix %q", got.Str, prefix)
}

// ============================================================================
// Dispatch
// ============================================================================

func TestExecute_PingEcho(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.SimpleString("PONG"), h.do("PING"))
	assertFrame(t, resp.SimpleString("PONG"), h.do("ping"))
	assertFrame(t, resp.BulkString("hello"), h.do("PING", "hello"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'ping' command"), h.do("PING", "a", "b"))

	assertFrame(t, resp.BulkString("hey"), h.do("ECHO", "hey"))
	assertFrame(t, resp.BulkString(""), h.do("EcHo", ""))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'echo' command"), h.do("ECHO"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'echo' command"), h.do("ECHO", "a", "b"))
}

func TestExecute_UnknownCommand(t *testing.T) {
	h := newHarness(t)

	got := h.do("FOOO", "a", "b")
	assertFrame(t, resp.Error("ERR unknown command 'FOOO', with args beginning with: 'a' 'b' "), got)
	assertFrame(t, resp.SimpleString("PONG"), h.do("PING"))
}

func TestExecute_InvalidRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  resp.Frame
		want string
	}{
		{"not an array", resp.BulkString("PING"), "ERR invalid request"},
		{"null array", resp.NullArray(), "ERR invalid request"},
		{"empty array", resp.Array(), "ERR empty request"},
		{"integer element", resp.Array(resp.BulkString("ECHO"), resp.Integer(1)), "ERR invalid request"},
		{"null element", resp.Array(resp.BulkString("ECHO"), resp.NullBulk()), "ERR invalid request"},
		{"simple string verb", resp.Array(resp.SimpleString("PING")), "ERR invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFrame(t, resp.Error(tt.want), h.engine.Execute(ctx, h.sess, tt.req))
		})
	}
}

func TestExecute_NilSession(t *testing.T) {
	h := newHarness(t)
	got := h.engine.Execute(context.Background(), nil, resp.Command("PING"))
	assertFrame(t, resp.SimpleString("PONG"), got)
}

func TestExecute_ObserverAndCounters(t *testing.T) {
	h := newHarness(t)

	h.do("PING")
	h.do("GET")
	h.do("NOPE")

	assert.Equal(t, []string{"ping", "get", "unknown"}, h.observer.calls)
	assert.Equal(t, 2, h.observer.failed)
	assert.Equal(t, uint64(3), h.sess.Commands())
}

func TestRegistry_Extensible(t *testing.T) {
	h := newHarness(t)

	err := h.engine.Registry().Register(&Command{
		Name:  "hello.world",
		Arity: 1,
		Handler: func(r *Request) (resp.Frame, error) {
			return resp.SimpleString("hi " + r.Session.ID), nil
		},
	})
	require.NoError(t, err)
	assertFrame(t, resp.SimpleString("hi test-conn"), h.do("HELLO.WORLD"))

	assert.Error(t, h.engine.Registry().Register(&Command{Name: "GET", Arity: 2, Handler: h.engine.cmdGet}))
	assert.Error(t, h.engine.Registry().Register(&Command{Name: "X", Arity: 0, Handler: h.engine.cmdGet}))
	assert.Error(t, h.engine.Registry().Register(&Command{Name: "Y", Arity: 1}))
}

func TestErrorReply(t *testing.T) {
	assertFrame(t, resp.Error("ERR syntax error"), ErrorReply(domain.ErrSyntax))
	assertFrame(t, resp.Error("ERR disk full"), ErrorReply(errors.New("disk full")))
	assertFrame(t, resp.Error("NOAUTH Authentication required."), ErrorReply(fmt.Errorf("wrap: %w", domain.ErrNoAuth)))
}

// ============================================================================
// SET / GET
// ============================================================================

func TestSetGet(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.NullBulk(), h.do("GET", "foo"))
	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "foo", "bar"))
	assertFrame(t, resp.BulkString("bar"), h.do("GET", "foo"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'get' command"), h.do("GET"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'get' command"), h.do("GET", "a", "b"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'set' command"), h.do("SET", "foo"))
}

func TestSet_Expiry(t *testing.T) {
	h := newHarness(t)

	h.do("SET", "foo", "bar", "PX", "100")
	assertFrame(t, resp.BulkString("bar"), h.do("GET", "foo"))
	h.clock.Advance(200 * time.Millisecond)
	assertFrame(t, resp.NullBulk(), h.do("GET", "foo"))

	h.do("SET", "sec", "v", "ex", "2")
	assertFrame(t, resp.Integer(2000), h.do("PTTL", "sec"))
	h.clock.Advance(2 * time.Second)
	assertFrame(t, resp.NullBulk(), h.do("GET", "sec"))
}

func TestSet_ZeroExpiryExpiresImmediately(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "k", "v", "PX", "0"))
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))

	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "k", "v", "EX", "0"))
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))
}

func TestSet_AbsoluteExpiry(t *testing.T) {
	h := newHarness(t)

	at := epoch.Add(10 * time.Second)
	h.do("SET", "a", "v", "EXAT", fmt.Sprint(at.Unix()))
	assertFrame(t, resp.Integer(10), h.do("TTL", "a"))

	h.do("SET", "b", "v", "PXAT", fmt.Sprint(at.UnixMilli()))
	assertFrame(t, resp.Integer(10000), h.do("PTTL", "b"))

	h.do("SET", "c", "v", "PXAT", "1")
	assertFrame(t, resp.NullBulk(), h.do("GET", "c"))
}

func TestSet_OverwriteClearsTTL(t *testing.T) {
	h := newHarness(t)

	h.do("SET", "k", "v1", "EX", "1")
	h.do("SET", "k", "v2")
	h.clock.Advance(time.Hour)

	assertFrame(t, resp.BulkString("v2"), h.do("GET", "k"))
	assertFrame(t, resp.Integer(-1), h.do("TTL", "k"))
}

func TestSet_SyntaxErrors(t *testing.T) {
	h := newHarness(t)

	tests := [][]string{
		{"SET", "k", "v", "EX"},
		{"SET", "k", "v", "EX", "abc"},
		{"SET", "k", "v", "EX", "-1"},
		{"SET", "k", "v", "PX", "-100"},
		{"SET", "k", "v", "PX", "1.5"},
		{"SET", "k", "v", "EX", "1", "PX", "1"},
		{"SET", "k", "v", "NX", "XX"},
		{"SET", "k", "v", "EX", "1", "KEEPTTL"},
		{"SET", "k", "v", "KEEPTTL", "PX", "1"},
		{"SET", "k", "v", "BOGUS"},
		{"SET", "k", "v", "EX", " 1"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args[3:], "_"), func(t *testing.T) {
			assertFrame(t, resp.Error("ERR syntax error"), h.do(args...))
		})
	}
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))
}

func TestSet_ExpiryOverflow(t *testing.T) {
	h := newHarness(t)
	assertFrame(t, resp.Error("ERR invalid expire time in 'set' command"),
		h.do("SET", "k", "v", "EX", "9223372036854775807"))
}

func TestSet_Conditional(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.NullBulk(), h.do("SET", "k", "v", "XX"))
	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "k", "v1", "NX", "EX", "100"))
	assertFrame(t, resp.NullBulk(), h.do("SET", "k", "v2", "nx"))
	assertFrame(t, resp.BulkString("v1"), h.do("GET", "k"))

	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "k", "v3", "XX", "KEEPTTL"))
	assertFrame(t, resp.Integer(100), h.do("TTL", "k"))
	assertFrame(t, resp.SimpleString("OK"), h.do("SET", "k", "v4", "KEEPTTL"))
	assertFrame(t, resp.Integer(100), h.do("TTL", "k"))
}

func TestSet_BinaryValues(t *testing.T) {
	h := newHarness(t)
	value := "a\x00b\r\nc"

	h.do("SET", "bin", value)
	assertFrame(t, resp.BulkString(value), h.do("GET", "bin"))
}

// ============================================================================
// Key commands
// ============================================================================

func TestDelExists(t *testing.T) {
	h := newHarness(t)
	h.do("SET", "a", "1")
	h.do("SET", "b", "2")

	assertFrame(t, resp.Integer(3), h.do("EXISTS", "a", "b", "a", "missing"))
	assertFrame(t, resp.Integer(2), h.do("DEL", "a", "b", "missing"))
	assertFrame(t, resp.Integer(0), h.do("EXISTS", "a"))
	assertFrame(t, resp.Integer(0), h.do("DEL", "a"))
}

func TestExpireTTLPersist(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.Integer(-2), h.do("TTL", "k"))
	assertFrame(t, resp.Integer(0), h.do("EXPIRE", "k", "10"))

	h.do("SET", "k", "v")
	assertFrame(t, resp.Integer(-1), h.do("TTL", "k"))
	assertFrame(t, resp.Integer(1), h.do("EXPIRE", "k", "10"))
	assertFrame(t, resp.Integer(10), h.do("TTL", "k"))

	h.clock.Advance(1400 * time.Millisecond)
	assertFrame(t, resp.Integer(9), h.do("TTL", "k"))
	assertFrame(t, resp.Integer(8600), h.do("PTTL", "k"))

	assertFrame(t, resp.Integer(1), h.do("PEXPIRE", "k", "500"))
	assertFrame(t, resp.Integer(500), h.do("PTTL", "k"))

	assertFrame(t, resp.Integer(1), h.do("PERSIST", "k"))
	assertFrame(t, resp.Integer(0), h.do("PERSIST", "k"))
	assertFrame(t, resp.Integer(-1), h.do("PTTL", "k"))

	assertFrame(t, resp.Error("ERR value is not an integer or out of range"), h.do("EXPIRE", "k", "soon"))
	assertFrame(t, resp.Error("ERR invalid expire time in 'expire' command"), h.do("EXPIRE", "k", "9223372036854775807"))

	assertFrame(t, resp.Integer(1), h.do("EXPIRE", "k", "-1"))
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))
}

func TestTypeKeysDBSizeFlush(t *testing.T) {
	h := newHarness(t)

	h.do("SET", "user:1", "a")
	h.do("SET", "user:2", "b")
	h.do("SET", "order:1", "c")

	assertFrame(t, resp.SimpleString("string"), h.do("TYPE", "user:1"))
	assertFrame(t, resp.SimpleString("none"), h.do("TYPE", "nope"))
	assertFrame(t, resp.BulkStrings("user:1", "user:2"), h.do("KEYS", "user:*"))
	assertFrame(t, resp.Array(), h.do("KEYS", "x*"))
	assertFrame(t, resp.Integer(3), h.do("DBSIZE"))

	assertFrame(t, resp.Error("ERR syntax error"), h.do("FLUSHDB", "LATER"))
	assertFrame(t, resp.SimpleString("OK"), h.do("FLUSHALL", "async"))
	assertFrame(t, resp.Integer(0), h.do("DBSIZE"))
	assertFrame(t, resp.SimpleString("OK"), h.do("FLUSHDB"))
}

func TestSelect(t *testing.T) {
	h := newHarness(t)
	assertFrame(t, resp.SimpleString("OK"), h.do("SELECT", "0"))
	assertFrame(t, resp.Error("ERR DB index is out of range"), h.do("SELECT", "1"))
	assertFrame(t, resp.Error("ERR value is not an integer or out of range"), h.do("SELECT", "x"))
}

// ============================================================================
// Connection commands
// ============================================================================

func TestAuth(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, domainFrame(domain.ErrAuthNotConfigured), h.do("AUTH", "secret"))
	assertFrame(t, resp.SimpleString("OK"), h.do("AUTH", "default", "anything"))

	h.settings.params["requirepass"] = "secret"
	h.sess = NewSession("fresh", "")

	assertError(t, h.do("GET", "k"), "NOAUTH")
	assertError(t, h.do("PING"), "NOAUTH")
	assertError(t, h.do("AUTH", "wrong"), "WRONGPASS")
	assertError(t, h.do("AUTH", "admin", "secret"), "WRONGPASS")
	assertFrame(t, resp.Error("ERR syntax error"), h.do("AUTH", "a", "b", "c"))

	assertFrame(t, resp.SimpleString("OK"), h.do("AUTH", "secret"))
	assert.True(t, h.sess.Authenticated())
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))

	// A failed AUTH drops a previous authentication.
	assertError(t, h.do("AUTH", "nope"), "WRONGPASS")
	assertError(t, h.do("GET", "k"), "NOAUTH")

	assertFrame(t, resp.SimpleString("OK"), h.do("AUTH", "default", "secret"))
	assertFrame(t, resp.NullBulk(), h.do("GET", "k"))
}

func TestAuth_UnknownCommandBeforeAuth(t *testing.T) {
	h := newHarness(t)
	h.settings.params["requirepass"] = "secret"

	assertError(t, h.do("NOPE"), "ERR unknown command")
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	h.settings.params["requirepass"] = "secret"

	assert.False(t, h.sess.Closing())
	assertFrame(t, resp.SimpleString("OK"), h.do("QUIT"))
	assert.True(t, h.sess.Closing())
}

func TestCommand(t *testing.T) {
	h := newHarness(t)

	count := h.do("COMMAND", "COUNT")
	require.Equal(t, resp.KindInteger, count.Kind)
	assert.Equal(t, int64(h.engine.Registry().Len()), count.Int)

	all := h.do("COMMAND")
	require.Equal(t, resp.KindArray, all.Kind)
	assert.Len(t, all.Elems, h.engine.Registry().Len())

	info := h.do("COMMAND", "INFO", "get", "nope")
	require.Len(t, info.Elems, 2)
	assertFrame(t, resp.Array(
		resp.BulkString("get"),
		resp.Integer(2),
		resp.Array(resp.SimpleString("readonly"), resp.SimpleString("fast")),
		resp.Integer(1), resp.Integer(1), resp.Integer(1),
	), info.Elems[0])
	assert.True(t, info.Elems[1].IsNull())

	docs := h.do("COMMAND", "DOCS", "ping")
	require.Len(t, docs.Elems, 2)
	assertFrame(t, resp.BulkString("ping"), docs.Elems[0])

	list := h.do("COMMAND", "LIST")
	assert.Len(t, list.Elems, h.engine.Registry().Len())

	assertError(t, h.do("COMMAND", "BOGUS"), "ERR unknown subcommand 'BOGUS'")
}

// ============================================================================
// Server commands
// ============================================================================

func TestConfig(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.BulkStrings("dir", "/data"), h.do("CONFIG", "GET", "dir"))
	assertFrame(t, resp.BulkStrings("dbfilename", "dump.rdb", "dir", "/data"), h.do("config", "get", "d*"))
	assertFrame(t, resp.BulkStrings("dir", "/data"), h.do("CONFIG", "GET", "dir", "DIR"))
	assertFrame(t, resp.Array(), h.do("CONFIG", "GET", "nothing"))

	assertFrame(t, resp.SimpleString("OK"), h.do("CONFIG", "SET", "dbfilename", "other.rdb"))
	assertFrame(t, resp.BulkStrings("dbfilename", "other.rdb"), h.do("CONFIG", "GET", "dbfilename"))

	assertError(t, h.do("CONFIG", "SET", "bogus", "1"), "ERR Unknown option")
	assertError(t, h.do("CONFIG", "SET", "dir", "/nonexistent"), "ERR CONFIG SET failed")
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'config|set' command"), h.do("CONFIG", "SET", "dir"))
	assertFrame(t, resp.Error("ERR wrong number of arguments for 'config|get' command"), h.do("CONFIG", "GET"))
	assertError(t, h.do("CONFIG", "BOGUS"), "ERR unknown subcommand")
	assertFrame(t, resp.SimpleString("OK"), h.do("CONFIG", "RESETSTAT"))

	help := h.do("CONFIG", "HELP")
	assert.NotEmpty(t, help.Elems)
	for _, line := range help.Elems {
		assert.NotContains(t, string(line.Bulk), "INFO", "help names a command that is not registered")
	}
}

func TestConfig_WithoutSettings(t *testing.T) {
	e := NewEngine(memory.New())
	sess := NewSession("", "")

	got := e.Execute(context.Background(), sess, resp.Command("CONFIG", "GET", "*"))
	assertFrame(t, resp.Array(), got)

	got = e.Execute(context.Background(), sess, resp.Command("CONFIG", "SET", "dir", "/tmp"))
	assert.True(t, got.IsError())
}

func TestSave(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.Integer(0), h.do("LASTSAVE"))
	assertFrame(t, resp.SimpleString("OK"), h.do("SAVE"))
	assert.Equal(t, 1, h.saver.saves)
	assertFrame(t, resp.Integer(epoch.Unix()), h.do("LASTSAVE"))

	h.saver.err = errors.New("disk full")
	assertFrame(t, resp.Error("ERR saving the database failed"), h.do("SAVE"))
}

func TestBgSave(t *testing.T) {
	h := newHarness(t)

	assertFrame(t, resp.SimpleString("Background saving started"), h.do("BGSAVE"))
	assert.Eventually(t, func() bool {
		h.saver.mu.Lock()
		defer h.saver.mu.Unlock()
		return h.saver.saves == 1
	}, time.Second, time.Millisecond)

	assertFrame(t, resp.Error("ERR syntax error"), h.do("BGSAVE", "NOW"))
}

func TestSave_Disabled(t *testing.T) {
	e := NewEngine(memory.New())
	sess := NewSession("", "")

	for _, verb := range []string{"SAVE", "BGSAVE"} {
		got := e.Execute(context.Background(), sess, resp.Command(verb))
		assertFrame(t, resp.Error("ERR persistence is disabled"), got)
	}
	assertFrame(t, resp.Integer(0), e.Execute(context.Background(), sess, resp.Command("LASTSAVE")))
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentSetsThenGet(t *testing.T) {
	e := NewEngine(memory.New())
	const clients = 32

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := NewSession(fmt.Sprint(i), "")
			e.Execute(context.Background(), sess, resp.Command("SET", "k", fmt.Sprintf("value-%d", i)))
		}(i)
	}
	wg.Wait()

	got := e.Execute(context.Background(), nil, resp.Command("GET", "k"))
	require.Equal(t, resp.KindBulkString, got.Kind)
	assert.Regexp(t, `^value-\d+$`, string(got.Bulk))
}

func domainFrame(err *domain.ReplyError) resp.Frame {
	return resp.Error(err.Error())
}
