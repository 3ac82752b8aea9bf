package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/respkv-go/internal/cli/connection"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/server/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"respkv-server", "version"}))
	assert.True(t, strings.HasPrefix(out.String(), "respkv-server "))
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "respkv.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  redis:
    addr: 127.0.0.1:7000
    max_clients: 5
storage:
  dir: `+dir+`
log:
  level: warn
`), 0600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESPKV_SERVER__REDIS__MAX_CLIENTS=7\n"), 0600))
	t.Setenv("RESPKV_SERVER__REDIS__MAX_CLIENTS", "")
	os.Unsetenv("RESPKV_SERVER__REDIS__MAX_CLIENTS")

	cfg, loader, err := loadConfig(options{
		configFile: file,
		envFile:    envFile,
		overrides:  map[string]any{"server.redis.addr": "127.0.0.1:7001"},
	})
	require.NoError(t, err)
	require.NotNil(t, loader)

	assert.Equal(t, "127.0.0.1:7001", cfg.Server.Redis.Addr, "flag beats file")
	assert.Equal(t, 7, cfg.Server.Redis.MaxClients, "dotenv beats file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, config.DefaultDBFilename, cfg.Storage.DBFilename, "defaults survive")
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, _, err := loadConfig(options{overrides: map[string]any{"log.level": "loud"}})
	assert.Error(t, err)
}

func TestLogSettingChanges(t *testing.T) {
	var out bytes.Buffer
	rt := config.NewRuntime(config.Default())
	logSettingChanges(rt, slog.New(slog.NewJSONHandler(&out, nil)))

	require.NoError(t, rt.ConfigSet(config.ParamMaxClients, "42"))
	require.NoError(t, rt.ConfigSet(config.ParamRequirePass, "hunter2"))

	logs := out.String()
	assert.Contains(t, logs, `"param":"maxclients","value":"42"`)
	assert.Contains(t, logs, config.Masked)
	assert.NotContains(t, logs, "hunter2")
}

// ============================================================================
// End to end
// ============================================================================

func TestRun_ServesAndSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "respkv.sock")
	file := filepath.Join(dir, "respkv.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  redis:
    addr: ""
    unix_socket: `+sock+`
storage:
  dir: `+dir+`
log:
  level: error
`), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, options{configFile: file}) }()

	var client *connection.Client
	require.Eventually(t, func() bool {
		c, err := connection.Dial(context.Background(), "unix:"+sock, connection.Options{DialTimeout: 100 * time.Millisecond})
		if err != nil {
			return false
		}
		client = c
		return true
	}, 5*time.Second, 20*time.Millisecond)

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	reply, err := client.Do(reqCtx, "SET", "greeting", "hello")
	require.NoError(t, err)
	assert.True(t, reply.Equal(resp.SimpleString("OK")), "reply = %s", reply)
	client.Close()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	_, err = os.Stat(filepath.Join(dir, config.DefaultDBFilename))
	require.NoError(t, err, "snapshot written on shutdown")

	// A second boot loads the snapshot.
	ctx2, cancel2 := context.WithCancel(context.Background())
	done2 := make(chan error, 1)
	go func() { done2 <- run(ctx2, options{configFile: file}) }()
	defer func() {
		cancel2()
		<-done2
	}()

	require.Eventually(t, func() bool {
		c, err := connection.Dial(context.Background(), "unix:"+sock, connection.Options{DialTimeout: 100 * time.Millisecond})
		if err != nil {
			return false
		}
		client = c
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer client.Close()

	reply, err = client.Do(reqCtx, "GET", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(reply.Bulk))
}
