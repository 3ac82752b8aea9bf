package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/respkv-go/internal/core/command"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/server/config"
	"github.com/yndnr/respkv-go/internal/server/redisserver"
	"github.com/yndnr/respkv-go/internal/storage/memory"
)

func newServer(t *testing.T, cfg redisserver.Config, settings command.Settings) *redisserver.Server {
	t.Helper()
	var opts []command.Option
	if settings != nil {
		opts = append(opts, command.WithSettings(settings))
	}
	srv := redisserver.New(cfg, command.NewEngine(memory.New(), opts...),
		redisserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

// pipeClient connects a Client to an in-process server over net.Pipe.
func pipeClient(t *testing.T) *Client {
	t.Helper()
	srv := newServer(t, redisserver.Config{}, nil)
	cli, conn := net.Pipe()
	go srv.ServeStream(context.Background(), conn, "pipe")

	c := NewClient(cli)
	t.Cleanup(func() { c.Close() })
	return c
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_Do(t *testing.T) {
	c := pipeClient(t)

	reply, err := c.Do(ctxTimeout(t), "PING")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !reply.Equal(resp.SimpleString("PONG")) {
		t.Errorf("reply = %s, want PONG", reply)
	}
}

func TestClient_ErrorReplyIsNotAnError(t *testing.T) {
	c := pipeClient(t)

	reply, err := c.Do(ctxTimeout(t), "NOPE")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !reply.IsError() {
		t.Errorf("reply = %s, want error frame", reply)
	}
}

func TestClient_Pipeline(t *testing.T) {
	c := pipeClient(t)

	replies, err := c.Pipeline(ctxTimeout(t), [][]string{
		{"SET", "k", "v"},
		{"GET", "k"},
		{"ECHO", "hi"},
	})
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}

	want := []resp.Frame{resp.SimpleString("OK"), resp.BulkString("v"), resp.BulkString("hi")}
	if len(replies) != len(want) {
		t.Fatalf("got %d replies, want %d", len(replies), len(want))
	}
	for i := range want {
		if !replies[i].Equal(want[i]) {
			t.Errorf("reply %d = %s, want %s", i, replies[i], want[i])
		}
	}
}

func TestClient_PipelineLargerThanPipeBuffer(t *testing.T) {
	c := pipeClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmds := make([][]string, 1000)
	for i := range cmds {
		cmds[i] = []string{"SET", fmt.Sprintf("key:%04d", i), "value-value-value"}
	}
	replies, err := c.Pipeline(ctx, cmds)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if len(replies) != len(cmds) {
		t.Fatalf("got %d replies, want %d", len(replies), len(cmds))
	}
	for i, r := range replies {
		if !r.Equal(resp.SimpleString("OK")) {
			t.Fatalf("reply %d = %s, want OK", i, r)
		}
	}
}

func TestClient_PipelineLargerThanSocketBuffers(t *testing.T) {
	srv := newServer(t, redisserver.Config{Addr: "127.0.0.1:0"}, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.Addrs()[0].String(), Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	payload := strings.Repeat("x", 64*1024)
	cmds := make([][]string, 256)
	for i := range cmds {
		cmds[i] = []string{"ECHO", payload}
	}
	replies, err := c.Pipeline(ctx, cmds)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if len(replies) != len(cmds) {
		t.Fatalf("got %d replies, want %d", len(replies), len(cmds))
	}
	for i, r := range replies {
		if len(r.Bulk) != len(payload) {
			t.Fatalf("reply %d has %d bytes, want %d", i, len(r.Bulk), len(payload))
		}
	}
}

func TestClient_ConcurrentRequests(t *testing.T) {
	c := pipeClient(t)
	ctx := ctxTimeout(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := string(rune('a' + i))
			reply, err := c.Do(ctx, "ECHO", msg)
			if err != nil {
				errs <- err
				return
			}
			if string(reply.Bulk) != msg {
				errs <- errors.New("reply for " + msg + " was " + reply.String())
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestClient_ServerClose(t *testing.T) {
	c := pipeClient(t)
	ctx := ctxTimeout(t)

	if _, err := c.Do(ctx, "QUIT"); err != nil {
		t.Fatalf("QUIT: %v", err)
	}
	<-c.done

	if _, err := c.Do(ctx, "PING"); err == nil {
		t.Error("Do after server close should fail")
	}
}

func TestClient_Overloaded(t *testing.T) {
	cli, srv := net.Pipe()
	defer srv.Close()
	go io.Copy(io.Discard, srv)

	c := newClient(cli, 1)
	defer c.Close()

	_ = c.Send("PING")
	r := <-c.Send("PING")
	if !errors.Is(r.Err, ErrOverloaded) {
		t.Errorf("err = %v, want ErrOverloaded", r.Err)
	}
}

func TestClient_CloseFailsPending(t *testing.T) {
	cli, srv := net.Pipe()
	defer srv.Close()
	go io.Copy(io.Discard, srv)

	c := NewClient(cli)
	ch := c.Send("PING")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r := <-ch; r.Err == nil {
		t.Error("pending request should fail on close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClient_ContextCancel(t *testing.T) {
	cli, srv := net.Pipe()
	defer srv.Close()
	go io.Copy(io.Discard, srv)

	c := NewClient(cli)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, "PING"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDial_UnixSocketWithAuth(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "respkv.sock")
	rt := config.NewRuntime(config.Default())
	if err := rt.ConfigSet(config.ParamRequirePass, "secret"); err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, redisserver.Config{UnixSocket: sock}, rt)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx := ctxTimeout(t)

	if _, err := Dial(ctx, "unix:"+sock, Options{Password: "wrong"}); err == nil {
		t.Error("Dial with wrong password should fail")
	}

	c, err := Dial(ctx, "unix:"+sock, Options{Password: "secret"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	reply, err := c.Do(ctx, "DBSIZE")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Kind != resp.KindInteger {
		t.Errorf("DBSIZE reply = %s", reply)
	}
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := Dial(ctxTimeout(t), addr, Options{DialTimeout: time.Second}); err == nil {
		t.Error("Dial to closed port should fail")
	}
}
