package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/respkv-go/internal/core/command"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/telemetry/logger"
)

const readChunk = 16 * 1024

var (
	replyMaxClients = resp.Error("ERR max number of clients reached")
	replyRateLimit  = resp.Error("ERR rate limit exceeded")
)

// deadliner is implemented by transports that support I/O deadlines.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// ServeStream runs a client session over rwc until the client disconnects,
// sends QUIT, sends a malformed frame, or the server shuts down. remote
// identifies the peer in logs and for rate limiting. rwc is closed on
// return.
func (s *Server) ServeStream(ctx context.Context, rwc io.ReadWriteCloser, remote string) {
	defer rwc.Close()

	if ok, reason := s.admit(rwc); !ok {
		if s.observer != nil {
			s.observer.ConnRejected(reason)
		}
		s.logger.Warn("connection rejected", "remote", remote, "reason", reason)
		if reason == "max_clients" {
			s.setWriteDeadline(rwc)
			_ = resp.Write(rwc, replyMaxClients)
		}
		return
	}
	defer s.release(rwc)

	if s.observer != nil {
		s.observer.ConnOpened()
		defer s.observer.ConnClosed()
	}

	id := ulid.Make().String()
	ctx = logger.WithConnID(ctx, id)
	log := s.logger.With("conn_id", id, "remote", remote)

	stop := context.AfterFunc(ctx, func() { _ = rwc.Close() })
	defer stop()

	log.Debug("connection opened")
	sess := command.NewSession(id, remote)
	reason := s.serve(ctx, rwc, sess, log)
	log.Debug("connection closed", "reason", reason, "commands", sess.Commands())
}

// serve is the session loop. It returns why the session ended.
func (s *Server) serve(ctx context.Context, rwc io.ReadWriteCloser, sess *command.Session, log *slog.Logger) string {
	var (
		buf     = make([]byte, 0, readChunk)
		chunk   = make([]byte, readChunk)
		bw      = bufio.NewWriter(rwc)
		scanner = resp.NewRequestScanner(s.decoder)
		readErr error
	)

	for {
		req, n, err := scanner.Next(buf)
		switch {
		case errors.Is(err, resp.ErrIncomplete):
			// Requests that arrived with the read error are answered first.
			if readErr != nil {
				return s.readFailure(readErr, log)
			}
			s.setReadDeadline(rwc, len(buf) == 0)
			var m int
			m, readErr = rwc.Read(chunk)
			buf = append(buf, chunk[:m]...)
			continue
		case err != nil:
			if s.observer != nil {
				s.observer.ProtocolError()
			}
			log.Warn("protocol error, closing connection", "error", err)
			return "protocol_error"
		}

		buf = append(buf[:0], buf[n:]...)

		// Blank inline lines and empty arrays carry no command.
		if req.Kind == resp.KindArray && !req.Nil && len(req.Elems) == 0 {
			continue
		}

		reply := s.execute(ctx, sess, req, log)

		s.setWriteDeadline(rwc)
		if err := resp.Write(bw, reply); err != nil {
			log.Debug("write failed", "error", err)
			return "write_error"
		}
		if err := bw.Flush(); err != nil {
			log.Debug("write failed", "error", err)
			return "write_error"
		}

		if sess.Closing() {
			return "quit"
		}
	}
}

func (s *Server) execute(ctx context.Context, sess *command.Session, req resp.Frame, log *slog.Logger) resp.Frame {
	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("command", "args", logger.RedactCommand(requestArgs(req)))
	}
	if !s.limiter.allow(sess.RemoteAddr) {
		return replyRateLimit
	}
	return s.engine.Execute(ctx, sess, req)
}

func (s *Server) readFailure(err error, log *slog.Logger) string {
	if errors.Is(err, io.EOF) {
		return "eof"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Debug("connection timed out")
		return "timeout"
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return "closed"
	}
	log.Debug("connection read error", "error", err)
	return "read_error"
}

// setReadDeadline applies the idle timeout between requests and the read
// timeout inside one.
func (s *Server) setReadDeadline(rwc io.ReadWriteCloser, idle bool) {
	d, ok := rwc.(deadliner)
	if !ok {
		return
	}
	timeout := s.cfg.ReadTimeout
	if idle {
		timeout = s.cfg.IdleTimeout
	}
	if timeout <= 0 {
		_ = d.SetReadDeadline(time.Time{})
		return
	}
	_ = d.SetReadDeadline(time.Now().Add(timeout))
}

func (s *Server) setWriteDeadline(w io.Writer) {
	d, ok := w.(deadliner)
	if !ok || s.cfg.WriteTimeout <= 0 {
		return
	}
	_ = d.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
}

func requestArgs(req resp.Frame) [][]byte {
	args := make([][]byte, 0, len(req.Elems))
	for _, el := range req.Elems {
		args = append(args, el.Bulk)
	}
	return args
}
