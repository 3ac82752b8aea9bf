package command

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// GET key
func (e *Engine) cmdGet(r *Request) (resp.Frame, error) {
	v, ok := r.Store.Get(r.Arg(0))
	if !ok {
		return resp.NullBulk(), nil
	}
	return resp.Bulk(v), nil
}

// SET key value [EX seconds | PX milliseconds | EXAT unix-s | PXAT unix-ms]
// [NX | XX] [KEEPTTL]
//
// Durations must be non-negative integers; zero expires the key at once.
// When NX or XX blocks the write the reply is a null bulk string.
func (e *Engine) cmdSet(r *Request) (resp.Frame, error) {
	key := r.Arg(0)
	value := r.Args[1]

	var (
		opts      memory.SetOptions
		hasExpire bool
	)
	now := r.Store.Now()

	for i := 2; i < len(r.Args); i++ {
		arg := r.Args[i]
		switch {
		case equalFold(arg, "NX"):
			if opts.XX {
				return resp.Frame{}, domain.ErrSyntax
			}
			opts.NX = true

		case equalFold(arg, "XX"):
			if opts.NX {
				return resp.Frame{}, domain.ErrSyntax
			}
			opts.XX = true

		case equalFold(arg, "KEEPTTL"):
			if hasExpire {
				return resp.Frame{}, domain.ErrSyntax
			}
			opts.KeepTTL = true

		case equalFold(arg, "EX"), equalFold(arg, "PX"),
			equalFold(arg, "EXAT"), equalFold(arg, "PXAT"):
			if hasExpire || opts.KeepTTL || i+1 >= len(r.Args) {
				return resp.Frame{}, domain.ErrSyntax
			}
			i++
			at, err := parseSetExpiry(string(arg), r.Args[i], now)
			if err != nil {
				return resp.Frame{}, err
			}
			opts.ExpireAt = at
			hasExpire = true

		default:
			return resp.Frame{}, domain.ErrSyntax
		}
	}

	// The store owns the value from here; request buffers are not reused.
	if !opts.NX && !opts.XX && !opts.KeepTTL {
		r.Store.Set(key, value, opts.ExpireAt)
		return resp.SimpleString("OK"), nil
	}
	if !r.Store.SetWithOptions(key, value, opts) {
		return resp.NullBulk(), nil
	}
	return resp.SimpleString("OK"), nil
}

// parseSetExpiry converts an EX/PX/EXAT/PXAT argument to an absolute
// instant. Negative or non-integer values are syntax errors.
func parseSetExpiry(modifier string, arg []byte, now time.Time) (time.Time, error) {
	n, err := parseInt(arg)
	if err != nil || n < 0 {
		return time.Time{}, domain.ErrSyntax
	}

	var (
		at time.Time
		ok = true
	)
	switch strings.ToUpper(modifier) {
	case "EX":
		at, ok = expireAfter(now, n, time.Second)
	case "PX":
		at, ok = expireAfter(now, n, time.Millisecond)
	case "EXAT":
		at, ok = expireAfter(time.Unix(0, 0), n, time.Second)
	default:
		at = time.UnixMilli(n)
	}
	if !ok {
		return time.Time{}, domain.InvalidExpire("set")
	}
	return at, nil
}

// DEL key [key ...]
func (e *Engine) cmdDel(r *Request) (resp.Frame, error) {
	deleted := lo.CountBy(r.Args, func(k []byte) bool {
		return r.Store.Delete(string(k))
	})
	return resp.Integer(int64(deleted)), nil
}

// EXISTS key [key ...]
//
// A key given more than once is counted more than once.
func (e *Engine) cmdExists(r *Request) (resp.Frame, error) {
	n := lo.CountBy(r.Args, func(k []byte) bool {
		return r.Store.Exists(string(k))
	})
	return resp.Integer(int64(n)), nil
}

// EXPIRE key seconds / PEXPIRE key milliseconds
//
// A non-positive timeout deletes the key.
func (e *Engine) cmdExpire(r *Request) (resp.Frame, error) {
	n, err := parseInt(r.Args[1])
	if err != nil {
		return resp.Frame{}, err
	}

	unit := time.Second
	if r.Name == "PEXPIRE" {
		unit = time.Millisecond
	}
	at, ok := expireAfter(r.Store.Now(), n, unit)
	if !ok {
		return resp.Frame{}, domain.InvalidExpire(r.Name)
	}
	return resp.Integer(boolReply(r.Store.Expire(r.Arg(0), at))), nil
}

// TTL key / PTTL key
func (e *Engine) cmdTTL(r *Request) (resp.Frame, error) {
	ttl := r.Store.TTL(r.Arg(0))
	switch ttl {
	case memory.NoKey:
		return resp.Integer(-2), nil
	case memory.NoExpiry:
		return resp.Integer(-1), nil
	}

	ms := ttl.Milliseconds()
	if r.Name == "PTTL" {
		return resp.Integer(ms), nil
	}
	return resp.Integer((ms + 500) / 1000), nil
}

// PERSIST key
func (e *Engine) cmdPersist(r *Request) (resp.Frame, error) {
	return resp.Integer(boolReply(r.Store.Persist(r.Arg(0)))), nil
}

// TYPE key
func (e *Engine) cmdType(r *Request) (resp.Frame, error) {
	if r.Store.Exists(r.Arg(0)) {
		return resp.SimpleString("string"), nil
	}
	return resp.SimpleString("none"), nil
}

// KEYS pattern
func (e *Engine) cmdKeys(r *Request) (resp.Frame, error) {
	return resp.BulkStrings(r.Store.Keys(r.Arg(0))...), nil
}

// DBSIZE
func (e *Engine) cmdDBSize(r *Request) (resp.Frame, error) {
	return resp.Integer(int64(r.Store.Len())), nil
}

// FLUSHDB [ASYNC | SYNC] / FLUSHALL [ASYNC | SYNC]
func (e *Engine) cmdFlush(r *Request) (resp.Frame, error) {
	if len(r.Args) > 1 {
		return resp.Frame{}, domain.ErrSyntax
	}
	if len(r.Args) == 1 && !equalFold(r.Args[0], "ASYNC") && !equalFold(r.Args[0], "SYNC") {
		return resp.Frame{}, domain.ErrSyntax
	}

	n := r.Store.Flush()
	e.logger.InfoContext(r.Ctx, "key space flushed", "command", r.Name, "keys", n)
	return resp.SimpleString("OK"), nil
}
