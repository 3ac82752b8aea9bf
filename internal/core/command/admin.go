package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

var (
	errPersistenceDisabled = domain.Errorf("persistence is disabled")
	errSaveInProgress      = domain.Errorf("Background save already in progress")
)

var configHelp = []string{
	"CONFIG <subcommand> [<arg> [value] [opt] ...]. Subcommands are:",
	"GET <pattern>",
	"    Return parameters matching the glob-like <pattern> and their values.",
	"SET <directive> <value>",
	"    Set the configuration <directive> to <value>.",
	"RESETSTAT",
	"    Accepted for compatibility. The server keeps no resettable statistics.",
	"HELP",
	"    Print this help.",
}

// CONFIG GET pattern [pattern ...] | CONFIG SET param value [param value ...]
func (e *Engine) cmdConfig(r *Request) (resp.Frame, error) {
	sub := strings.ToUpper(r.Arg(0))
	rest := r.Args[1:]

	switch sub {
	case "GET":
		if len(rest) == 0 {
			return resp.Frame{}, domain.WrongArity("config|get")
		}
		if e.settings == nil {
			return resp.Array(), nil
		}
		var pairs []string
		seen := make(map[string]bool)
		for _, pattern := range rest {
			kv := e.settings.ConfigGet(string(pattern))
			for _, pair := range lo.Chunk(kv, 2) {
				if len(pair) == 2 && !seen[pair[0]] {
					seen[pair[0]] = true
					pairs = append(pairs, pair...)
				}
			}
		}
		return resp.BulkStrings(pairs...), nil

	case "SET":
		if len(rest) == 0 || len(rest)%2 != 0 {
			return resp.Frame{}, domain.WrongArity("config|set")
		}
		if e.settings == nil {
			return resp.Frame{}, domain.Errorf("CONFIG SET is not available")
		}
		for _, pair := range lo.Chunk(rest, 2) {
			name, value := strings.ToLower(string(pair[0])), string(pair[1])
			if err := e.settings.ConfigSet(name, value); err != nil {
				var re *domain.ReplyError
				if errors.As(err, &re) {
					return resp.Frame{}, re
				}
				return resp.Frame{}, domain.Errorf("CONFIG SET failed (possibly related to argument '%s') - %s", name, err.Error())
			}
			e.logger.InfoContext(r.Ctx, "config parameter changed", "param", name)
		}
		return resp.SimpleString("OK"), nil

	case "RESETSTAT":
		return resp.SimpleString("OK"), nil

	case "HELP":
		return resp.BulkStrings(configHelp...), nil

	default:
		return resp.Frame{}, domain.UnknownSubcommand("config", r.Arg(0))
	}
}

// SAVE
func (e *Engine) cmdSave(r *Request) (resp.Frame, error) {
	if e.saver == nil {
		return resp.Frame{}, errPersistenceDisabled
	}
	if err := e.saver.Save(r.Ctx); err != nil {
		e.logger.ErrorContext(r.Ctx, "save failed", "error", err)
		return resp.Frame{}, domain.Errorf("saving the database failed").WithCause(err)
	}
	return resp.SimpleString("OK"), nil
}

// BGSAVE [SCHEDULE]
func (e *Engine) cmdBgSave(r *Request) (resp.Frame, error) {
	if len(r.Args) > 1 || (len(r.Args) == 1 && !equalFold(r.Args[0], "SCHEDULE")) {
		return resp.Frame{}, domain.ErrSyntax
	}
	if e.saver == nil {
		return resp.Frame{}, errPersistenceDisabled
	}
	if !e.bgSaving.CompareAndSwap(false, true) {
		return resp.Frame{}, errSaveInProgress
	}

	go func() {
		defer e.bgSaving.Store(false)

		// Not bound to r.Ctx; the save outlives the requesting connection.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		start := time.Now()
		if err := e.saver.Save(ctx); err != nil {
			e.logger.Error("background save failed", "error", err)
			return
		}
		e.logger.Info("background save completed", "elapsed", time.Since(start))
	}()

	return resp.SimpleString("Background saving started"), nil
}

// LASTSAVE
func (e *Engine) cmdLastSave(r *Request) (resp.Frame, error) {
	if e.saver == nil || e.saver.LastSave().IsZero() {
		return resp.Integer(0), nil
	}
	return resp.Integer(e.saver.LastSave().Unix()), nil
}
