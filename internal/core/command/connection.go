package command

import (
	"crypto/subtle"
	"strings"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// PING [message]
func (e *Engine) cmdPing(r *Request) (resp.Frame, error) {
	switch len(r.Args) {
	case 0:
		return resp.SimpleString("PONG"), nil
	case 1:
		return resp.Bulk(r.Args[0]), nil
	default:
		return resp.Frame{}, domain.WrongArity(r.Name)
	}
}

// ECHO message
func (e *Engine) cmdEcho(r *Request) (resp.Frame, error) {
	return resp.Bulk(r.Args[0]), nil
}

// AUTH [username] password
//
// Only the "default" user exists; its password is requirepass.
func (e *Engine) cmdAuth(r *Request) (resp.Frame, error) {
	var user, pass string
	switch len(r.Args) {
	case 1:
		user, pass = "default", r.Arg(0)
	case 2:
		user, pass = r.Arg(0), r.Arg(1)
	default:
		return resp.Frame{}, domain.ErrSyntax
	}

	required := ""
	if e.settings != nil {
		required = e.settings.RequirePass()
	}
	if required == "" {
		if len(r.Args) == 1 {
			return resp.Frame{}, domain.ErrAuthNotConfigured
		}
		// AUTH default <anything> succeeds when no password is set.
		if user == "default" {
			r.Session.authenticated = true
			return resp.SimpleString("OK"), nil
		}
		return resp.Frame{}, domain.ErrInvalidPassword
	}

	if user != "default" || subtle.ConstantTimeCompare([]byte(pass), []byte(required)) != 1 {
		r.Session.authenticated = false
		return resp.Frame{}, domain.ErrInvalidPassword
	}

	r.Session.authenticated = true
	return resp.SimpleString("OK"), nil
}

// QUIT
func (e *Engine) cmdQuit(r *Request) (resp.Frame, error) {
	r.Session.closing = true
	return resp.SimpleString("OK"), nil
}

// SELECT index
//
// Only database 0 exists.
func (e *Engine) cmdSelect(r *Request) (resp.Frame, error) {
	n, err := parseInt(r.Args[0])
	if err != nil {
		return resp.Frame{}, err
	}
	if n != 0 {
		return resp.Frame{}, domain.Errorf("DB index is out of range")
	}
	return resp.SimpleString("OK"), nil
}

// COMMAND [COUNT | INFO name... | DOCS [name...] | LIST]
func (e *Engine) cmdCommand(r *Request) (resp.Frame, error) {
	if len(r.Args) == 0 {
		return e.commandInfo(e.registry.Names()), nil
	}

	sub := strings.ToUpper(r.Arg(0))
	rest := lo.Map(r.Args[1:], func(a []byte, _ int) string { return string(a) })

	switch sub {
	case "COUNT":
		if len(rest) != 0 {
			return resp.Frame{}, domain.Errorf("unknown subcommand or wrong number of arguments for '%s'. Try COMMAND HELP.", sub)
		}
		return resp.Integer(int64(e.registry.Len())), nil

	case "INFO":
		if len(rest) == 0 {
			rest = e.registry.Names()
		}
		return e.commandInfo(rest), nil

	case "DOCS":
		if len(rest) == 0 {
			rest = e.registry.Names()
		}
		var out []resp.Frame
		for _, name := range rest {
			cmd, ok := e.registry.Lookup(name)
			if !ok {
				continue
			}
			out = append(out, resp.BulkString(strings.ToLower(cmd.Name)), cmd.docs())
		}
		return resp.Array(out...), nil

	case "LIST":
		names := lo.Map(e.registry.Names(), func(n string, _ int) string { return strings.ToLower(n) })
		return resp.BulkStrings(names...), nil

	default:
		return resp.Frame{}, domain.UnknownSubcommand("command", r.Arg(0))
	}
}

// commandInfo returns COMMAND INFO entries; unknown names map to null.
func (e *Engine) commandInfo(names []string) resp.Frame {
	out := lo.Map(names, func(name string, _ int) resp.Frame {
		cmd, ok := e.registry.Lookup(name)
		if !ok {
			return resp.NullArray()
		}
		return cmd.info()
	})
	return resp.Array(out...)
}
