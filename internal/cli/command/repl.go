package command

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/internal/cli/repl"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// REPLCommand returns the repl command. It is also the default action.
func REPLCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Start an interactive session",
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	client, flags, err := Connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	formatter := output.NewFormatter(flags.Output)
	exec := func(ctx context.Context, args []string) (resp.Frame, error) {
		ctx, cancel := context.WithTimeout(ctx, flags.Timeout)
		defer cancel()
		return client.Do(ctx, args...)
	}
	render := func(w io.Writer, reply resp.Frame) error {
		return formatter.Format(w, reply)
	}

	r := repl.New(exec, render,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithPrompt(fmt.Sprintf("%s> ", flags.Server)),
	)
	return r.Run(c.Context)
}

func requestContext(c *cli.Context, flags *GlobalFlags) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, flags.Timeout)
}
