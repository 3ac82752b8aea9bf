package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Prompt is printed before each input line.
const Prompt = "respkv> "

// ExecFunc sends one command to the server and returns its reply.
type ExecFunc func(ctx context.Context, args []string) (resp.Frame, error)

// PrintFunc renders one reply.
type PrintFunc func(w io.Writer, reply resp.Frame) error

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithPrompt overrides the prompt.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      ExecFunc
	print     PrintFunc
	completer *Completer
	history   *History
}

// New creates a REPL that runs commands through exec and renders replies
// with print.
func New(exec ExecFunc, print PrintFunc, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    Prompt,
		exec:      exec,
		print:     print,
		completer: NewCompleter(),
		history:   NewHistory(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the REPL loop. It returns nil on EOF, exit or quit, and the
// exec error when the connection is lost.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: save history: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				fmt.Fprintln(r.output)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		args, err := SplitArgs(line)
		if err != nil {
			fmt.Fprintf(r.output, "(error) %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch strings.ToLower(args[0]) {
		case "exit":
			return nil
		case "help":
			r.help(args[1:])
			continue
		case "clear":
			fmt.Fprint(r.output, "\033[H\033[2J")
			continue
		}

		reply, err := r.exec(ctx, args)
		if err != nil {
			return err
		}
		if err := r.print(r.output, reply); err != nil {
			return err
		}
		if strings.EqualFold(args[0], "quit") {
			return nil
		}
	}
}

func (r *REPL) help(args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	matches := r.completer.Lookup(prefix)
	if len(matches) == 0 {
		fmt.Fprintf(r.output, "no commands match %q\n", prefix)
		return
	}
	for _, h := range matches {
		fmt.Fprintf(r.output, "  %s %s\n      %s\n", h.Name, h.Args, h.Summary)
	}
}
