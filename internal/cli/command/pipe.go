package command

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/internal/cli/repl"
)

// DefaultBatchSize is the number of commands pipelined per round trip.
const DefaultBatchSize = 1000

// PipeCommand returns the pipe command, which pipelines commands read
// from stdin, one per line.
func PipeCommand() *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "Pipeline commands from stdin, one per line",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch",
				Usage: "commands sent per round trip",
				Value: DefaultBatchSize,
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "print only a summary",
			},
		},
		Action: pipeAction,
	}
}

func pipeAction(c *cli.Context) error {
	batchSize := c.Int("batch")
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	client, flags, err := Connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	formatter := output.NewFormatter(flags.Output)
	var sent, failed int

	flush := func(batch [][]string) error {
		if len(batch) == 0 {
			return nil
		}
		ctx, cancel := requestContext(c, flags)
		defer cancel()
		replies, err := client.Pipeline(ctx, batch)
		if err != nil {
			return err
		}
		sent += len(replies)
		for _, reply := range replies {
			if reply.IsError() {
				failed++
			}
			if c.Bool("quiet") {
				continue
			}
			if err := formatter.Format(c.App.Writer, reply); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 64*1024), 64<<20)
	batch := make([][]string, 0, batchSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := repl.SplitArgs(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		batch = append(batch, args)
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := flush(batch); err != nil {
		return err
	}

	if c.Bool("quiet") {
		fmt.Fprintf(c.App.Writer, "replies: %d, errors: %d\n", sent, failed)
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}
