package command

import (
	"strconv"

	"github.com/urfave/cli/v2"
)

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Check that the server is alive",
		ArgsUsage: "[MESSAGE]",
		Action: func(c *cli.Context) error {
			return run(c, append([]string{"PING"}, c.Args().Slice()...)...)
		},
	}
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			return run(c, "GET", c.Args().First())
		},
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set the value of a key",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "ex", Usage: "expire after the given number of seconds"},
			&cli.Int64Flag{Name: "px", Usage: "expire after the given number of milliseconds"},
			&cli.BoolFlag{Name: "nx", Usage: "only set the key if it does not exist"},
			&cli.BoolFlag{Name: "xx", Usage: "only set the key if it already exists"},
			&cli.BoolFlag{Name: "keepttl", Usage: "retain the existing time to live"},
		},
		Action: setAction,
	}
}

func setAction(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	args := []string{"SET", c.Args().Get(0), c.Args().Get(1)}
	if c.IsSet("ex") {
		args = append(args, "EX", strconv.FormatInt(c.Int64("ex"), 10))
	}
	if c.IsSet("px") {
		args = append(args, "PX", strconv.FormatInt(c.Int64("px"), 10))
	}
	if c.Bool("nx") {
		args = append(args, "NX")
	}
	if c.Bool("xx") {
		args = append(args, "XX")
	}
	if c.Bool("keepttl") {
		args = append(args, "KEEPTTL")
	}
	return run(c, args...)
}

// DelCommand returns the del command.
func DelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "Delete one or more keys",
		ArgsUsage: "KEY [KEY ...]",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			return run(c, append([]string{"DEL"}, c.Args().Slice()...)...)
		},
	}
}

// ExecCommand returns the exec command, which sends arbitrary arguments.
func ExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Send a raw command",
		ArgsUsage: "COMMAND [ARG ...]",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			return run(c, c.Args().Slice()...)
		},
	}
}
