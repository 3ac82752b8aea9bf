package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/cli/output"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read or change server parameters",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show parameters matching a glob pattern",
				ArgsUsage: "[PATTERN]",
				Action:    configGetAction,
			},
			{
				Name:      "set",
				Usage:     "Change a parameter",
				ArgsUsage: "PARAMETER VALUE",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					return run(c, "CONFIG", "SET", c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}
}

// configGetAction prints a PARAMETER/VALUE table in text mode and the
// reply itself otherwise.
func configGetAction(c *cli.Context) error {
	pattern := "*"
	if c.NArg() > 0 {
		pattern = c.Args().First()
	}

	client, flags, err := Connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := requestContext(c, flags)
	defer cancel()
	reply, err := client.Do(ctx, "CONFIG", "GET", pattern)
	if err != nil {
		return err
	}
	if flags.Output != output.FormatText || reply.IsError() {
		return printReply(c, flags, reply)
	}
	return output.PairsTable(reply, "PARAMETER", "VALUE").Render(c.App.Writer)
}
