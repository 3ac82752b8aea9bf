package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/respkv-go/internal/cli/config"
	"github.com/yndnr/respkv-go/internal/cli/output"
)

// ProfileCommand returns the profile command.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved profiles",
				Action: profileListAction,
			},
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "make this the default profile"},
				},
				Action: profileSaveAction,
			},
		},
	}
}

func profileListAction(c *cli.Context) error {
	cfg, err := clicfg.Load(c.String("config"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	table := &output.Table{Headers: []string{"NAME", "SERVER", "TLS", "DEFAULT"}}
	for _, name := range names {
		p := cfg.Profiles[name]
		def := ""
		if name == cfg.DefaultProfile {
			def = "*"
		}
		table.AddRow(name, p.Server, fmt.Sprint(p.TLS), def)
	}
	return table.Render(c.App.Writer)
}

func profileSaveAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	name := c.Args().First()

	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg, err := clicfg.Load(c.String("config"))
	if err != nil {
		return err
	}

	cfg.Profiles[name] = clicfg.Profile{
		Server:   flags.Server,
		User:     flags.User,
		Password: flags.Password,
		TLS:      flags.TLS,
		CACert:   flags.CACert,
		Insecure: flags.Insecure,
	}
	if c.Bool("default") || cfg.DefaultProfile == "" {
		cfg.DefaultProfile = name
	}
	if err := clicfg.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "profile %q saved\n", name)
	return nil
}
