package command

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/respkv-go/internal/cli/config"
	"github.com/yndnr/respkv-go/internal/cli/connection"
	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/internal/infra/buildinfo"
	"github.com/yndnr/respkv-go/internal/infra/tlsroots"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// DefaultTimeout bounds one request round trip.
const DefaultTimeout = 5 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "respkv-cli",
		Usage:   "command-line client for respkv-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			GetCommand(),
			SetCommand(),
			DelCommand(),
			ExecCommand(),
			PipeCommand(),
			ConfigCommand(),
			REPLCommand(),
			ProfileCommand(),
		},
		Action: replAction,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "profile file",
			EnvVars: []string{"RESPKV_CLI_CONFIG"},
			Value:   clicfg.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "named profile from the profile file",
			EnvVars: []string{"RESPKV_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address, host:port or unix:/path/to/socket",
			EnvVars: []string{"RESPKV_SERVER"},
			Value:   connection.DefaultAddr,
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "username sent with AUTH",
			EnvVars: []string{"RESPKV_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"a"},
			Usage:   "password sent with AUTH",
			EnvVars: []string{"RESPKV_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:  "tls",
			Usage: "connect using TLS",
		},
		&cli.StringFlag{
			Name:  "cacert",
			Usage: "CA certificate file used to verify the server",
		},
		&cli.StringFlag{
			Name:  "cert",
			Usage: "client certificate file for mutual TLS",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "client private key file for mutual TLS",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "skip server certificate verification",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: text, raw, json",
			Value:   string(output.FormatText),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: DefaultTimeout,
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Server   string
	User     string
	Password string

	TLS      bool
	CACert   string
	Cert     string
	Key      string
	Insecure bool

	Output  output.Format
	Timeout time.Duration
}

// ParseGlobalFlags extracts global flags from context. Flags the user
// did not set are filled from the selected profile.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg, err := clicfg.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load profile file: %w", err)
	}
	profile, ok := cfg.Profile(c.String("profile"))
	if !ok && c.String("profile") != "" {
		return nil, fmt.Errorf("profile %q not found", c.String("profile"))
	}

	str := func(name, fallback string) string {
		if !c.IsSet(name) && fallback != "" {
			return fallback
		}
		return c.String(name)
	}
	flag := func(name string, fallback bool) bool {
		if !c.IsSet(name) {
			return fallback || c.Bool(name)
		}
		return c.Bool(name)
	}

	format, err := output.ParseFormat(str("output", cfg.Output))
	if err != nil {
		return nil, err
	}
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GlobalFlags{
		Server:   str("server", profile.Server),
		User:     str("user", profile.User),
		Password: str("password", profile.Password),
		TLS:      flag("tls", profile.TLS),
		CACert:   str("cacert", profile.CACert),
		Cert:     c.String("cert"),
		Key:      c.String("key"),
		Insecure: flag("insecure", profile.Insecure),
		Output:   format,
		Timeout:  timeout,
	}, nil
}

// Connect dials the server named by the global flags.
func Connect(c *cli.Context) (*connection.Client, *GlobalFlags, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, err
	}

	opts := connection.Options{
		Username:    flags.User,
		Password:    flags.Password,
		DialTimeout: flags.Timeout,
	}
	if flags.TLS {
		host := flags.Server
		if h, _, err := net.SplitHostPort(flags.Server); err == nil {
			host = h
		}
		opts.TLS, err = tlsroots.ClientConfig(tlsroots.ClientOptions{
			CAFile:     flags.CACert,
			ServerName: host,
			Insecure:   flags.Insecure,
			CertFile:   flags.Cert,
			KeyFile:    flags.Key,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()
	client, err := connection.Dial(ctx, flags.Server, opts)
	if err != nil {
		return nil, nil, err
	}
	return client, flags, nil
}

// run sends one command and prints its reply. An error reply exits 1.
func run(c *cli.Context, args ...string) error {
	client, flags, err := Connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := requestContext(c, flags)
	defer cancel()
	reply, err := client.Do(ctx, args...)
	if err != nil {
		return err
	}
	return printReply(c, flags, reply)
}

func printReply(c *cli.Context, flags *GlobalFlags, reply resp.Frame) error {
	if err := output.NewFormatter(flags.Output).Format(c.App.Writer, reply); err != nil {
		return err
	}
	if reply.IsError() {
		return cli.Exit("", 1)
	}
	return nil
}

// requireArgs fails with usage text when fewer than n positional
// arguments were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return nil
}
