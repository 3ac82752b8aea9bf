// Package main provides the entry point for respkv-server.
//
// respkv-server is an in-memory key-value server speaking RESP2 over TCP,
// TLS, unix sockets and WebSocket, with RDB or Badger persistence.
//
// Usage:
//
//	respkv-server [flags]
//	respkv-server --config /etc/respkv/respkv.yaml
//	respkv-server --dir /var/lib/respkv --dbfilename dump.rdb
//	respkv-server version
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/infra/buildinfo"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "respkv-server",
		Usage:   "in-memory RESP key-value server",
		Version: buildinfo.Get().Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML configuration file",
				EnvVars: []string{"RESPKV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from a dotenv file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "RESP listen address (overrides server.redis.addr)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "snapshot directory (overrides storage.dir)",
			},
			&cli.StringFlag{
				Name:  "dbfilename",
				Usage: "snapshot file name (overrides storage.dbfilename)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides log.level)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "respkv-server %s\n", buildinfo.String())
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, options{
				configFile: c.String("config"),
				envFile:    c.String("env-file"),
				overrides:  flagOverrides(c),
			})
		},
	}
}

// flagOverrides maps explicitly set flags to configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"addr":       "server.redis.addr",
		"dir":        "storage.dir",
		"dbfilename": "storage.dbfilename",
		"log-level":  "log.level",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}
