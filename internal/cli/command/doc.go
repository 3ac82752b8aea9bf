// Package command provides CLI command definitions for respkv-cli.
//
// It uses urfave/cli/v2 for flag and command parsing. Every subcommand
// opens one connection, sends its request(s) and renders the replies in
// the selected output format; repl keeps the connection open for an
// interactive session.
package command
