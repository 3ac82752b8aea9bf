// Package main provides the entry point for respkv-cli.
//
// respkv-cli sends commands to a respkv-server (or any RESP2 server):
//
//	respkv-cli ping
//	respkv-cli set --ex 60 session:42 alice
//	respkv-cli -o json config get '*'
//	respkv-cli pipe < commands.txt
//	respkv-cli            # interactive mode
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/respkv-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
