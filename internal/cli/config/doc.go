// Package config loads and saves the respkv-cli profile file.
//
// The file (~/.respkv/cli.yaml by default) holds named connection
// profiles. Values from the selected profile fill in any global flag the
// user did not set on the command line or through the environment.
package config
