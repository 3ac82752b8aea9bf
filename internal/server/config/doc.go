// Package config provides server configuration for respkv.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (addresses, storage engine, limits)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - runtime.go: Parameters readable and writable through CONFIG GET/SET
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// an optional .env file, RESPKV_ environment variables and flags.
package config
