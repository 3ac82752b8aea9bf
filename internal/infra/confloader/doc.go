// Package confloader loads configuration from multiple sources with koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides passed to LoadMap (command-line flags)
//  2. Environment variables (RESPKV_ prefix, "__" separates sections)
//  3. A .env file, loaded into the environment by godotenv
//  4. The YAML configuration file
//  5. Values already present in the target struct (defaults)
//
// Watcher reports changes to the configuration file through fsnotify so the
// server can reload it.
package confloader
