// Package output renders server replies for respkv-cli.
//
// Three formats are supported: text mimics redis-cli (quoted strings,
// "(integer)" prefixes, numbered arrays), raw prints bare values one per
// line for scripting, and json emits one JSON value per reply.
package output
