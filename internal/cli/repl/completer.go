package repl

import (
	"sort"
	"strings"
)

// CommandHelp describes one server command for the help listing.
type CommandHelp struct {
	Name    string
	Args    string
	Summary string
}

var builtinHelp = []CommandHelp{
	{"AUTH", "[username] password", "Authenticates the connection."},
	{"BGSAVE", "[SCHEDULE]", "Asynchronously saves the database to disk."},
	{"COMMAND", "[COUNT|DOCS|INFO]", "Returns information about commands."},
	{"CONFIG", "GET pattern | SET parameter value [...]", "Reads or changes server parameters."},
	{"DBSIZE", "", "Returns the number of keys in the database."},
	{"DEL", "key [key ...]", "Deletes one or more keys."},
	{"ECHO", "message", "Returns the given string."},
	{"EXISTS", "key [key ...]", "Determines whether one or more keys exist."},
	{"EXPIRE", "key seconds", "Sets the expiration time of a key in seconds."},
	{"FLUSHALL", "[ASYNC|SYNC]", "Removes all keys."},
	{"FLUSHDB", "[ASYNC|SYNC]", "Removes all keys."},
	{"GET", "key", "Returns the string value of a key."},
	{"KEYS", "pattern", "Returns all key names that match a pattern."},
	{"LASTSAVE", "", "Returns the Unix timestamp of the last successful save."},
	{"PERSIST", "key", "Removes the expiration time of a key."},
	{"PEXPIRE", "key milliseconds", "Sets the expiration time of a key in milliseconds."},
	{"PING", "[message]", "Returns the server's liveliness response."},
	{"PTTL", "key", "Returns the expiration time in milliseconds of a key."},
	{"QUIT", "", "Closes the connection."},
	{"SAVE", "", "Synchronously saves the database to disk."},
	{"SELECT", "index", "Changes the selected database."},
	{"SET", "key value [NX|XX] [EX seconds|PX milliseconds|EXAT ts|PXAT ts|KEEPTTL]", "Sets the string value of a key."},
	{"TTL", "key", "Returns the expiration time in seconds of a key."},
	{"TYPE", "key", "Determines the type of value stored at a key."},
}

// Completer provides command name lookup for the REPL.
type Completer struct {
	commands []CommandHelp
}

// NewCompleter creates a new Completer over the known server commands.
func NewCompleter() *Completer {
	cmds := make([]CommandHelp, len(builtinHelp))
	copy(cmds, builtinHelp)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return &Completer{commands: cmds}
}

// Complete returns the command names starting with prefix, case-insensitively.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, h := range c.Lookup(prefix) {
		suggestions = append(suggestions, h.Name)
	}
	return suggestions
}

// Lookup returns help entries whose names start with prefix.
func (c *Completer) Lookup(prefix string) []CommandHelp {
	prefix = strings.ToUpper(prefix)
	var out []CommandHelp
	for _, h := range c.commands {
		if strings.HasPrefix(h.Name, prefix) {
			out = append(out, h)
		}
	}
	return out
}
