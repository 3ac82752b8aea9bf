package command

func (e *Engine) registerBuiltins() {
	e.registry.MustRegister(
		// Connection
		&Command{Name: "PING", Arity: -1, Flags: FlagFast, Group: "connection",
			Summary: "Returns the server's liveliness response.", Handler: e.cmdPing},
		&Command{Name: "ECHO", Arity: 2, Flags: FlagFast, Group: "connection",
			Summary: "Returns the given string.", Handler: e.cmdEcho},
		&Command{Name: "AUTH", Arity: -2, Flags: FlagNoAuth | FlagFast, Group: "connection",
			Summary: "Authenticates the connection.", Handler: e.cmdAuth},
		&Command{Name: "QUIT", Arity: -1, Flags: FlagNoAuth | FlagFast, Group: "connection",
			Summary: "Closes the connection.", Handler: e.cmdQuit},
		&Command{Name: "SELECT", Arity: 2, Flags: FlagFast, Group: "connection",
			Summary: "Changes the selected database.", Handler: e.cmdSelect},
		&Command{Name: "COMMAND", Arity: -1, Group: "server",
			Summary: "Returns detailed information about all commands.", Handler: e.cmdCommand},

		// Keys
		&Command{Name: "GET", Arity: 2, Flags: FlagReadOnly | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "string", Summary: "Returns the string value of a key.", Handler: e.cmdGet},
		&Command{Name: "SET", Arity: -3, Flags: FlagWrite, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "string", Summary: "Sets the string value of a key, ignoring its type.", Handler: e.cmdSet},
		&Command{Name: "DEL", Arity: -2, Flags: FlagWrite, FirstKey: 1, LastKey: -1, Step: 1,
			Group: "generic", Summary: "Deletes one or more keys.", Handler: e.cmdDel},
		&Command{Name: "EXISTS", Arity: -2, Flags: FlagReadOnly | FlagFast, FirstKey: 1, LastKey: -1, Step: 1,
			Group: "generic", Summary: "Determines whether one or more keys exist.", Handler: e.cmdExists},
		&Command{Name: "EXPIRE", Arity: 3, Flags: FlagWrite | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Sets the expiration time of a key in seconds.", Handler: e.cmdExpire},
		&Command{Name: "PEXPIRE", Arity: 3, Flags: FlagWrite | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Sets the expiration time of a key in milliseconds.", Handler: e.cmdExpire},
		&Command{Name: "TTL", Arity: 2, Flags: FlagReadOnly | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Returns the expiration time in seconds of a key.", Handler: e.cmdTTL},
		&Command{Name: "PTTL", Arity: 2, Flags: FlagReadOnly | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Returns the expiration time in milliseconds of a key.", Handler: e.cmdTTL},
		&Command{Name: "PERSIST", Arity: 2, Flags: FlagWrite | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Removes the expiration time of a key.", Handler: e.cmdPersist},
		&Command{Name: "TYPE", Arity: 2, Flags: FlagReadOnly | FlagFast, FirstKey: 1, LastKey: 1, Step: 1,
			Group: "generic", Summary: "Determines the type of value stored at a key.", Handler: e.cmdType},
		&Command{Name: "KEYS", Arity: 2, Flags: FlagReadOnly, Group: "generic",
			Summary: "Returns all key names that match a pattern.", Handler: e.cmdKeys},
		&Command{Name: "DBSIZE", Arity: 1, Flags: FlagReadOnly | FlagFast, Group: "server",
			Summary: "Returns the number of keys in the database.", Handler: e.cmdDBSize},
		&Command{Name: "FLUSHDB", Arity: -1, Flags: FlagWrite, Group: "server",
			Summary: "Removes all keys from the current database.", Handler: e.cmdFlush},
		&Command{Name: "FLUSHALL", Arity: -1, Flags: FlagWrite, Group: "server",
			Summary: "Removes all keys from all databases.", Handler: e.cmdFlush},

		// Server
		&Command{Name: "CONFIG", Arity: -2, Flags: FlagAdmin, Group: "server",
			Summary: "A container for server configuration commands.", Handler: e.cmdConfig},
		&Command{Name: "SAVE", Arity: 1, Flags: FlagAdmin, Group: "server",
			Summary: "Synchronously saves the database to disk.", Handler: e.cmdSave},
		&Command{Name: "BGSAVE", Arity: -1, Flags: FlagAdmin, Group: "server",
			Summary: "Asynchronously saves the database to disk.", Handler: e.cmdBgSave},
		&Command{Name: "LASTSAVE", Arity: 1, Flags: FlagFast, Group: "server",
			Summary: "Returns the Unix timestamp of the last successful save.", Handler: e.cmdLastSave},
	)
}
