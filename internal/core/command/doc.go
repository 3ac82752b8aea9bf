// Package command implements the respkv command engine.
//
// The Engine turns a decoded request frame into exactly one reply frame. It
// looks the verb up case-insensitively in a Registry, checks arity and
// authentication, and runs the handler against the shared key space.
// Handler failures are returned as errors and rendered by ErrorReply; they
// never terminate the connection.
//
// Supported commands:
//   - Connection: PING, ECHO, AUTH, QUIT, SELECT, COMMAND
//   - Keys: GET, SET, DEL, EXISTS, EXPIRE, PEXPIRE, TTL, PTTL, PERSIST,
//     TYPE, KEYS, DBSIZE, FLUSHDB, FLUSHALL
//   - Server: CONFIG, SAVE, BGSAVE, LASTSAVE
//
// New commands are added with Registry.Register; neither the codec nor the
// connection session needs to change.
package command
