// Package domain defines the error values shared by the respkv command
// engine and its transports.
//
// Command failures are modelled as ReplyError values. A ReplyError carries
// the RESP error prefix ("ERR", "NOAUTH", "WRONGPASS") and the message the
// client sees; transports render it verbatim as an error frame and keep the
// connection open.
package domain
