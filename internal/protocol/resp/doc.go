// Package resp implements the RESP wire codec used by respkv.
//
// The codec is buffer oriented rather than stream oriented: Decode inspects a
// byte slice and either returns one complete Frame together with the number
// of bytes it occupied, reports ErrIncomplete without consuming anything, or
// reports a malformed frame. This lets a connection keep a single read buffer,
// retry after every read and pipeline any number of requests per read.
// Connections retry through a Scanner, which resumes from the end of the
// prefix it already validated instead of re-decoding from the first byte.
//
// Supported frame kinds:
//   - '+' simple string, '-' error, ':' integer (CRLF terminated)
//   - '$' bulk string, '*' array (length prefixed, -1 means null)
//   - '_' null
//
// Inline commands ("PING\r\n") are accepted only through
// Decoder.DecodeRequest when AllowInline is set.
package resp
