// Package rdb reads and writes Redis RDB snapshot files.
//
// Only what a string key space needs is supported: the REDIS00NN header,
// auxiliary fields, database selection and resize hints, second and
// millisecond expiry opcodes, and string values in raw, integer and LZF
// encodings. Files end with a CRC-64/Jones checksum over every preceding
// byte; a stored checksum of zero means the writer disabled checksums.
//
// Writers emit version 11, which Redis 7.x loads.
package rdb
