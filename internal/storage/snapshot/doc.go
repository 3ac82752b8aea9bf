// Package snapshot seals RDB snapshots for storage at rest.
//
// A sealed snapshot is laid out as:
//
//	[magic:8 "RKVSEAL1"][cipher:1][salt:16][nonce || ciphertext || tag]
//
// The key is derived from a passphrase with Argon2id over the salt, then
// expanded with HKDF-SHA256. The 25 header bytes are bound to the
// ciphertext as additional data, so a header edit fails authentication.
package snapshot
