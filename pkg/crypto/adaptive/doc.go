// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
//
// New picks AES-256-GCM where the CPU accelerates AES and
// ChaCha20-Poly1305 elsewhere. Ciphertexts carry their nonce as a prefix.
// A Cipher is safe for concurrent use.
package adaptive
