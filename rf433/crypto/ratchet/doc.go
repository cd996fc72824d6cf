// Package ratchet implements the one-way hash chain behind forward-secret
// packet keys.
//
// Chain value 0 is the shared secret and every following value is
// SHA-256(previous || secret). A bounded circular store keeps the values
// that may still be needed to verify a packet; consumed or skipped values
// are overwritten and dropped, so a later compromise of the store cannot
// rebuild keys that were already used.
package ratchet
