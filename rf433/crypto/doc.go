// Package crypto provides the hashing primitives behind rf433 packet digests.
//
// Design goals:
//   - Small, fixed-cost digests suitable for inline use on a receive callback
//   - HMAC-SHA256 for per-index keys, plain SHA-256 for hash-chain keys
//   - One-way chain steps so erased chain values cannot be recomputed
//   - Constant-time digest comparison
package crypto
