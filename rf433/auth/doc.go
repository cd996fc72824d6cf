// Package auth authenticates short payloads sent over a one-way, lossy
// broadcast link.
//
// Each packet carries the payload, the low byte of a sequence index and a
// truncated digest keyed for that index. The receiver rebuilds the full index
// from the byte and its own lower bound, so it can tolerate up to 255 lost
// packets between two it receives. Accepting a packet consumes its index and
// every index before it, which makes replays fail.
//
// Two key schedules are available. DirectSchedule derives each key from the
// secret and the index. ChainSchedule walks a one-way hash chain and erases
// every consumed value, so compromising its state later does not expose keys
// that were already used.
package auth
