package auth

import "errors"

var (
	// ErrAuthenticationFailed is the single reject outcome of Decode. Forged,
	// replayed and out-of-window packets are deliberately indistinguishable.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")
	ErrInvalidSnapshot      = errors.New("auth: invalid snapshot")
	ErrEmptySecret          = errors.New("auth: empty secret")
	ErrUnknownMode          = errors.New("auth: unknown key schedule mode")
)
