package packet

import "errors"

var (
	// ErrPacketNotFound indicates the packet doesn't exist or isn't visible to the caller.
	ErrPacketNotFound = errors.New("packet not found")
	// ErrPacketEmpty indicates the packet exists but holds no messages.
	ErrPacketEmpty = errors.New("packet is empty")
	// ErrUserNotFound indicates no user with the given id has been seen.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput indicates invalid packet query input.
	ErrInvalidInput = errors.New("invalid packet input")
)
