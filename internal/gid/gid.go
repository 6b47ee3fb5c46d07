// Package gid reports the id of the calling goroutine.
//
// The runtime does not expose goroutine ids; the id is parsed from the
// "goroutine N [...]" header that runtime.Stack writes for the current
// goroutine. It is only used to answer "am I on the runner goroutine",
// never as a map key for goroutine-local storage.
package gid

import "runtime"

// Current returns the id of the calling goroutine, or 0 if it could not be
// determined.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) uint64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
